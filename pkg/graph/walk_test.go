package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	graphErrors "github.com/diwise/levelstore/pkg/graph/errors"
	"github.com/matryer/is"
)

func TestIterateFieldsRecursive(t *testing.T) {
	is, primary, _ := testSetup(t)

	holder, _ := primary.Get("2")

	expected := []string{
		"Name",
		"Target", "Target.Name", "Target.Speed",
		"Extras[0]", "Extras[1]", "Extras[1].Name", "Extras[1].Speed",
	}

	is.Equal(pathStrings(IterateFieldsRecursive(holder)), expected)
	is.Equal(pathStrings(IterateFieldsRecursive(holder)), expected) // restartable
}

func TestThatIterationStopsWhenAsked(t *testing.T) {
	is, primary, _ := testSetup(t)

	holder, _ := primary.Get("2")

	count := 0
	for range IterateFieldsRecursive(holder) {
		count++
		if count == 2 {
			break
		}
	}

	is.Equal(count, 2)
}

func TestThatIterationTerminatesOnCycles(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	raw, err := Load(ctx, strings.NewReader(cycleXML))
	is.NoErr(err)
	store, _, err := Link(ctx, raw, NewRawStore())
	is.NoErr(err)

	a, _ := store.Get("1")
	is.Equal(pathStrings(IterateFieldsRecursive(a)), []string{"Label", "Next", "Next.Label", "Next.Next"})
}

func TestResolve(t *testing.T) {
	is, primary, _ := testSetup(t)

	holder, _ := primary.Get("2")

	v, err := Resolve(holder, Path{{Name: "Extras", Index: 1}, {Name: "Name", Index: -1}})
	is.NoErr(err)
	is.Equal(v, "Preloaded")

	_, err = Resolve(holder, Path{{Name: "Extras", Index: 0}, {Name: "Name", Index: -1}})
	is.True(errors.Is(err, graphErrors.ErrNotFound)) // null pointer
}

func TestDiff(t *testing.T) {
	is, primary, companion := testSetup(t)

	holder, _ := primary.Get("2")
	preloaded, _ := companion.Get("100")

	other, err := New(primary.NewID(), "Holder",
		Text("Name", "Box"),
		Ref("Target", "Widget", preloaded),
		Pointer("Extras", "Widget", "0", "0"),
	)
	is.NoErr(err)
	is.NoErr(primary.AddObjectNew(other))

	diffs, err := Diff(holder, other)
	is.NoErr(err)

	paths := []string{}
	for _, d := range diffs {
		paths = append(paths, d.Path.String())
	}
	is.Equal(paths, []string{"Target.Name", "Target.Speed", "Extras[1]"})

	is.Equal(diffs[0].A, "Foo")
	is.Equal(diffs[0].B, "Preloaded")
	is.Equal(diffs[2].B, nil)
}

func TestThatDiffRequiresMatchingTypes(t *testing.T) {
	is, primary, _ := testSetup(t)

	widget, _ := primary.Get("1")
	holder, _ := primary.Get("2")

	_, err := Diff(widget, holder)
	is.True(errors.Is(err, graphErrors.ErrTypeMismatch))
}

func TestSame(t *testing.T) {
	is := is.New(t)

	a, _ := New("10", "Crate", Value("Size", "vector3", [3]float64{1, 2, 3}))
	b, _ := New("11", "Crate", Value("Size", "vector3", [3]float64{1, 2, 3}))
	c, _ := New("12", "Crate", Value("Size", "vector3", [3]float64{1, 2, 4}))

	same, err := Same(a, b)
	is.NoErr(err)
	is.True(same)

	same, err = Same(a, c)
	is.NoErr(err)
	is.True(!same)
}

func TestThatListValuesDifferIfAnyElementDiffers(t *testing.T) {
	is := is.New(t)

	a, _ := New("10", "Crate", Value("Weights", "float", 1.0, 2.0, 3.0))
	b, _ := New("11", "Crate", Value("Weights", "float", 1.0, 2.0, 3.5))

	diffs, err := Diff(a, b)
	is.NoErr(err)
	is.Equal(len(diffs), 1)
	is.Equal(diffs[0].Path.String(), "Weights")
}

func pathStrings(seq func(func(Path) bool)) []string {
	result := []string{}
	for p := range seq {
		result = append(result, p.String())
	}
	return result
}
