package graph

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/diwise/levelstore/pkg/document"
	"github.com/diwise/levelstore/pkg/graph/codec"
	graphErrors "github.com/diwise/levelstore/pkg/graph/errors"
	"github.com/matryer/is"
)

func TestLoadAndLink(t *testing.T) {
	is, primary, companion := testSetup(t)

	is.Equal(primary.Len(), 3)
	is.Equal(companion.Len(), 2)
	is.True(primary.Linked())
	is.Equal(primary.Companion(), companion)

	widget, ok := primary.Get("1")
	is.True(ok)
	is.Equal(widget.State(), Linked)

	holder, _ := primary.Get("2")
	target, err := holder.Get("Target")
	is.NoErr(err)
	is.True(target.(*Object) == widget)

	extras, err := holder.Attribute("Extras")
	is.NoErr(err)
	is.Equal(extras.Len(), 2)

	first, _ := extras.Get(0)
	is.Equal(first, nil)

	second, _ := extras.Get(1)
	is.Equal(second.(*Object).ID(), "100") // resolved in the companion store

	referrers := widget.ReferencedBy()
	is.Equal(len(referrers), 2)
	is.Equal(referrers[0].ID(), "101")
	is.Equal(referrers[1].ID(), "2")
}

func TestThatRawPointersHoldIdentifiers(t *testing.T) {
	is := is.New(t)

	raw, err := Load(context.Background(), strings.NewReader(primaryXML))
	is.NoErr(err)

	holder, _ := raw.Get("2")
	is.Equal(holder.State(), Raw)

	target, err := holder.Get("Target")
	is.NoErr(err)
	is.Equal(target, "1")

	err = holder.Set("Target", nil)
	is.True(errors.Is(err, graphErrors.ErrNotLinked))
}

func TestThatDuplicateIDsAreRejected(t *testing.T) {
	is := is.New(t)

	_, err := Load(context.Background(), strings.NewReader(`<Instances>
		<Object type="Widget" id="1"></Object>
		<Object type="Gadget" id="1"></Object>
	</Instances>`))

	is.True(errors.Is(err, graphErrors.ErrDuplicateID))
}

func TestThatDanglingReferencesFailToLink(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	p, err := Load(ctx, strings.NewReader(`<Instances>
		<Object type="Holder" id="2">
			<Pointer name="Target" type="Widget" elements="1"><Item>999</Item></Pointer>
		</Object>
	</Instances>`))
	is.NoErr(err)

	_, _, err = Link(ctx, p, NewRawStore())
	is.True(errors.Is(err, graphErrors.ErrDanglingReference))
	is.True(strings.Contains(err.Error(), "999"))
}

func TestThatLinkingIsIdempotent(t *testing.T) {
	is, primary, companion := testSetup(t)

	widget, _ := primary.Get("1")
	is.NoErr(primary.ResolvePointers(companion))
	is.NoErr(primary.ResolvePointers(companion))

	is.Equal(len(widget.ReferencedBy()), 2)
}

func TestCascadeDeleteAcrossStores(t *testing.T) {
	is, primary, companion := testSetup(t)

	widget, _ := primary.Get("1")
	holder, _ := primary.Get("2")
	link, _ := companion.Get("101")

	is.NoErr(primary.DeleteObjects(widget))

	is.Equal(widget.ID(), "0")
	is.True(widget.Deleted())
	is.Equal(primary.Len(), 2)

	_, found := primary.Get("1")
	is.True(!found)

	target, _ := holder.Get("Target")
	is.Equal(target, nil)

	target, _ = link.Get("Target")
	is.Equal(target, nil) // pointer from the companion store is nulled too

	buf := &bytes.Buffer{}
	is.NoErr(primary.Write(buf))
	is.True(!strings.Contains(buf.String(), `id="1"`))
	is.True(strings.Contains(buf.String(), `id="2"`))
}

func TestCascadeDeleteNullsRawPointers(t *testing.T) {
	is, primary, companion := testSetup(t)

	crate, err := New("77", "Crate", Pointer("Contents", "Widget", "1"))
	is.NoErr(err)
	is.NoErr(primary.AddObject(crate))
	is.Equal(crate.State(), Raw)

	widget, _ := primary.Get("1")
	is.NoErr(primary.DeleteObjects(widget))

	contents, _ := crate.Get("Contents")
	is.Equal(contents, document.NullID)

	b, err := crate.Serialize()
	is.NoErr(err)
	is.True(strings.Contains(string(b), "<Item>0</Item>"))
	is.True(!strings.Contains(string(b), "<Item>1</Item>"))

	is.NoErr(crate.ResolvePointers(primary, companion))
	contents, _ = crate.Get("Contents")
	is.Equal(contents, nil)
}

func TestThatDeletingTwiceIsRejected(t *testing.T) {
	is, primary, companion := testSetup(t)

	widget, _ := primary.Get("1")
	is.NoErr(primary.DeleteObjects(widget))

	err := primary.DeleteObjects(widget)
	is.True(errors.Is(err, graphErrors.ErrDeleted))

	preloaded, _ := companion.Get("100")
	err = primary.DeleteObjects(preloaded)
	is.True(errors.Is(err, graphErrors.ErrNotFound))
	is.Equal(companion.Len(), 2)
}

func TestDeleteObjectsThatReferenceEachOther(t *testing.T) {
	is, primary, _ := testSetup(t)

	widget, _ := primary.Get("1")
	holder, _ := primary.Get("2")
	preloaded := holder.byName["Extras"].targets[1]

	is.NoErr(primary.DeleteObjects(holder, widget))
	is.Equal(primary.Len(), 1)
	is.Equal(len(preloaded.ReferencedBy()), 0)
}

func TestSpatialIndex(t *testing.T) {
	is, primary, _ := testSetup(t)

	spatial := primary.SpatialObjects()
	is.Equal(len(spatial), 1)
	is.Equal(spatial[0].ID(), "3")
	is.Equal(spatial[0].Transform().Translation(), codec.Vec3{10, 20, 30})

	widget, _ := primary.Get("1")
	is.Equal(widget.Transform(), nil)
}

func TestThatSpatialObjectsWithoutTransformPanic(t *testing.T) {
	is := is.New(t)

	defer func() {
		is.True(recover() != nil)
	}()

	_, _ = Load(context.Background(), strings.NewReader(`<Instances>
		<Object type="Tree" id="3">
			<Attribute name="Mat" type="matrix4x4" elements="0"></Attribute>
		</Object>
	</Instances>`))

	t.Error("expected a panic")
}

func TestAddObjectNew(t *testing.T) {
	is, primary, _ := testSetup(t)

	widget, _ := primary.Get("1")

	id := primary.NewID()
	crate, err := New(id, "Crate", Number("Weight", 4), Ref("Contents", "Widget", widget))
	is.NoErr(err)

	is.NoErr(primary.AddObjectNew(crate))
	is.Equal(crate.State(), Linked)
	is.Equal(primary.Len(), 4)

	contents, _ := crate.Get("Contents")
	is.True(contents.(*Object) == widget)
	is.Equal(len(widget.ReferencedBy()), 3)

	buf := &bytes.Buffer{}
	is.NoErr(primary.Write(buf))
	is.True(strings.Contains(buf.String(), `id="`+id+`"`))
}

func TestThatAddObjectNewRequiresUniqueIDsAcrossStores(t *testing.T) {
	is, primary, _ := testSetup(t)

	obj, err := New("100", "Widget", Text("Name", "Imposter"))
	is.NoErr(err)

	err = primary.AddObjectNew(obj)
	is.True(errors.Is(err, graphErrors.ErrDuplicateID))
	is.Equal(primary.Len(), 3)
}

func TestThatAddObjectRejectsDuplicateIDs(t *testing.T) {
	is, primary, _ := testSetup(t)

	obj, err := New("1", "Widget", Text("Name", "Imposter"))
	is.NoErr(err)

	err = primary.AddObject(obj)
	is.True(errors.Is(err, graphErrors.ErrDuplicateID))
	is.Equal(primary.Len(), 3)

	widget, _ := primary.Get("1")
	is.Equal(widget.Name(), "Foo")
}

func TestThatAddObjectNewWithDanglingPointerIsNotAdded(t *testing.T) {
	is, primary, _ := testSetup(t)

	obj, err := New("55", "Holder", Pointer("Target", "Widget", "555"))
	is.NoErr(err)

	err = primary.AddObjectNew(obj)
	is.True(errors.Is(err, graphErrors.ErrDanglingReference))

	_, found := primary.Get("55")
	is.True(!found)
	is.Equal(primary.Len(), 3)
}

func TestThatNewIDsAreUnique(t *testing.T) {
	is, primary, _ := testSetup(t)

	seen := map[string]bool{}

	for range 200 {
		id := primary.NewID()
		is.True(!seen[id])
		is.True(id != "0")
		seen[id] = true

		obj, err := New(id, "Crate")
		is.NoErr(err)
		is.NoErr(primary.AddObjectNew(obj))
	}

	is.Equal(primary.Len(), 203)
}

func TestObjectsOfType(t *testing.T) {
	is, primary, _ := testSetup(t)

	is.Equal(len(primary.ObjectsOfType("Widget")), 1)
	is.Equal(len(primary.ObjectsOfType("Nope")), 0)
}

func TestWriteReflectsChangedValues(t *testing.T) {
	is, primary, _ := testSetup(t)

	widget, _ := primary.Get("1")
	is.NoErr(widget.Set("Speed", 7.75))

	buf := &bytes.Buffer{}
	is.NoErr(primary.Write(buf))

	reloaded, err := Load(context.Background(), buf)
	is.NoErr(err)

	again, _ := reloaded.Get("1")
	speed, _ := again.Get("Speed")
	is.Equal(speed, 7.75)
}

func testSetup(t *testing.T) (*is.I, *Store, *Store) {
	is := is.New(t)
	ctx := context.Background()

	p, err := Load(ctx, strings.NewReader(primaryXML), WithName("primary"))
	is.NoErr(err)

	c, err := Load(ctx, strings.NewReader(companionXML), WithName("companion"))
	is.NoErr(err)

	primary, companion, err := Link(ctx, p, c)
	is.NoErr(err)

	return is, primary, companion
}

const primaryXML string = `<?xml version="1.0" encoding="utf-8"?>
<Instances>
	<Object type="Widget" id="1">
		<Attribute name="Name" type="cFxString8" elements="1"><Item>Foo</Item></Attribute>
		<Attribute name="Speed" type="float" elements="1"><Item>2.5</Item></Attribute>
	</Object>
	<Object type="Holder" id="2">
		<Attribute name="Name" type="string" elements="1"><Item>Box</Item></Attribute>
		<Pointer name="Target" type="Widget" elements="1"><Item>1</Item></Pointer>
		<Pointer name="Extras" type="Widget" elements="2"><Item>0</Item><Item>100</Item></Pointer>
	</Object>
	<Object type="Tree" id="3">
		<Attribute name="Mat" type="cMatrix4x4" elements="1"><Item>1,0,0,0,0,1,0,0,0,0,1,0,10,20,30,1</Item></Attribute>
	</Object>
</Instances>`

const companionXML string = `<?xml version="1.0" encoding="utf-8"?>
<Instances>
	<Object type="Widget" id="100">
		<Attribute name="Name" type="string" elements="1"><Item>Preloaded</Item></Attribute>
		<Attribute name="Speed" type="float" elements="1"><Item>1</Item></Attribute>
	</Object>
	<Object type="Link" id="101">
		<Pointer name="Target" type="Widget" elements="1"><Item>1</Item></Pointer>
	</Object>
</Instances>`
