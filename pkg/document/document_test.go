package document

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	graphErrors "github.com/diwise/levelstore/pkg/graph/errors"
	"github.com/matryer/is"
)

func TestParseDocument(t *testing.T) {
	is := is.New(t)

	d, err := Parse(strings.NewReader(levelXML))
	is.NoErr(err)

	is.Equal(d.XMLName.Local, RootElement)
	is.Equal(len(d.Entities), 2)

	widget := d.Entities[0]
	is.Equal(widget.ID, "1")
	is.Equal(widget.Type, "Widget")
	is.Equal(len(widget.Fields), 2)
	is.Equal(widget.Fields[0].Name, "Name")
	is.True(!widget.Fields[0].IsPointer())
	is.Equal(widget.Fields[0].Items, []string{"Foo"})

	ref := d.Entities[1]
	is.True(ref.Field("Target").IsPointer())
	is.Equal(ref.Field("Target").Items, []string{"1"})
	is.Equal(ref.Field("Nope"), nil)
}

func TestThatUnknownXMLAttributesSurviveARoundTrip(t *testing.T) {
	is := is.New(t)

	d, err := Parse(strings.NewReader(levelXML))
	is.NoErr(err)

	buf := &bytes.Buffer{}
	is.NoErr(d.Write(buf))

	out := buf.String()
	is.True(strings.HasPrefix(out, "<?xml"))
	is.True(strings.Contains(out, `version="2"`))
	is.True(strings.Contains(out, `editorColor="red"`))

	again, err := Parse(buf)
	is.NoErr(err)
	is.Equal(len(again.Entities), 2)
	is.Equal(again.Entities[1].Field("Target").Items, []string{"1"})
}

func TestThatElementCountMismatchIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := Parse(strings.NewReader(`<Instances>
		<Object type="Widget" id="1">
			<Attribute name="Position" type="float" elements="3"><Item>1</Item></Attribute>
		</Object>
	</Instances>`))

	is.True(errors.Is(err, graphErrors.ErrMalformedDocument))
}

func TestThatEntitiesWithoutIDAreRejected(t *testing.T) {
	is := is.New(t)

	_, err := Parse(strings.NewReader(`<Instances><Object type="Widget"></Object></Instances>`))
	is.True(errors.Is(err, graphErrors.ErrMalformedDocument))

	_, err = ParseEntity([]byte(`<Object type="Widget" id="0"></Object>`))
	is.True(errors.Is(err, graphErrors.ErrMalformedDocument)) // 0 is the null id
}

func TestEntityFragmentRoundTrip(t *testing.T) {
	is := is.New(t)

	e := NewEntity("Ref", "2")
	e.Fields = append(e.Fields, NewField(true, "Targets", "Widget", []string{"1", "0"}))

	b, err := e.Marshal()
	is.NoErr(err)

	parsed, err := ParseEntity(b)
	is.NoErr(err)
	is.Equal(parsed.ID, "2")
	is.Equal(parsed.Field("Targets").Elements, 2)
	is.Equal(parsed.Field("Targets").Items, []string{"1", "0"})
}

func TestAppendAndRemove(t *testing.T) {
	is := is.New(t)

	d := New()
	a := NewEntity("Widget", "1")
	b := NewEntity("Widget", "2")

	d.Append(a)
	d.Append(b)

	is.True(d.Remove(a))
	is.True(!d.Remove(a))
	is.Equal(len(d.Entities), 1)
	is.Equal(d.Entities[0], b)
}

const levelXML string = `<?xml version="1.0" encoding="utf-8"?>
<Instances version="2">
	<Object type="Widget" id="1" editorColor="red">
		<Attribute name="Name" type="cFxString8" elements="1">
			<Item>Foo</Item>
		</Attribute>
		<Attribute name="Speed" type="float" elements="1">
			<Item>2.5</Item>
		</Attribute>
	</Object>
	<Object type="Ref" id="2">
		<Pointer name="Target" type="Widget" elements="1">
			<Item>1</Item>
		</Pointer>
	</Object>
</Instances>`
