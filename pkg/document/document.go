package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"slices"

	"github.com/diwise/levelstore/pkg/graph/errors"
)

const (
	RootElement      string = "Instances"
	ObjectElement    string = "Object"
	AttributeElement string = "Attribute"
	PointerElement   string = "Pointer"

	// NullID is the pointer text that denotes "no object"
	NullID string = "0"
)

// Document is the tree of entity nodes making up a level file. Attributes that this
// package does not interpret are kept so that writing a parsed document reproduces it.
type Document struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Entities []*Entity  `xml:",any"`
}

// Entity is a single object node
type Entity struct {
	XMLName xml.Name
	Type    string     `xml:"type,attr"`
	ID      string     `xml:"id,attr"`
	Attrs   []xml.Attr `xml:",any,attr"`
	Fields  []*Field   `xml:",any"`
}

// Field is an Attribute or Pointer node holding Elements items of text
type Field struct {
	XMLName  xml.Name
	Name     string     `xml:"name,attr"`
	Type     string     `xml:"type,attr"`
	Elements int        `xml:"elements,attr"`
	Attrs    []xml.Attr `xml:",any,attr"`
	Items    []string   `xml:"Item"`
}

func New() *Document {
	return &Document{
		XMLName: xml.Name{Local: RootElement},
	}
}

func NewEntity(entityType, entityID string) *Entity {
	return &Entity{
		XMLName: xml.Name{Local: ObjectElement},
		Type:    entityType,
		ID:      entityID,
	}
}

func NewField(pointer bool, name, typeTag string, items []string) *Field {
	f := &Field{
		XMLName:  xml.Name{Local: AttributeElement},
		Name:     name,
		Type:     typeTag,
		Elements: len(items),
		Items:    slices.Clone(items),
	}

	if pointer {
		f.XMLName.Local = PointerElement
	}

	return f
}

func (f *Field) IsPointer() bool {
	return f.XMLName.Local == PointerElement
}

func Parse(r io.Reader) (*Document, error) {
	d := &Document{}

	err := xml.NewDecoder(r).Decode(d)
	if err != nil {
		return nil, errors.NewMalformedDocumentError("failed to parse document: %s", err.Error())
	}

	for idx, e := range d.Entities {
		if err = e.validate(); err != nil {
			return nil, fmt.Errorf("entity #%d: %w", idx, err)
		}
	}

	return d, nil
}

func (d *Document) Write(w io.Writer) error {
	_, err := io.WriteString(w, xml.Header)
	if err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	err = enc.Encode(d)
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	_, err = io.WriteString(w, "\n")
	return err
}

func (d *Document) Append(e *Entity) {
	d.Entities = append(d.Entities, e)
}

// Remove drops the node e, if present. Nodes are compared by identity.
func (d *Document) Remove(e *Entity) bool {
	idx := slices.Index(d.Entities, e)
	if idx < 0 {
		return false
	}

	d.Entities = slices.Delete(d.Entities, idx, idx+1)
	return true
}

// ParseEntity reads a single entity node, as produced by Entity.Marshal
func ParseEntity(fragment []byte) (*Entity, error) {
	e := &Entity{}

	err := xml.NewDecoder(bytes.NewReader(fragment)).Decode(e)
	if err != nil {
		return nil, errors.NewMalformedDocumentError("failed to parse entity: %s", err.Error())
	}

	if err = e.validate(); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Entity) Marshal() ([]byte, error) {
	b, err := xml.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity %s: %w", e.ID, err)
	}
	return b, nil
}

// Field returns the first field named name, or nil
func (e *Entity) Field(name string) *Field {
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (e *Entity) validate() error {
	if e.ID == "" {
		return errors.NewMalformedDocumentError("%s node without an id", e.XMLName.Local)
	}

	if e.Type == "" {
		return errors.NewMalformedDocumentError("%s node %s without a type", e.XMLName.Local, e.ID)
	}

	if e.ID == NullID {
		return errors.NewMalformedDocumentError("%s node uses the reserved id %s", e.Type, NullID)
	}

	seen := map[string]bool{}

	for _, f := range e.Fields {
		kind := f.XMLName.Local
		if kind != AttributeElement && kind != PointerElement {
			return errors.NewMalformedDocumentError("object %s: unexpected %s node", e.ID, kind)
		}

		if f.Name == "" {
			return errors.NewMalformedDocumentError("object %s: %s node without a name", e.ID, kind)
		}

		if seen[f.Name] {
			return errors.NewMalformedDocumentError("object %s: field %s declared twice", e.ID, f.Name)
		}
		seen[f.Name] = true

		if f.Elements != len(f.Items) {
			return errors.NewMalformedDocumentError(
				"object %s: field %s declares %d elements but has %d",
				e.ID, f.Name, f.Elements, len(f.Items),
			)
		}
	}

	return nil
}
