package graph

import (
	"encoding/json"
)

// NameAttribute is the attribute editors use as a display name
const NameAttribute string = "Name"

// Name returns the display name of o, if it has one
func (o *Object) Name() string {
	a, ok := o.byName[NameAttribute]
	if !ok || a.kind != ValueAttribute || a.Len() != 1 {
		return ""
	}

	name, _ := a.values[0].(string)
	return name
}

func (o *Object) MarshalJSON() ([]byte, error) {
	contents := map[string]any{
		"id":   o.ID(),
		"type": o.typeTag,
	}

	for _, a := range o.attrs {
		if a.kind == ValueAttribute {
			p := map[string]any{
				"type":      "Property",
				"valueType": a.typeTag,
			}

			if a.Len() == 1 {
				p["value"] = a.values[0]
			} else {
				p["value"] = a.values
			}

			contents[a.name] = p
			continue
		}

		ids := a.identifiers()

		r := map[string]any{
			"type":       "Relationship",
			"objectType": a.typeTag,
		}

		if len(ids) == 1 {
			r["object"] = ids[0]
		} else {
			r["object"] = ids
		}

		contents[a.name] = r
	}

	return json.Marshal(&contents)
}
