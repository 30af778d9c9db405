package models

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

type Attribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Attributes keeps attribute order. On the wire it is an object mapping each
// name to its values, e.g. {"name1":["value"],"name2":["val1","val2"]}.
type Attributes []Attribute

// Get returns the values of the named attribute.
func (a Attributes) Get(name string) ([]string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Values, true
		}
	}
	return nil, false
}

// First returns the first value of the named attribute, or "".
func (a Attributes) First(name string) string {
	values, ok := a.Get(name)
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}

func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for i, attr := range a {
		out[i] = Attribute{Name: attr.Name, Values: append([]string{}, attr.Values...)}
	}
	return out
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(attr.Name)
		if err != nil {
			return nil, err
		}
		values := attr.Values
		if values == nil {
			values = []string{}
		}
		encoded, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form and the older array of
// {"name":...,"values":[...]} objects.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var legacy []Attribute
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return errors.Wrap(err, "decode attribute list")
		}
		out := make(Attributes, 0, len(legacy))
		for _, attr := range legacy {
			out = out.merge(attr.Name, attr.Values)
		}
		*a = out
		return nil
	case '{':
		return a.decodeObject(trimmed)
	default:
		return errors.Errorf("attributes: unexpected JSON starting with %q", trimmed[0])
	}
}

func (a *Attributes) decodeObject(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, "decode attributes")
	}

	out := Attributes{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "decode attribute name")
		}
		name, ok := tok.(string)
		if !ok {
			return errors.Errorf("attributes: unexpected token %v", tok)
		}
		var values []string
		if err := dec.Decode(&values); err != nil {
			return errors.Wrapf(err, "decode values of attribute %q", name)
		}
		out = out.merge(name, values)
	}
	*a = out
	return nil
}

// merge appends values to the attribute called name, adding it at the end
// when absent. Names stay unique.
func (a Attributes) merge(name string, values []string) Attributes {
	for i := range a {
		if a[i].Name == name {
			a[i].Values = append(a[i].Values, values...)
			return a
		}
	}
	if values == nil {
		values = []string{}
	}
	return append(a, Attribute{Name: name, Values: values})
}
