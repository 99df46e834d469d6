package schema

import (
	"reflect"
	"strings"
)

// bounds is the parsed form of one level of a `validate` tag.
type bounds struct {
	required  bool
	omitempty bool
	min       string
	max       string
	length    string
	gt        string
	oneof     []string
	format    string
}

// field is a flattened, exported struct field with its parsed tags.
type field struct {
	name     string
	typ      reflect.Type
	optional bool
	self     bounds
	elem     bounds
	desc     string
	def      string
}

var itemType = reflect.TypeOf(Item{})

// parseBounds splits a validate tag at "dive" into the bounds of the field and
// the bounds of its elements.
func parseBounds(tag string) (self, elem bounds) {
	cur := &self
	for _, part := range strings.Split(tag, ",") {
		key, val, _ := strings.Cut(part, "=")
		switch key {
		case "dive":
			cur = &elem
		case "required":
			cur.required = true
		case "omitempty":
			cur.omitempty = true
		case "min":
			cur.min = val
		case "max":
			cur.max = val
		case "len":
			cur.length = val
		case "gt":
			cur.gt = val
		case "oneof":
			cur.oneof = strings.Fields(val)
		case "url":
			cur.format = "uri"
		case "datetime":
			if val == DateLayout {
				cur.format = "date"
			} else {
				cur.format = "date-time"
			}
		}
	}
	return self, elem
}

// fieldsOf lists the JSON-visible fields of struct type t in declaration
// order, flattening embedded structs.
func fieldsOf(t reflect.Type) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			out = append(out, fieldsOf(sf.Type)...)
			continue
		}
		if f, ok := toField(sf); ok {
			out = append(out, f)
		}
	}
	return out
}

func toField(sf reflect.StructField) (field, bool) {
	if !sf.IsExported() {
		return field{}, false
	}
	name, opts, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return field{}, false
	}
	if name == "" {
		name = sf.Name
	}
	self, elem := parseBounds(sf.Tag.Get("validate"))
	return field{
		name:     name,
		typ:      sf.Type,
		optional: strings.Contains(opts, "omitempty") || (sf.Type.Kind() == reflect.Pointer && !self.required),
		self:     self,
		elem:     elem,
		desc:     sf.Tag.Get("desc"),
		def:      sf.Tag.Get("default"),
	}, true
}

func variantType(c Criterion) reflect.Type {
	card, _ := NewCard(c)
	return reflect.TypeOf(card).Elem()
}
