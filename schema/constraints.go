package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Constraints renders every structural bound as one line of prose, in a fixed
// order. The prompt repeats these so the model sees the limits twice.
func (r *Registry) Constraints() []string {
	return Constraints()
}

func Constraints() []string {
	var out []string
	out = append(out, fmt.Sprintf("items: exactly %d cards, one per criterion (%s), in that order",
		len(Criteria), criteriaList()))
	out = append(out, "items[].winnerCasinoId: must be the id of a supplied casino and should be unique across items")
	walkConstraints(&out, "", reflect.TypeOf(Snapshot{}))
	walkConstraints(&out, "items[]", reflect.TypeOf(CardBase{}))
	for _, c := range Criteria {
		walkVariant(&out, c)
	}
	return out
}

// walkVariant emits only the fields a variant adds to CardBase.
func walkVariant(out *[]string, c Criterion) {
	t := variantType(c)
	prefix := fmt.Sprintf("items[%s]", c)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous {
			continue
		}
		if f, ok := toField(sf); ok {
			describe(out, prefix, f)
		}
	}
}

func walkConstraints(out *[]string, prefix string, t reflect.Type) {
	for _, f := range fieldsOf(t) {
		if f.typ.Kind() == reflect.Slice && f.typ.Elem() == itemType {
			continue
		}
		describe(out, prefix, f)
	}
}

func describe(out *[]string, prefix string, f field) {
	path := f.name
	if prefix != "" {
		path = prefix + "." + f.name
	}
	t := f.typ
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var parts []string
	if f.optional {
		parts = append(parts, "optional")
	}
	switch t.Kind() {
	case reflect.String:
		parts = append(parts, stringRule(f.self)...)
	case reflect.Int, reflect.Int64, reflect.Float64:
		parts = append(parts, numberRule(f.self)...)
	case reflect.Slice:
		parts = append(parts, itemsRule(f.self)...)
		if et := t.Elem(); et.Kind() == reflect.String {
			if r := stringRule(f.elem); len(r) > 0 {
				parts = append(parts, "each "+strings.Join(r, ", "))
			}
		}
	}
	if f.def != "" {
		parts = append(parts, "default "+f.def)
	}
	if len(parts) > 0 && !(len(parts) == 1 && f.optional) {
		*out = append(*out, path+": "+strings.Join(parts, ", "))
	}

	switch {
	case t.Kind() == reflect.Struct:
		walkConstraints(out, path, t)
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Struct:
		walkConstraints(out, path+"[]", t.Elem())
	}
}

func stringRule(b bounds) []string {
	var r []string
	switch {
	case b.length != "":
		r = append(r, fmt.Sprintf("exactly %s characters", b.length))
	case b.min != "" && b.max != "":
		r = append(r, fmt.Sprintf("%s-%s characters", b.min, b.max))
	case b.max != "":
		r = append(r, fmt.Sprintf("at most %s characters", b.max))
	case b.min != "":
		r = append(r, fmt.Sprintf("at least %s characters", b.min))
	}
	if len(b.oneof) > 0 {
		r = append(r, "one of "+strings.Join(b.oneof, ", "))
	}
	switch b.format {
	case "uri":
		r = append(r, "absolute URL")
	case "date":
		r = append(r, "date YYYY-MM-DD")
	case "date-time":
		r = append(r, "ISO 8601 timestamp")
	}
	return r
}

func numberRule(b bounds) []string {
	switch {
	case b.gt != "":
		return []string{"greater than " + b.gt}
	case b.min != "" && b.max != "":
		return []string{fmt.Sprintf("between %s and %s", b.min, b.max)}
	case b.min != "":
		return []string{"at least " + b.min}
	case b.max != "":
		return []string{"at most " + b.max}
	}
	return nil
}

func itemsRule(b bounds) []string {
	switch {
	case b.length != "":
		return []string{fmt.Sprintf("exactly %s items", b.length)}
	case b.min != "" && b.max != "":
		return []string{fmt.Sprintf("%s-%s items", b.min, b.max)}
	case b.max != "":
		return []string{fmt.Sprintf("at most %s items", b.max)}
	case b.min != "":
		return []string{fmt.Sprintf("at least %s items", b.min)}
	}
	return nil
}
