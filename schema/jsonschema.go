package schema

import (
	"reflect"
	"strconv"
)

// Dialect selects the JSON Schema subset a consumer accepts.
type Dialect int

const (
	// Full carries every bound, including string lengths and defaults.
	Full Dialect = iota
	// OpenAIStrict is the structured-outputs subset: every key is required,
	// optional values are nullable, and length/default keywords are dropped.
	OpenAIStrict
	// Gemini is the responseJsonSchema subset.
	Gemini
)

func (d Dialect) String() string {
	switch d {
	case OpenAIStrict:
		return "openai-strict"
	case Gemini:
		return "gemini"
	default:
		return "full"
	}
}

// keyword support per dialect; absent means supported.
var unsupported = map[Dialect]map[string]bool{
	OpenAIStrict: {"minLength": true, "maxLength": true, "default": true, "format:uri": true},
	Gemini:       {"minLength": true, "maxLength": true, "default": true, "exclusiveMinimum": true, "format:uri": true},
}

// JSONSchema returns the snapshot envelope schema in dialect d. The result is a
// fresh value the caller may modify.
func (r *Registry) JSONSchema(d Dialect) map[string]any {
	return JSONSchema(d)
}

// JSONSchema derives the envelope schema from the struct tags of Snapshot.
func JSONSchema(d Dialect) map[string]any {
	g := schemaGen{d: d}
	s := g.object(reflect.TypeOf(Snapshot{}), nil)
	if d == Full {
		s["$schema"] = "https://json-schema.org/draft/2020-12/schema"
		s["title"] = "TopByCriteriaSnapshot"
	}
	return s
}

type schemaGen struct {
	d Dialect
}

func (g schemaGen) allowed(keyword string) bool {
	return !unsupported[g.d][keyword]
}

func (g schemaGen) set(s map[string]any, keyword string, v any) {
	if g.allowed(keyword) {
		s[keyword] = v
	}
}

// object renders struct t. extra properties are placed before t's own fields
// and are always required.
func (g schemaGen) object(t reflect.Type, extra map[string]any) map[string]any {
	props := map[string]any{}
	required := []string{}
	for name, p := range extra {
		props[name] = p
		required = append(required, name)
	}
	for _, f := range fieldsOf(t) {
		ps := g.value(f.typ, f.self, f.elem)
		if f.desc != "" {
			ps["description"] = f.desc
		}
		if f.def != "" {
			g.set(ps, "default", parseDefault(f.def))
		}
		switch {
		case !f.optional:
			required = append(required, f.name)
		case g.d == OpenAIStrict:
			ps = nullable(ps)
			required = append(required, f.name)
		}
		props[f.name] = ps
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func (g schemaGen) value(t reflect.Type, self, elem bounds) map[string]any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == itemType {
		return g.item()
	}
	s := map[string]any{}
	switch t.Kind() {
	case reflect.String:
		s["type"] = "string"
		if len(self.oneof) > 0 {
			s["enum"] = toAny(self.oneof)
		}
		if self.format != "" && g.allowed("format:"+self.format) {
			s["format"] = self.format
		}
		g.lengths(s, self, "minLength", "maxLength")
	case reflect.Bool:
		s["type"] = "boolean"
	case reflect.Int, reflect.Int32, reflect.Int64:
		s["type"] = "integer"
		g.ranges(s, self, true)
	case reflect.Float32, reflect.Float64:
		s["type"] = "number"
		g.ranges(s, self, false)
	case reflect.Slice:
		s["type"] = "array"
		s["items"] = g.value(t.Elem(), elem, bounds{})
		if t.Elem() == itemType {
			n := strconv.Itoa(len(Criteria))
			self.min, self.max = n, n
		}
		g.lengths(s, self, "minItems", "maxItems")
	case reflect.Struct:
		return g.object(t, nil)
	}
	return s
}

func (g schemaGen) lengths(s map[string]any, b bounds, minKey, maxKey string) {
	if b.length != "" {
		n, _ := strconv.Atoi(b.length)
		g.set(s, minKey, n)
		g.set(s, maxKey, n)
		return
	}
	if b.min != "" {
		n, _ := strconv.Atoi(b.min)
		g.set(s, minKey, n)
	}
	if b.max != "" {
		n, _ := strconv.Atoi(b.max)
		g.set(s, maxKey, n)
	}
}

func (g schemaGen) ranges(s map[string]any, b bounds, integer bool) {
	num := func(v string) any {
		f, _ := strconv.ParseFloat(v, 64)
		if integer {
			return int(f)
		}
		return f
	}
	if b.min != "" {
		s["minimum"] = num(b.min)
	}
	if b.max != "" {
		s["maximum"] = num(b.max)
	}
	if b.gt != "" {
		// an exclusive integer bound is an inclusive one shifted by one
		if integer {
			s["minimum"] = num(b.gt).(int) + 1
		} else {
			g.set(s, "exclusiveMinimum", num(b.gt))
		}
	}
}

// item renders the card union as anyOf over the six variants, each pinned to
// its criterion by a single-value enum.
func (g schemaGen) item() map[string]any {
	variants := make([]any, 0, len(Criteria))
	for _, c := range Criteria {
		disc := map[string]any{
			"type":        "string",
			"enum":        []any{string(c)},
			"description": "Card discriminator",
		}
		variants = append(variants, g.object(variantType(c), map[string]any{"criterion": disc}))
	}
	return map[string]any{"anyOf": variants}
}

// nullable widens s to also accept null.
func nullable(s map[string]any) map[string]any {
	if t, ok := s["type"].(string); ok && t != "object" {
		s["type"] = []any{t, "null"}
		if enum, ok := s["enum"].([]any); ok {
			s["enum"] = append(enum, nil)
		}
		return s
	}
	out := map[string]any{"anyOf": []any{s, map[string]any{"type": "null"}}}
	if d, ok := s["description"]; ok {
		out["description"] = d
		delete(s, "description")
	}
	return out
}

func parseDefault(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
