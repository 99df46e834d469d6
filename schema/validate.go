package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rule names the violated constraint of a ValidationError.
type Rule string

const (
	RuleRequired      Rule = "required"
	RuleMinLength     Rule = "min_length"
	RuleMaxLength     Rule = "max_length"
	RuleLength        Rule = "length"
	RuleMinItems      Rule = "min_items"
	RuleMaxItems      Rule = "max_items"
	RuleCardinality   Rule = "cardinality"
	RuleRange         Rule = "range"
	RuleEnum          Rule = "enum"
	RuleDiscriminator Rule = "discriminator"
	RuleFormat        Rule = "format"
	RuleType          Rule = "type"
	RuleUnknownField  Rule = "unknown_field"
	RuleMalformed     Rule = "malformed"
)

// ValidationError is one field-level violation.
type ValidationError struct {
	Path    string `json:"path"`
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors is the error returned by the Registry. It is never empty.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 1 {
		return "schema: " + ve[0].String()
	}
	return fmt.Sprintf("schema: %d violations, first: %s", len(ve), ve[0].String())
}

// Messages renders each violation as "path: message".
func (ve ValidationErrors) Messages() []string {
	out := make([]string, len(ve))
	for i, e := range ve {
		out[i] = e.String()
	}
	return out
}

// Has reports whether any violation uses rule r.
func (ve ValidationErrors) Has(r Rule) bool {
	for _, e := range ve {
		if e.Rule == r {
			return true
		}
	}
	return false
}

// Option configures a Registry.
type Option func(*Registry)

// WithUniqueWinners makes a repeated winnerCasinoId across items a
// cardinality violation instead of an advisory finding.
func WithUniqueWinners() Option {
	return func(r *Registry) { r.uniqueWinners = true }
}

// Registry validates candidates against the snapshot contract. It holds no
// per-call state and is safe for concurrent use.
type Registry struct {
	v             *validator.Validate
	uniqueWinners bool
}

func NewRegistry(opts ...Option) *Registry {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	r := &Registry{v: v}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Validate decodes candidate JSON and checks every bound. On failure the
// error is ValidationErrors and the snapshot is nil; nothing is salvaged.
func (r *Registry) Validate(candidate []byte) (*Snapshot, error) {
	var envelope struct {
		Snapshot
		Items json.RawMessage `json:"items"`
	}
	dec := json.NewDecoder(bytes.NewReader(candidate))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		return nil, ValidationErrors{decodeViolation("", err)}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ValidationErrors{{Rule: RuleMalformed, Message: "unexpected data after the snapshot object"}}
	}

	var errs ValidationErrors
	snap := envelope.Snapshot
	snap.Items = nil

	var rawItems []json.RawMessage
	switch {
	case len(envelope.Items) == 0 || string(envelope.Items) == "null":
		errs = append(errs, ValidationError{Path: "items", Rule: RuleRequired, Message: "is required"})
	default:
		if err := json.Unmarshal(envelope.Items, &rawItems); err != nil {
			errs = append(errs, ValidationError{Path: "items", Rule: RuleType, Message: "must be an array"})
		}
	}

	itemsOK := true
	for i, raw := range rawItems {
		path := fmt.Sprintf("items[%d]", i)
		c, present, err := peekCriterion(raw)
		if err != nil {
			errs = append(errs, ValidationError{Path: path, Rule: RuleType, Message: "must be an object"})
			itemsOK = false
			continue
		}
		if !present {
			errs = append(errs, ValidationError{Path: path + ".criterion", Rule: RuleRequired, Message: "is required"})
			itemsOK = false
			continue
		}
		card, ok := NewCard(c)
		if !ok {
			errs = append(errs, ValidationError{
				Path:    path + ".criterion",
				Rule:    RuleDiscriminator,
				Message: fmt.Sprintf("%q is not one of %s", c, criteriaList()),
			})
			itemsOK = false
			continue
		}
		if err := decodeStrict(raw, card); err != nil {
			errs = append(errs, decodeViolation(path, err))
			itemsOK = false
			continue
		}
		snap.Items = append(snap.Items, Item{Card: card})
	}

	// Cardinality is only meaningful when every item was decodable.
	if itemsOK {
		errs = append(errs, r.check(&snap)...)
	} else {
		errs = append(errs, r.checkFields(&snap)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	snap.ApplyDefaults()
	return &snap, nil
}

// ValidateSnapshot checks an already typed snapshot. It does not modify s.
func (r *Registry) ValidateSnapshot(s *Snapshot) error {
	if s == nil {
		return ValidationErrors{{Rule: RuleRequired, Message: "snapshot is required"}}
	}
	if errs := r.check(s); len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *Registry) check(s *Snapshot) ValidationErrors {
	errs := r.checkFields(s)
	errs = append(errs, r.checkItems(s)...)
	return errs
}

func (r *Registry) checkFields(s *Snapshot) ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, r.structErrors("", s)...)
	for i, it := range s.Items {
		if it.Card == nil {
			continue
		}
		errs = append(errs, r.structErrors(fmt.Sprintf("items[%d]", i), it.Card)...)
	}
	return errs
}

func (r *Registry) checkItems(s *Snapshot) ValidationErrors {
	var errs ValidationErrors
	if n := len(s.Items); n != len(Criteria) {
		errs = append(errs, ValidationError{
			Path:    "items",
			Rule:    RuleCardinality,
			Message: fmt.Sprintf("must contain exactly %d items, got %d", len(Criteria), n),
		})
	}
	seen := make(map[Criterion]int, len(Criteria))
	for i, it := range s.Items {
		if it.Card == nil {
			errs = append(errs, ValidationError{Path: fmt.Sprintf("items[%d]", i), Rule: RuleRequired, Message: "is required"})
			continue
		}
		c := it.Card.Criterion()
		if prev, dup := seen[c]; dup {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("items[%d].criterion", i),
				Rule:    RuleCardinality,
				Message: fmt.Sprintf("duplicate criterion %q (already at items[%d])", c, prev),
			})
			continue
		}
		seen[c] = i
	}
	for _, c := range Criteria {
		if _, ok := seen[c]; !ok {
			errs = append(errs, ValidationError{
				Path:    "items",
				Rule:    RuleCardinality,
				Message: fmt.Sprintf("missing criterion %q", c),
			})
		}
	}
	if r.uniqueWinners {
		for _, d := range DuplicateWinners(s) {
			errs = append(errs, ValidationError{
				Path:    "items",
				Rule:    RuleCardinality,
				Message: fmt.Sprintf("winner %q is repeated across %s", d.CasinoID, joinCriteria(d.Criteria)),
			})
		}
	}
	return errs
}

// DuplicateWinner reports a casino that wins more than one criterion.
type DuplicateWinner struct {
	CasinoID string
	Criteria []Criterion
}

// DuplicateWinners lists winners repeated across items, ordered by casino id.
func DuplicateWinners(s *Snapshot) []DuplicateWinner {
	by := map[string][]Criterion{}
	for _, it := range s.Items {
		if it.Card == nil {
			continue
		}
		id := it.Card.Common().WinnerCasinoID
		by[id] = append(by[id], it.Card.Criterion())
	}
	var out []DuplicateWinner
	for id, cs := range by {
		if len(cs) > 1 {
			out = append(out, DuplicateWinner{CasinoID: id, Criteria: cs})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CasinoID < out[j].CasinoID })
	return out
}

func (r *Registry) structErrors(prefix string, v any) ValidationErrors {
	err := r.v.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Path: prefix, Rule: RuleMalformed, Message: err.Error()}}
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, translate(prefix, fe))
	}
	return out
}

func translate(prefix string, fe validator.FieldError) ValidationError {
	path := fieldPath(prefix, fe.Namespace())
	kind := fe.Kind()
	param := fe.Param()
	ve := ValidationError{Path: path}

	switch fe.Tag() {
	case "required":
		ve.Rule, ve.Message = RuleRequired, "is required"
	case "min", "max", "len", "gt":
		ve.Rule, ve.Message = boundRule(fe.Tag(), kind, param)
	case "oneof":
		ve.Rule, ve.Message = RuleEnum, fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(param, " ", ", "))
	case "url":
		ve.Rule, ve.Message = RuleFormat, "must be an absolute URL"
	case "datetime":
		if param == DateLayout {
			ve.Rule, ve.Message = RuleFormat, "must be a date (YYYY-MM-DD)"
		} else {
			ve.Rule, ve.Message = RuleFormat, "must be an RFC 3339 timestamp"
		}
	default:
		ve.Rule, ve.Message = RuleMalformed, fmt.Sprintf("failed %q", fe.Tag())
	}
	return ve
}

func boundRule(tag string, kind reflect.Kind, param string) (Rule, string) {
	switch kind {
	case reflect.String:
		switch tag {
		case "min":
			return RuleMinLength, fmt.Sprintf("must be at least %s characters", param)
		case "max":
			return RuleMaxLength, fmt.Sprintf("must be at most %s characters", param)
		default:
			return RuleLength, fmt.Sprintf("must be exactly %s characters", param)
		}
	case reflect.Slice, reflect.Array, reflect.Map:
		switch tag {
		case "min":
			return RuleMinItems, fmt.Sprintf("must contain at least %s items", param)
		case "max":
			return RuleMaxItems, fmt.Sprintf("must contain at most %s items", param)
		default:
			return RuleCardinality, fmt.Sprintf("must contain exactly %s items", param)
		}
	default:
		switch tag {
		case "min":
			return RuleRange, fmt.Sprintf("must be >= %s", param)
		case "max":
			return RuleRange, fmt.Sprintf("must be <= %s", param)
		case "gt":
			return RuleRange, fmt.Sprintf("must be > %s", param)
		default:
			return RuleRange, fmt.Sprintf("must equal %s", param)
		}
	}
}

// fieldPath turns "MostTrustedCard.CardBase.keyStats[0].label" into
// "<prefix>.keyStats[0].label".
func fieldPath(prefix, namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}
	kept := parts[:0]
	for _, p := range parts {
		if p == "CardBase" {
			continue
		}
		kept = append(kept, p)
	}
	rest := strings.Join(kept, ".")
	switch {
	case prefix == "":
		return rest
	case rest == "":
		return prefix
	default:
		return prefix + "." + rest
	}
}

func decodeViolation(prefix string, err error) ValidationError {
	join := func(p string) string {
		switch {
		case prefix == "":
			return p
		case p == "":
			return prefix
		default:
			return prefix + "." + p
		}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return ValidationError{
			Path:    join(typeErr.Field),
			Rule:    RuleType,
			Message: fmt.Sprintf("must be %s, got %s", jsonKind(typeErr.Type), typeErr.Value),
		}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return ValidationError{Path: prefix, Rule: RuleMalformed, Message: "is not valid JSON: " + syntaxErr.Error()}
	}
	var unknownCrit *UnknownCriterionError
	if errors.As(err, &unknownCrit) && unknownCrit.Missing {
		return ValidationError{Path: join("criterion"), Rule: RuleRequired, Message: "is required"}
	}
	if errors.As(err, &unknownCrit) {
		return ValidationError{Path: join("criterion"), Rule: RuleDiscriminator, Message: unknownCrit.Error()}
	}
	// encoding/json reports unknown keys only as text.
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		field := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return ValidationError{Path: join(field), Rule: RuleUnknownField, Message: "is not allowed"}
	}
	return ValidationError{Path: prefix, Rule: RuleMalformed, Message: err.Error()}
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "a value"
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func criteriaList() string {
	return joinCriteria(Criteria)
}

func joinCriteria(cs []Criterion) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
