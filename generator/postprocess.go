package generator

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"top_criteria_generator/schema"
)

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// PostProcess runs the independent validation pass over the model's document
// and collects advisory warnings. Any violation rejects the whole document.
func PostProcess(reg *schema.Registry, raw []byte, gc GenerationContext, eligible int) (*schema.Snapshot, []string, error) {
	doc := bytes.TrimSpace(raw)
	if m := fenceRe.FindSubmatch(doc); m != nil {
		doc = m[1]
	}
	if len(doc) == 0 {
		return nil, nil, &ContentValidationError{
			Violations: schema.ValidationErrors{{Rule: schema.RuleMalformed, Message: "model returned an empty document"}},
			Hint:       ValidationHint,
		}
	}

	snap, err := reg.Validate(doc)
	if err != nil {
		var ve schema.ValidationErrors
		if errors.As(err, &ve) {
			return nil, nil, &ContentValidationError{Violations: ve, Hint: ValidationHint}
		}
		return nil, nil, err
	}
	return snap, warnings(snap, gc, eligible), nil
}

func warnings(snap *schema.Snapshot, gc GenerationContext, eligible int) []string {
	var out []string
	if n := len(gc.Casinos); n < len(schema.Criteria) {
		out = append(out, fmt.Sprintf("only %d casinos supplied for %d categories; winners must repeat", n, len(schema.Criteria)))
	}
	for _, d := range schema.DuplicateWinners(snap) {
		out = append(out, fmt.Sprintf("casino %s wins %d categories", d.CasinoID, len(d.Criteria)))
	}
	known := make(map[string]bool, eligible)
	for i, c := range gc.Casinos {
		if i >= eligible {
			break
		}
		known[c.ID] = true
	}
	for _, it := range snap.Items {
		id := it.Card.Common().WinnerCasinoID
		if !known[id] {
			out = append(out, fmt.Sprintf("%s winner %q is not one of the eligible casinos", it.Card.Criterion(), id))
		}
	}
	return out
}
