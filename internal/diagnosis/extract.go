package diagnosis

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/obdai/obdai/pkg/models"
)

// previewLimit bounds the cleaned text carried by InvalidJSON errors.
const previewLimit = 200

// Opening and closing markdown fences, with or without a json tag.
var fencePattern = regexp.MustCompile("(?i)```(?:json)?[ \t]*\r?\n?")

// Extractor turns free text from the model into a validated DiagnosisResult.
//
// By default it is lenient: numeric and boolean fields sent as strings are
// decoded, and Repair back-fills isMostLikely, clamps difficulty and appends a
// missing disclaimer. With Strict set, a payload that would need any of those
// changes is rejected as IncompleteDiagnosis instead.
type Extractor struct {
	Strict bool
}

// CleanResponse strips whitespace and code fences, then keeps everything from
// the first '{' to the last '}'. It returns "" when no braces are found.
// Braces in prose outside the payload are not tolerated.
func CleanResponse(text string) string {
	s := strings.TrimSpace(text)
	s = fencePattern.ReplaceAllString(s, "")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

// Extract parses and validates text. Every failure is a *Error.
func (x Extractor) Extract(text string) (*models.DiagnosisResult, error) {
	result, _, err := x.extract(text)
	return result, err
}

// extract is Extract that also names every field it coerced or repaired.
func (x Extractor) extract(text string) (*models.DiagnosisResult, []string, error) {
	cleaned := CleanResponse(text)

	var parsed any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		preview := cleaned
		if preview == "" {
			preview = strings.TrimSpace(text)
		}
		return nil, nil, newError(KindInvalidJSON, truncate(preview, previewLimit), err)
	}

	root, ok := parsed.(map[string]any)
	if !ok {
		return nil, nil, newError(KindMissingDiagnosisKey, "top-level value is not an object", nil)
	}
	diag, ok := root["diagnosis"].(map[string]any)
	if !ok {
		return nil, nil, newError(KindMissingDiagnosisKey, "no \"diagnosis\" object", nil)
	}

	result, coerced, failed := validate(diag)
	if len(failed) > 0 {
		return nil, nil, incomplete(failed)
	}

	if x.Strict {
		if needed := append(coerced, repairs(result, false)...); len(needed) > 0 {
			return nil, nil, incomplete(needed)
		}
		return result, nil, nil
	}

	return result, append(coerced, Repair(result)...), nil
}

// Repair applies the leniency rules to r in place and returns a description of
// each change. Only the first fix is promoted when none is marked most likely;
// fixes already flagged are left alone.
func Repair(r *models.DiagnosisResult) []string {
	return repairs(r, true)
}

func repairs(r *models.DiagnosisResult, apply bool) []string {
	var changed []string

	if len(r.SuggestedFixes) > 0 && r.MostLikelyCount() == 0 {
		changed = append(changed, "suggestedFixes[0].isMostLikely")
		if apply {
			r.SuggestedFixes[0].IsMostLikely = true
		}
	}

	for i := range r.SuggestedFixes {
		d := r.SuggestedFixes[i].Difficulty
		if d < models.MinDifficulty || d > models.MaxDifficulty {
			changed = append(changed, fmt.Sprintf("suggestedFixes[%d].difficulty", i))
			if apply {
				r.SuggestedFixes[i].Difficulty = max(models.MinDifficulty, min(d, models.MaxDifficulty))
			}
		}
	}

	explanation := strings.TrimSpace(r.Explanation)
	if !strings.HasSuffix(explanation, models.Disclaimer) {
		changed = append(changed, "explanation.disclaimer")
		if apply {
			r.Explanation = explanation + " " + models.Disclaimer
		}
	}

	return changed
}

// validate checks the diagnosis object and collects every failing field, plus
// the fields that were decoded from strings.
func validate(diag map[string]any) (*models.DiagnosisResult, []string, []string) {
	var coerced, failed []string
	result := &models.DiagnosisResult{}

	if s, ok := nonEmptyString(diag["explanation"]); ok {
		result.Explanation = s
	} else {
		failed = append(failed, "explanation")
	}

	if s, ok := nonEmptyString(diag["commonality"]); ok {
		result.Commonality = s
	} else {
		failed = append(failed, "commonality")
	}

	rawFixes, ok := diag["suggestedFixes"].([]any)
	if !ok || len(rawFixes) == 0 {
		return result, coerced, append(failed, "suggestedFixes")
	}

	for i, raw := range rawFixes {
		fix, fixCoerced, fixFailed := parseFix(raw)
		for _, f := range fixCoerced {
			coerced = append(coerced, fmt.Sprintf("suggestedFixes[%d]%s", i, f))
		}
		for _, f := range fixFailed {
			failed = append(failed, fmt.Sprintf("suggestedFixes[%d]%s", i, f))
		}
		result.SuggestedFixes = append(result.SuggestedFixes, fix)
	}

	return result, coerced, failed
}

// parseFix decodes one fix. Field names are returned as ".name" style
// suffixes, or "" when the element is not an object at all. Numbers and
// booleans sent as strings ("3", "true") are decoded and reported as coerced.
func parseFix(raw any) (models.SuggestedFix, []string, []string) {
	var fix models.SuggestedFix

	obj, ok := raw.(map[string]any)
	if !ok {
		return fix, nil, []string{""}
	}

	var coerced, failed []string

	if s, ok := nonEmptyString(obj["name"]); ok {
		fix.Name = s
	} else {
		failed = append(failed, ".name")
	}

	switch v := obj["difficulty"].(type) {
	case nil:
	case float64:
		fix.Difficulty = int(math.Round(v))
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			failed = append(failed, ".difficulty")
			break
		}
		fix.Difficulty = int(math.Round(n))
		coerced = append(coerced, ".difficulty")
	default:
		failed = append(failed, ".difficulty")
	}

	switch v := obj["description"].(type) {
	case nil:
	case string:
		fix.Description = strings.TrimSpace(v)
	default:
		failed = append(failed, ".description")
	}

	switch v := obj["isMostLikely"].(type) {
	case nil:
	case bool:
		fix.IsMostLikely = v
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			failed = append(failed, ".isMostLikely")
			break
		}
		fix.IsMostLikely = b
		coerced = append(coerced, ".isMostLikely")
	default:
		failed = append(failed, ".isMostLikely")
	}

	return fix, coerced, failed
}

func incomplete(fields []string) *Error {
	e := newError(KindIncompleteDiagnosis, "", nil)
	e.Fields = fields
	return e
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
