package extraction_engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Answer is a correct answer as the model gave it: either text or an option index.
type Answer struct {
	Text    string
	Index   int
	IsIndex bool
}

// Candidate is a loosely validated question record parsed from model output.
// Only Question is required; nil pointers mean the field was absent.
type Candidate struct {
	Question      string
	Type          string
	Options       []string
	CorrectAnswer *Answer
	Points        *float64
	Section       string
	Chunk         int
}

var (
	questionKeys = []string{"question", "questionText", "question_text", "text", "prompt"}
	typeKeys     = []string{"type", "questionType", "question_type"}
	optionKeys   = []string{"options", "choices", "answers"}
	answerKeys   = []string{"correctAnswer", "correct_answer", "answer", "correct"}
	pointKeys    = []string{"points", "marks", "score"}
	sectionKeys  = []string{"section", "topic"}
	optionText   = []string{"text", "option", "value", "label"}
)

// decodePayload accepts a JSON array of question objects, an object with a
// "questions" array, or a single question object.
func decodePayload(data []byte) ([]Candidate, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		out := make([]Candidate, 0, len(items))
		for _, item := range items {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(item, &fields); err != nil {
				continue
			}
			if c, ok := candidateFromFields(fields); ok {
				out = append(out, c)
			}
		}
		return out, nil

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		if qs, ok := lookup(fields, "questions"); ok {
			return decodePayload(qs)
		}
		if c, ok := candidateFromFields(fields); ok {
			return []Candidate{c}, nil
		}
		return nil, fmt.Errorf("object has no questions")
	}
	return nil, fmt.Errorf("payload is not a JSON array or object")
}

func candidateFromFields(fields map[string]json.RawMessage) (Candidate, bool) {
	var c Candidate

	raw, ok := lookup(fields, questionKeys...)
	if !ok {
		return c, false
	}
	c.Question = strings.TrimSpace(decodeText(raw))
	if c.Question == "" {
		return c, false
	}

	if raw, ok := lookup(fields, typeKeys...); ok {
		c.Type = strings.TrimSpace(decodeText(raw))
	}
	if raw, ok := lookup(fields, optionKeys...); ok {
		c.Options = decodeOptions(raw)
	}
	if raw, ok := lookup(fields, answerKeys...); ok {
		c.CorrectAnswer = decodeAnswer(raw)
	}
	if raw, ok := lookup(fields, pointKeys...); ok {
		c.Points = decodeNumber(raw)
	}
	if raw, ok := lookup(fields, sectionKeys...); ok {
		c.Section = strings.TrimSpace(decodeText(raw))
	}
	return c, true
}

// lookup finds the first present key, exact match first and then case-insensitively.
func lookup(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && !isNull(v) {
			return v, true
		}
	}
	for k, v := range fields {
		for _, want := range keys {
			if strings.EqualFold(k, want) && !isNull(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// decodeText renders strings, numbers and booleans as text.
func decodeText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return boolText(b)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		if v, ok := lookup(obj, optionText...); ok {
			return decodeText(v)
		}
	}
	return ""
}

func decodeOptions(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s := strings.TrimSpace(decodeText(it)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	// {"A": "...", "B": "..."}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err == nil {
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := strings.TrimSpace(decodeText(keyed[k])); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func decodeAnswer(raw json.RawMessage) *Answer {
	raw = bytes.TrimSpace(raw)
	// only bare numbers are indexes; "2" is the text of an option
	var n json.Number
	if len(raw) > 0 && raw[0] != '"' && json.Unmarshal(raw, &n) == nil {
		if i, err := n.Int64(); err == nil {
			return &Answer{Index: int(i), IsIndex: true}
		}
		return &Answer{Text: n.String()}
	}
	s := strings.TrimSpace(decodeText(raw))
	if s == "" {
		return nil
	}
	return &Answer{Text: s}
}

func decodeNumber(raw json.RawMessage) *float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f
		}
	}
	return nil
}

func boolText(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
