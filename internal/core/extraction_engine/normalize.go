package extraction_engine

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/markdave123-py/Examina/internal/models"
)

const (
	// DefaultMinQuestionLength keeps terse model questions such as "Q1?".
	DefaultMinQuestionLength = 3
	maxOptions               = 4
	maxQuestionLength        = 1000
	maxOptionLength          = 500
)

var typeAliases = map[string]models.QuestionType{
	"mcq":               models.QuestionMCQ,
	"multiple_choice":   models.QuestionMCQ,
	"multiple-choice":   models.QuestionMCQ,
	"multiplechoice":    models.QuestionMCQ,
	"choice":            models.QuestionMCQ,
	"true_false":        models.QuestionTrueFalse,
	"true-false":        models.QuestionTrueFalse,
	"truefalse":         models.QuestionTrueFalse,
	"true/false":        models.QuestionTrueFalse,
	"boolean":           models.QuestionTrueFalse,
	"fill_blank":        models.QuestionFillBlank,
	"fill-blank":        models.QuestionFillBlank,
	"fill_in_the_blank": models.QuestionFillBlank,
	"fill-in-the-blank": models.QuestionFillBlank,
	"fill":              models.QuestionFillBlank,
	"open":              models.QuestionOpen,
	"open_ended":        models.QuestionOpen,
	"essay":             models.QuestionOpen,
	"short_answer":      models.QuestionOpen,
}

// CanonicalType maps a model-supplied type name onto the allowed set.
func CanonicalType(s string) (models.QuestionType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	t, ok := typeAliases[key]
	return t, ok
}

// Normalizer maps candidates onto models.Question, applying defaults and
// discarding junk.
type Normalizer struct {
	MinLength int
	Now       func() time.Time
}

// Normalize keeps candidate order. IDs are unique within one call.
func (n Normalizer) Normalize(cands []Candidate) []models.Question {
	minLen := n.MinLength
	if minLen <= 0 {
		minLen = DefaultMinQuestionLength
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	stamp := now().UnixMilli()

	out := make([]models.Question, 0, len(cands))
	for i, c := range cands {
		text := truncateRunes(strings.TrimSpace(c.Question), maxQuestionLength)
		if utf8.RuneCountInString(text) < minLen {
			continue
		}

		q := models.Question{
			ID:           fmt.Sprintf("q_%d_%d_%d", stamp, c.Chunk, i),
			Question:     text,
			Type:         normalizeType(c.Type),
			Options:      normalizeOptions(c.Options),
			Points:       normalizePoints(c.Points),
			Section:      strings.TrimSpace(c.Section),
			Chunk:        c.Chunk,
			CorrectIndex: -1,
		}
		q.CorrectAnswer, q.CorrectIndex = resolveAnswer(c.CorrectAnswer, q.Options, q.Type)
		out = append(out, q)
	}
	return out
}

// normalizeType defaults to mcq. Unknown names are kept lower-cased so the
// type filter can reject them.
func normalizeType(s string) models.QuestionType {
	if strings.TrimSpace(s) == "" {
		return models.QuestionMCQ
	}
	if t, ok := CanonicalType(s); ok {
		return t
	}
	return models.QuestionType(strings.ToLower(strings.TrimSpace(s)))
}

func normalizeOptions(opts []string) []string {
	var out []string
	for _, o := range opts {
		o = truncateRunes(strings.TrimSpace(o), maxOptionLength)
		if o == "" {
			continue
		}
		out = append(out, o)
		if len(out) == maxOptions {
			break
		}
	}
	return out
}

func normalizePoints(p *float64) int {
	if p == nil || math.IsNaN(*p) || *p <= 0 {
		return 1
	}
	n := int(math.Round(*p))
	if n < 1 {
		return 1
	}
	return n
}

// resolveAnswer returns the answer text and its option index (-1 if none).
// Absent answers and out-of-range indexes default to the first option.
func resolveAnswer(a *Answer, options []string, t models.QuestionType) (string, int) {
	if a == nil {
		if len(options) > 0 {
			return options[0], 0
		}
		return "", -1
	}

	if a.IsIndex {
		if a.Index >= 0 && a.Index < len(options) {
			return options[a.Index], a.Index
		}
		if len(options) > 0 {
			return options[0], 0
		}
		return "", -1
	}

	text := strings.TrimSpace(a.Text)
	if t.IsBoolean() {
		switch strings.ToLower(text) {
		case "true", "t", "yes":
			text = "True"
		case "false", "f", "no":
			text = "False"
		}
	}
	if i := optionIndex(text, options); i >= 0 {
		return options[i], i
	}
	if text == "" && len(options) > 0 {
		return options[0], 0
	}
	return text, -1
}

func optionIndex(answer string, options []string) int {
	for i, o := range options {
		if strings.EqualFold(o, answer) {
			return i
		}
	}
	// "B", "b)", "(C)", "D."
	letter := strings.Trim(answer, "()., ")
	if len(letter) == 1 {
		idx := int(strings.ToUpper(letter)[0]) - 'A'
		if idx >= 0 && idx < len(options) {
			return idx
		}
	}
	return -1
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
