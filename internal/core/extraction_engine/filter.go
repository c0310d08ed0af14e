package extraction_engine

import (
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/Examina/internal/models"
)

const (
	dedupeTextPrefix   = 100
	dedupeAnswerPrefix = 50
)

// Deduplicator drops repeated questions, keeping the first occurrence.
//
// The key is the lower-cased, whitespace-collapsed question text cut to its
// first 100 characters. WithTypeAndAnswer also folds in the type and the first
// 50 characters of the answer, which keeps distinct questions that share an
// opening apart.
type Deduplicator struct {
	WithTypeAndAnswer bool
}

func (d Deduplicator) Dedupe(qs []models.Question) []models.Question {
	seen := make(map[string]struct{}, len(qs))
	out := make([]models.Question, 0, len(qs))
	for _, q := range qs {
		k := d.key(q)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, q)
	}
	return out
}

func (d Deduplicator) key(q models.Question) string {
	k := prefix(strings.ToLower(strings.Join(strings.Fields(q.Question), " ")), dedupeTextPrefix)
	if !d.WithTypeAndAnswer {
		return k
	}
	ans := prefix(strings.ToLower(strings.TrimSpace(q.CorrectAnswer)), dedupeAnswerPrefix)
	return k + "|type:" + strings.ToLower(string(q.Type)) + "|ans:" + ans
}

func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

var booleanOptions = []string{"True", "False"}

// FilterByType keeps questions whose type is allowed and whose options fit it.
// Choice questions need two options; true/false questions without options get
// True/False filled in.
func FilterByType(qs []models.Question) []models.Question {
	out := make([]models.Question, 0, len(qs))
	for _, q := range qs {
		t, ok := CanonicalType(string(q.Type))
		if !ok {
			continue
		}
		q.Type = t

		switch {
		case t.IsChoice():
			if len(q.Options) < 2 {
				continue
			}
		case t.IsBoolean():
			if len(q.Options) == 0 {
				q.Options = append([]string(nil), booleanOptions...)
				if q.CorrectAnswer == "" {
					q.CorrectAnswer = q.Options[0]
				}
				q.CorrectIndex = optionIndex(q.CorrectAnswer, q.Options)
			}
		}
		out = append(out, q)
	}
	return out
}
