package extraction_engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/markdave123-py/Examina/internal/core"
)

const jsonString = `"((?:[^"\\]|\\.)*)"`

var (
	reQuestionKey = regexp.MustCompile(`"(?:question|questionText|question_text)"\s*:\s*` + jsonString)
	reTypeKey     = regexp.MustCompile(`"(?:type|questionType|question_type)"\s*:\s*` + jsonString)
	reOptionsKey  = regexp.MustCompile(`"(?:options|choices)"\s*:\s*\[((?:\s*` + jsonString + `\s*,?)*)`)
	reAnswerKey   = regexp.MustCompile(`"(?:correctAnswer|correct_answer|answer)"\s*:\s*("(?:[^"\\]|\\.)*"|-?\d+|true|false)`)
	rePointsKey   = regexp.MustCompile(`"(?:points|marks|score)"\s*:\s*"?(\d+(?:\.\d+)?)`)
	reSectionKey  = regexp.MustCompile(`"section"\s*:\s*` + jsonString)
	reStringLit   = regexp.MustCompile(jsonString)

	// boundary between sibling objects: `},{` with any whitespace
	reObjectBoundary = regexp.MustCompile(`\}\s*,?\s*\{`)

	reNumberedLine = regexp.MustCompile(`^\s*(?:Q(?:uestion)?\s*)?\d{1,3}\s*[.):]\s+(.+)$`)
	reOptionLine   = regexp.MustCompile(`^\s*\(?([A-Da-d])[.)]\s+(.+)$`)
	reAnswerLine   = regexp.MustCompile(`(?i)^\s*(?:correct\s+)?answer\s*[:\-]\s*(.+)$`)
)

// recoverQuestionsHeuristically is the last parsing tier. It pulls question
// fields out of broken JSON by key patterns and, when no keys are present at
// all, reads a numbered plain-text question list line by line.
func recoverQuestionsHeuristically(raw string) ([]Candidate, error) {
	if out := recoverFromKeyPatterns(raw); len(out) > 0 {
		return out, nil
	}
	if out := recoverFromNumberedText(raw); len(out) > 0 {
		return out, nil
	}
	return nil, fmt.Errorf("%w: no recoverable questions", core.ErrMalformedResponse)
}

func recoverFromKeyPatterns(raw string) []Candidate {
	var out []Candidate
	for _, seg := range reObjectBoundary.Split(raw, -1) {
		qs := reQuestionKey.FindAllStringSubmatchIndex(seg, -1)
		for k, q := range qs {
			// fields before the first question in a segment belong to it
			from, to := 0, len(seg)
			if k > 0 {
				from = q[0]
			}
			if k+1 < len(qs) {
				to = qs[k+1][0]
			}
			if c, ok := candidateFromSegment(seg[from:to], unescape(seg[q[2]:q[3]])); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func candidateFromSegment(seg, question string) (Candidate, bool) {
	c := Candidate{Question: strings.TrimSpace(question)}
	if c.Question == "" {
		return c, false
	}
	if m := reTypeKey.FindStringSubmatch(seg); m != nil {
		c.Type = unescape(m[1])
	}
	if m := reOptionsKey.FindStringSubmatch(seg); m != nil {
		for _, lit := range reStringLit.FindAllStringSubmatch(m[1], -1) {
			if s := strings.TrimSpace(unescape(lit[1])); s != "" {
				c.Options = append(c.Options, s)
			}
		}
	}
	if m := reAnswerKey.FindStringSubmatch(seg); m != nil {
		c.CorrectAnswer = answerFromLiteral(m[1])
	}
	if m := rePointsKey.FindStringSubmatch(seg); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			c.Points = &f
		}
	}
	if m := reSectionKey.FindStringSubmatch(seg); m != nil {
		c.Section = unescape(m[1])
	}
	return c, true
}

func answerFromLiteral(lit string) *Answer {
	switch {
	case strings.HasPrefix(lit, `"`):
		s := strings.TrimSpace(unescape(lit[1 : len(lit)-1]))
		if s == "" {
			return nil
		}
		return &Answer{Text: s}
	case lit == "true" || lit == "false":
		return &Answer{Text: boolText(lit == "true")}
	default:
		n, err := strconv.Atoi(lit)
		if err != nil {
			return nil
		}
		return &Answer{Index: n, IsIndex: true}
	}
}

// recoverFromNumberedText reads output shaped like
//
//	1. Question text
//	A) option
//	B) option
//	Answer: B
func recoverFromNumberedText(raw string) []Candidate {
	var (
		out []Candidate
		cur *Candidate
	)
	flush := func() {
		if cur != nil && cur.Question != "" {
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := reNumberedLine.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Candidate{Question: strings.TrimSpace(m[1])}
			continue
		}
		if cur == nil {
			continue
		}
		if m := reOptionLine.FindStringSubmatch(line); m != nil {
			cur.Options = append(cur.Options, strings.TrimSpace(m[2]))
			continue
		}
		if m := reAnswerLine.FindStringSubmatch(line); m != nil {
			cur.CorrectAnswer = &Answer{Text: strings.TrimSpace(m[1])}
		}
	}
	flush()
	return out
}

func unescape(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}
