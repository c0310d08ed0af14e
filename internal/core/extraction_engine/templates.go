package extraction_engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/markdave123-py/Examina/internal/models"
)

const (
	minTemplateQuestions = 2
	maxTemplateQuestions = 5
	maxTitleLength       = 50
)

var templateTitles = [...]string{
	"Comprehensive Knowledge Assessment",
	"Subject Mastery Evaluation",
	"Core Concepts Review Test",
	"Learning Progress Assessment",
	"Topic Understanding Check",
	"Educational Content Quiz",
	"Study Material Assessment",
	"Knowledge Retention Test",
}

var knownSubjects = []string{"Math", "Science", "History", "Literature", "Programming", "Business", "Physics", "Chemistry"}

type questionTemplate struct {
	typ     models.QuestionType
	text    string
	options []string
}

// %[1]s subject, %[2]s exam type, %[3]s document name
var questionTemplates = []questionTemplate{
	{
		typ:     models.QuestionMCQ,
		text:    "What is the main topic covered in this %[1]s %[2]s based on %[3]s?",
		options: []string{"Main %[1]s concepts", "Advanced %[1]s topics", "Basic %[1]s principles", "Intermediate %[1]s skills"},
	},
	{
		typ:  models.QuestionTrueFalse,
		text: "The material in %[3]s covers essential %[1]s knowledge for this %[2]s.",
	},
	{
		typ:     models.QuestionMCQ,
		text:    "Which of the following is a key principle discussed in %[3]s?",
		options: []string{"Fundamental concept", "Advanced theory", "Basic principle", "Intermediate skill"},
	},
	{
		typ:     models.QuestionMCQ,
		text:    "What is the best way to apply the %[1]s knowledge from %[3]s?",
		options: []string{"Practice with real examples", "Memorize definitions only", "Skip the difficult sections", "Read the summary once"},
	},
	{
		typ:     models.QuestionMCQ,
		text:    "According to %[3]s, which statement best describes the purpose of this %[2]s?",
		options: []string{"To assess understanding of the material", "To review unrelated topics", "To test typing speed", "None of the above"},
	},
}

// GenerateTemplates returns 2 to 5 generic questions, one per 1000 characters
// of source text, that name the exam type and file. Every question passes
// FilterByType.
func GenerateTemplates(sourceText, examType, fileName string, now time.Time) []models.Question {
	count := utf8.RuneCountInString(sourceText) / 1000
	count = max(count, minTemplateQuestions)
	count = min(count, maxTemplateQuestions, len(questionTemplates))

	subject := SubjectFromFileName(fileName)
	if subject == "" {
		subject = "General"
	}
	if examType = strings.TrimSpace(examType); examType == "" {
		examType = models.ExamQuiz
	}
	docName := strings.TrimSpace(fileName)
	if docName == "" {
		docName = "the uploaded document"
	}

	stamp := now.UnixMilli()
	out := make([]models.Question, 0, count)
	for i, tpl := range questionTemplates[:count] {
		q := models.Question{
			ID:           fmt.Sprintf("template_q_%d_%d", stamp, i),
			Question:     fmt.Sprintf(tpl.text, subject, examType, docName),
			Type:         tpl.typ,
			Points:       1,
			Section:      "General",
			CorrectIndex: 0,
		}
		for _, o := range tpl.options {
			q.Options = append(q.Options, fmt.Sprintf(o, subject))
		}
		if tpl.typ.IsBoolean() {
			q.Options = append([]string(nil), booleanOptions...)
		}
		q.CorrectAnswer = q.Options[0]
		out = append(out, q)
	}
	return out
}

// SubjectFromFileName returns the first known subject named in fileName.
func SubjectFromFileName(fileName string) string {
	name := strings.ToLower(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	for _, s := range knownSubjects {
		if strings.Contains(name, strings.ToLower(s)) {
			return s
		}
	}
	return ""
}

// TemplateTitle picks one of the fixed titles from a 32-bit hash over the
// UTF-16 code units of text, so the same document always gets the same title.
func TemplateTitle(text string) string {
	var h int32
	for _, u := range utf16.Encode([]rune(text)) {
		h = h*31 + int32(u)
	}
	idx := int64(h)
	if idx < 0 {
		idx = -idx
	}
	return templateTitles[idx%int64(len(templateTitles))]
}

// cleanTitle strips quotes and line breaks from a model title and caps it.
func cleanTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '`', '\n', '\r':
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "Title:"))
	return strings.TrimSpace(prefix(s, maxTitleLength))
}
