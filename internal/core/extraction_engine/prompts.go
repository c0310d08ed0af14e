package extraction_engine

import (
	"fmt"
	"strings"
)

const titleExcerptLength = 1000

func questionPrompt(doc Document, ch RawChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create exam questions for a %s from part %d of %d of the document %q.\n\n", examTypeOrDefault(doc.ExamType), ch.Index+1, ch.Total, doc.FileName)
	b.WriteString(`Rules:
- Only ask about facts, definitions and ideas stated in the text below.
- Use these types: "mcq" (exactly 4 options), "true_false" (options "True" and "False"), "fill_blank", "open".
- "correctAnswer" must repeat the text of the correct option for mcq and true_false questions.
- "points" is a whole number, 1 for simple recall and up to 5 for reasoning.
- "section" names the topic the question belongs to.

Return ONLY a JSON array, no prose and no code fences:
[{"question":"...","type":"mcq","options":["...","...","...","..."],"correctAnswer":"...","points":1,"section":"..."}]

Text:
`)
	b.WriteString(ch.Text)
	return b.String()
}

func titlePrompt(doc Document, excerpt string) string {
	return fmt.Sprintf(`Suggest a short, professional title (at most 50 characters) for a %s built from the document %q.
Answer with the title only, without quotes.

Document excerpt:
%s`, examTypeOrDefault(doc.ExamType), doc.FileName, excerpt)
}

func examTypeOrDefault(t string) string {
	if t = strings.TrimSpace(t); t != "" {
		return t
	}
	return "quiz"
}
