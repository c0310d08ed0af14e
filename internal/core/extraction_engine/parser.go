package extraction_engine

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/logging"
)

// Strategy is one tier of response parsing. A nil error means the tier
// recognised the response, even when it held zero questions.
type Strategy interface {
	Name() string
	Parse(raw string) ([]Candidate, error)
}

type strategyFunc struct {
	name string
	fn   func(raw string) ([]Candidate, error)
}

func (s strategyFunc) Name() string                          { return s.name }
func (s strategyFunc) Parse(raw string) ([]Candidate, error) { return s.fn(raw) }

// maxReconstructAttempts bounds how many closing braces the truncation repair walks back over.
const maxReconstructAttempts = 64

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\r?\\n?(.*?)```")

// ResponseParser turns free-form completion text into question candidates,
// degrading from strict JSON to heuristic recovery.
type ResponseParser struct {
	strategies []Strategy
	log        *zap.Logger
}

// NewResponseParser builds the default chain: direct JSON, fenced block,
// bracket slice, truncated-array repair, heuristic recovery.
func NewResponseParser(log *zap.Logger) *ResponseParser {
	return &ResponseParser{
		strategies: []Strategy{
			strategyFunc{"direct", parseDirect},
			strategyFunc{"fenced", parseFenced},
			strategyFunc{"slice", parseBracketSlice},
			strategyFunc{"truncated", reconstructTruncated},
			strategyFunc{"heuristic", recoverQuestionsHeuristically},
		},
		log: logging.OrNop(log),
	}
}

// NewResponseParserWith uses a custom strategy chain.
func NewResponseParserWith(log *zap.Logger, strategies ...Strategy) *ResponseParser {
	return &ResponseParser{strategies: strategies, log: logging.OrNop(log)}
}

// Parse never fails: an unparseable response yields no candidates.
func (p *ResponseParser) Parse(raw string) []Candidate {
	cands, _ := p.parse(raw)
	return cands
}

func (p *ResponseParser) parse(raw string) ([]Candidate, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	for _, s := range p.strategies {
		cands, err := s.Parse(raw)
		if err != nil {
			continue
		}
		p.log.Debug("parse.ok", zap.String("strategy", s.Name()), zap.Int("candidates", len(cands)))
		return cands, s.Name()
	}
	p.log.Warn("parse.malformed",
		zap.Error(core.ErrMalformedResponse),
		zap.Int("response_len", len(raw)),
		zap.String("preview", preview(raw, 200)))
	return nil, ""
}

func parseDirect(raw string) ([]Candidate, error) {
	return decodePayload([]byte(raw))
}

func parseFenced(raw string) ([]Candidate, error) {
	matches := fencedBlock.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no fenced block", core.ErrMalformedResponse)
	}
	var lastErr error
	for _, m := range matches {
		cands, err := decodePayload([]byte(m[1]))
		if err == nil {
			return cands, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: fenced block: %v", core.ErrMalformedResponse, lastErr)
}

func parseBracketSlice(raw string) ([]Candidate, error) {
	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(raw, pair[0])
		end := strings.LastIndexByte(raw, pair[1])
		if start < 0 || end <= start {
			continue
		}
		if cands, err := decodePayload([]byte(raw[start : end+1])); err == nil {
			return cands, nil
		}
	}
	return nil, fmt.Errorf("%w: no parseable bracket slice", core.ErrMalformedResponse)
}

// reconstructTruncated repairs an array cut off mid-stream by closing it after
// the last complete object, walking back over earlier braces when the last one
// belongs to a nested value.
func reconstructTruncated(raw string) ([]Candidate, error) {
	start := strings.IndexByte(raw, '[')
	if start < 0 {
		return nil, fmt.Errorf("%w: no array start", core.ErrMalformedResponse)
	}
	body := raw[start:]

	end := strings.LastIndexByte(body, '}')
	for attempt := 0; end > 0 && attempt < maxReconstructAttempts; attempt++ {
		cands, err := decodePayload([]byte(body[:end+1] + "]"))
		if err == nil && len(cands) > 0 {
			return cands, nil
		}
		end = strings.LastIndexByte(body[:end], '}')
	}
	return nil, fmt.Errorf("%w: truncated array not repairable", core.ErrMalformedResponse)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
