package extraction_engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/Examina/internal/core"
)

var (
	errThrottled = &core.RateLimitError{Err: errors.New("429 Too Many Requests")}
	errTransport = errors.New("connection reset by peer")
)

// scriptedClient answers through respond and remembers every prompt. n counts
// calls per prompt kind so scripts can fail the first attempt only.
type scriptedClient struct {
	mu      sync.Mutex
	prompts []string
	seen    map[string]int
	respond func(kind string, n int, model, prompt string) (string, error)
}

func newScriptedClient(respond func(kind string, n int, model, prompt string) (string, error)) *scriptedClient {
	return &scriptedClient{seen: make(map[string]int), respond: respond}
}

func (c *scriptedClient) Complete(_ context.Context, model, prompt string) (string, error) {
	c.mu.Lock()
	kind := promptKind(prompt)
	c.seen[kind]++
	n := c.seen[kind]
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	return c.respond(kind, n, model, prompt)
}

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// promptKind is "title" or "chunk N" (1-based, as written in the prompt).
func promptKind(prompt string) string {
	if strings.HasPrefix(prompt, "Suggest a short") {
		return "title"
	}
	i := strings.Index(prompt, "from part ")
	if i < 0 {
		return "unknown"
	}
	rest := prompt[i+len("from part "):]
	return "chunk " + rest[:strings.IndexByte(rest, ' ')]
}

func always(text string, err error) func(string, int, string, string) (string, error) {
	return func(string, int, string, string) (string, error) { return text, err }
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

type attemptLog struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (l *attemptLog) Record(a Attempt) {
	l.mu.Lock()
	l.attempts = append(l.attempts, a)
	l.mu.Unlock()
}

func (l *attemptLog) stage(stage string) []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Attempt
	for _, a := range l.attempts {
		if a.Stage == stage {
			out = append(out, a)
		}
	}
	return out
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

// steppingClock advances its time by every wait it is asked to sleep.
type steppingClock struct {
	mu    sync.Mutex
	t     time.Time
	waits []time.Duration
}

func newSteppingClock() *steppingClock {
	return &steppingClock{t: time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *steppingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}
