package llm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/logging"
)

const availabilityPrompt = "Reply with the single word: ok"

// Availability is a cached model probe result.
type Availability struct {
	Available bool      `json:"available"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// ModelStatus is a read-only view of the selector for operators.
type ModelStatus struct {
	CurrentModel  string                  `json:"current_model"`
	Credential    core.Credential         `json:"credential"`
	UsingFallback bool                    `json:"using_fallback"`
	HasFallback   bool                    `json:"has_fallback"`
	Candidates    []string                `json:"candidates"`
	LastCheck     time.Time               `json:"last_check"`
	NextCheck     time.Time               `json:"next_check"`
	Availability  map[string]Availability `json:"availability"`
}

// SelectorConfig seeds a ModelSelector.
//
// Primary/Fallback: clients bound to the primary and optional fallback credential.
// Model:            initial model; defaults to the first candidate.
// Candidates:       models probed, in order, when the current one stops answering.
// CheckInterval:    availability cache TTL and revalidation period (24h default).
type SelectorConfig struct {
	Primary       core.CompletionClient
	Fallback      core.CompletionClient
	Model         string
	Candidates    []string
	CheckInterval time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// ModelSelector holds the process-wide model and credential choice. Reads take
// a snapshot under the read lock; failover, MarkUnavailable and Refresh are
// the only writers.
type ModelSelector struct {
	mu sync.RWMutex

	primary       core.CompletionClient
	fallback      core.CompletionClient
	usingFallback bool

	current    string
	candidates []string
	cache      map[string]Availability
	lastCheck  time.Time
	interval   time.Duration

	// serialises probes so concurrent Refresh calls do not hammer the provider
	refreshMu sync.Mutex

	now func() time.Time
	log *zap.Logger
}

var _ core.ModelSelector = (*ModelSelector)(nil)

func NewModelSelector(cfg SelectorConfig) *ModelSelector {
	s := &ModelSelector{
		primary:    cfg.Primary,
		fallback:   cfg.Fallback,
		current:    cfg.Model,
		candidates: append([]string(nil), cfg.Candidates...),
		cache:      make(map[string]Availability),
		interval:   cfg.CheckInterval,
		now:        cfg.Now,
		log:        logging.OrNop(cfg.Logger),
	}
	if s.interval <= 0 {
		s.interval = 24 * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.current == "" && len(s.candidates) > 0 {
		s.current = s.candidates[0]
	}
	if s.current != "" && !contains(s.candidates, s.current) {
		s.candidates = append([]string{s.current}, s.candidates...)
	}
	// only a fallback key: treat it as the active credential from the start
	if s.primary == nil && s.fallback != nil {
		s.usingFallback = true
	}
	return s
}

// Configured reports whether any credential is available.
func (s *ModelSelector) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary != nil || s.fallback != nil
}

// HasFallback reports whether a fallback credential exists and is not active yet.
func (s *ModelSelector) HasFallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback != nil && !s.usingFallback
}

// Active returns a consistent snapshot of client, model and credential.
func (s *ModelSelector) Active() core.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

func (s *ModelSelector) activeLocked() core.Selection {
	if s.usingFallback {
		return core.Selection{Client: s.fallback, Model: s.current, Credential: core.CredentialFallback}
	}
	return core.Selection{Client: s.primary, Model: s.current, Credential: core.CredentialPrimary}
}

// SwitchToFallback activates the fallback credential for the rest of the
// process lifetime. Only the caller that flips the state gets true.
func (s *ModelSelector) SwitchToFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallback == nil || s.usingFallback {
		return false
	}
	s.usingFallback = true
	s.log.Warn("model.credential.switched", zap.String("to", string(core.CredentialFallback)), zap.String("model", s.current))
	return true
}

// MarkUnavailable records a failed probe for model and, if it is current,
// moves to the next candidate not known to be unavailable.
func (s *ModelSelector) MarkUnavailable(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[model] = Availability{Available: false, CheckedAt: s.now(), Error: "reported unavailable"}
	if model != s.current {
		return
	}
	for _, m := range s.candidates {
		if m == model {
			continue
		}
		if a, ok := s.cache[m]; ok && !a.Available && s.fresh(a) {
			continue
		}
		s.log.Warn("model.switched", zap.String("from", model), zap.String("to", m))
		s.current = m
		// force the next Refresh to verify the new pick
		s.lastCheck = time.Time{}
		return
	}
}

// Refresh re-validates the current model once the check interval has passed
// and moves to the first available candidate when it no longer answers.
func (s *ModelSelector) Refresh(ctx context.Context) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	due := s.now().Sub(s.lastCheck) >= s.interval
	sel := s.activeLocked()
	candidates := append([]string(nil), s.candidates...)
	s.mu.RUnlock()

	if !due || sel.Client == nil {
		return sel.Model, nil
	}

	if sel.Model != "" && s.probe(ctx, sel.Client, sel.Model) {
		s.finishCheck(sel.Model)
		return sel.Model, nil
	}
	if err := ctx.Err(); err != nil {
		return sel.Model, err
	}

	for _, m := range candidates {
		if m == sel.Model {
			continue
		}
		if s.probe(ctx, sel.Client, m) {
			s.log.Info("model.updated", zap.String("from", sel.Model), zap.String("to", m))
			s.finishCheck(m)
			return m, nil
		}
		if err := ctx.Err(); err != nil {
			return sel.Model, err
		}
	}

	s.log.Warn("model.none_available", zap.String("keeping", sel.Model))
	s.finishCheck(sel.Model)
	return sel.Model, nil
}

// ForceRefresh drops cached probe results and re-validates immediately.
func (s *ModelSelector) ForceRefresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.cache = make(map[string]Availability)
	s.lastCheck = time.Time{}
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// Run re-validates every check interval until ctx is done.
func (s *ModelSelector) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.log.Warn("model.refresh.failed", zap.Error(err))
			}
		}
	}
}

// Status reports the current selection and cached availability.
func (s *ModelSelector) Status() ModelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	avail := make(map[string]Availability, len(s.cache))
	for k, v := range s.cache {
		avail[k] = v
	}
	st := ModelStatus{
		CurrentModel:  s.current,
		Credential:    s.activeLocked().Credential,
		UsingFallback: s.usingFallback,
		HasFallback:   s.fallback != nil,
		Candidates:    append([]string(nil), s.candidates...),
		LastCheck:     s.lastCheck,
		Availability:  avail,
	}
	if !s.lastCheck.IsZero() {
		st.NextCheck = s.lastCheck.Add(s.interval)
	}
	return st
}

// probe answers from the cache when the entry is younger than the interval.
func (s *ModelSelector) probe(ctx context.Context, client core.CompletionClient, model string) bool {
	s.mu.RLock()
	cached, ok := s.cache[model]
	s.mu.RUnlock()
	if ok && s.fresh(cached) {
		return cached.Available
	}

	_, err := client.Complete(ctx, model, availabilityPrompt)
	a := Availability{Available: err == nil, CheckedAt: s.now()}
	if err != nil {
		a.Error = err.Error()
		// throttling says nothing about whether the model exists
		if core.IsRateLimited(err) {
			a.Available = true
		}
		s.log.Debug("model.probe.failed", zap.String("model", model), zap.Error(err))
	}

	s.mu.Lock()
	s.cache[model] = a
	s.mu.Unlock()
	return a.Available
}

func (s *ModelSelector) finishCheck(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = model
	s.lastCheck = s.now()
}

func (s *ModelSelector) fresh(a Availability) bool {
	return s.now().Sub(a.CheckedAt) < s.interval
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
