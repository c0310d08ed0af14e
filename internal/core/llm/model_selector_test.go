package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Examina/internal/core"
)

// probeClient answers availability probes from a per-model table.
type probeClient struct {
	mu     sync.Mutex
	down   map[string]error
	probed []string
}

func (c *probeClient) Complete(_ context.Context, model, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probed = append(c.probed, model)
	if err, ok := c.down[model]; ok {
		return "", err
	}
	return "ok", nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)} }

func TestSwitchToFallbackHappensOnce(t *testing.T) {
	primary, fallback := &probeClient{}, &probeClient{}
	s := NewModelSelector(SelectorConfig{Primary: primary, Fallback: fallback, Model: "m1"})

	require.True(t, s.HasFallback())
	assert.Equal(t, core.CredentialPrimary, s.Active().Credential)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		switched int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.SwitchToFallback() {
				mu.Lock()
				switched++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, switched)
	sel := s.Active()
	assert.Equal(t, core.CredentialFallback, sel.Credential)
	assert.Same(t, fallback, sel.Client)
	assert.False(t, s.HasFallback())
}

func TestSwitchToFallbackWithoutFallback(t *testing.T) {
	s := NewModelSelector(SelectorConfig{Primary: &probeClient{}, Model: "m1"})
	assert.False(t, s.SwitchToFallback())
	assert.Equal(t, core.CredentialPrimary, s.Active().Credential)
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewModelSelector(SelectorConfig{Model: "m"}).Configured())

	onlyFallback := NewModelSelector(SelectorConfig{Fallback: &probeClient{}, Model: "m"})
	assert.True(t, onlyFallback.Configured())
	assert.Equal(t, core.CredentialFallback, onlyFallback.Active().Credential)
}

func TestRefreshKeepsWorkingModel(t *testing.T) {
	clock := newClock()
	client := &probeClient{}
	s := NewModelSelector(SelectorConfig{Primary: client, Candidates: []string{"m1", "m2"}, Now: clock.Now})

	model, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m1", model)
	assert.Equal(t, []string{"m1"}, client.probed)

	// within the interval nothing is probed
	clock.Advance(time.Hour)
	_, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, client.probed, 1)

	st := s.Status()
	assert.Equal(t, clock.t.Add(-time.Hour).Add(24*time.Hour), st.NextCheck)
}

func TestRefreshMovesToFirstAvailableCandidate(t *testing.T) {
	clock := newClock()
	client := &probeClient{down: map[string]error{
		"m1": errors.New("model m1 has been decommissioned"),
		"m2": errors.New("model m2 not found"),
	}}
	s := NewModelSelector(SelectorConfig{Primary: client, Candidates: []string{"m1", "m2", "m3"}, Now: clock.Now})

	model, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m3", model)
	assert.Equal(t, "m3", s.Active().Model)

	st := s.Status()
	assert.False(t, st.Availability["m1"].Available)
	assert.False(t, st.Availability["m2"].Available)
	assert.True(t, st.Availability["m3"].Available)
}

func TestRefreshTreatsThrottlingAsAvailable(t *testing.T) {
	client := &probeClient{down: map[string]error{"m1": &core.RateLimitError{Err: errors.New("429")}}}
	s := NewModelSelector(SelectorConfig{Primary: client, Candidates: []string{"m1", "m2"}})

	model, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m1", model)
}

func TestMarkUnavailableSkipsKnownBadCandidates(t *testing.T) {
	clock := newClock()
	s := NewModelSelector(SelectorConfig{Primary: &probeClient{}, Candidates: []string{"m1", "m2", "m3"}, Now: clock.Now})

	s.MarkUnavailable("m2")
	assert.Equal(t, "m1", s.Active().Model, "non-current model only updates the cache")

	s.MarkUnavailable("m1")
	assert.Equal(t, "m3", s.Active().Model)
	assert.True(t, s.Status().LastCheck.IsZero())
}

func TestForceRefreshIgnoresCache(t *testing.T) {
	clock := newClock()
	client := &probeClient{}
	s := NewModelSelector(SelectorConfig{Primary: client, Candidates: []string{"m1"}, Now: clock.Now})

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	_, err = s.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m1"}, client.probed)
}

func TestNewModelSelectorAddsInitialModelToCandidates(t *testing.T) {
	s := NewModelSelector(SelectorConfig{Primary: &probeClient{}, Model: "custom", Candidates: []string{"m1"}})
	st := s.Status()
	assert.Equal(t, "custom", st.CurrentModel)
	assert.Equal(t, []string{"custom", "m1"}, st.Candidates)
}
