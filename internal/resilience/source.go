package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/kirtan/internal/corpus"
)

// Source is a [corpus.Source] behind a [Breaker].
type Source struct {
	src     corpus.Source
	breaker *Breaker
}

var _ corpus.Source = (*Source)(nil)

// GuardSource wraps src. Unless cfg.Trips says otherwise, a missing corpus
// ([corpus.ErrNotFound]) is an answer, not an outage, and does not trip the
// breaker.
func GuardSource(src corpus.Source, cfg BreakerConfig) *Source {
	if cfg.Name == "" {
		cfg.Name = "corpus-store"
	}
	if cfg.Trips == nil {
		cfg.Trips = func(err error) bool { return !errors.Is(err, corpus.ErrNotFound) }
	}
	return &Source{src: src, breaker: NewBreaker(cfg)}
}

// Load loads the named corpus through the breaker.
func (s *Source) Load(ctx context.Context, name string) (*corpus.Corpus, error) {
	var c *corpus.Corpus
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.src.Load(ctx, name)
		return err
	})
	return c, err
}

// Ping probes the wrapped source when it supports pinging. While the breaker
// is open it fails with [ErrOpen] without touching the store.
func (s *Source) Ping(ctx context.Context) error {
	p, ok := s.src.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return s.breaker.Do(ctx, p.Ping)
}

// State returns the state of the breaker.
func (s *Source) State() State { return s.breaker.State() }
