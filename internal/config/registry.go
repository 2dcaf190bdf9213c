package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/kirtan/pkg/linematch"
	"github.com/MrWong99/kirtan/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// ErrScorerNotRegistered is returned by [Registry.Scorer] for unknown names.
var ErrScorerNotRegistered = errors.New("config: scorer not registered")

// Registry maps configured names to implementations: STT providers by
// [ProviderEntry.Name] and similarity scorers by [ScorerName]. It is safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	stt     map[string]func(ProviderEntry) (stt.Provider, error)
	scorers map[ScorerName]linematch.Scorer
}

// NewRegistry returns a [Registry] with the built-in scorers registered and
// no STT providers.
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func(ProviderEntry) (stt.Provider, error)),
		scorers: map[ScorerName]linematch.Scorer{
			ScorerLevenshtein: linematch.LevenshteinScorer,
			ScorerJaroWinkler: linematch.JaroWinklerScorer,
		},
	}
}

// RegisterSTT registers an STT provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// RegisterScorer registers a similarity scorer under name.
func (r *Registry) RegisterScorer(name ScorerName, s linematch.Scorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scorers[name] = s
}

// Scorer returns the scorer registered under name. An empty name selects
// [ScorerLevenshtein].
func (r *Registry) Scorer(name ScorerName) (linematch.Scorer, error) {
	if name == "" {
		name = ScorerLevenshtein
	}
	r.mu.RLock()
	s, ok := r.scorers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrScorerNotRegistered, name)
	}
	return s, nil
}

// StringOption returns the string value of key in entry.Options, or def when
// the key is missing or not a string.
func (entry ProviderEntry) StringOption(key, def string) string {
	if v, ok := entry.Options[key].(string); ok {
		return v
	}
	return def
}
