package corpus

import (
	"slices"
	"sync"

	"github.com/MrWong99/kirtan/pkg/lang"
)

// Registry holds the active corpus for each language. It is safe for
// concurrent use. Corpora handed out by Get must be treated as read-only.
type Registry struct {
	mu      sync.RWMutex
	corpora map[lang.Tag]*Corpus
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{corpora: make(map[lang.Tag]*Corpus)}
}

// Set validates c and makes it the active corpus for c.Language, replacing
// any previous one. The previous corpus stays valid for readers that already
// hold it.
func (r *Registry) Set(c *Corpus) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corpora[c.Language] = c
	return nil
}

// Get returns the active corpus for tag.
func (r *Registry) Get(tag lang.Tag) (*Corpus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.corpora[tag]
	return c, ok
}

// Remove drops the corpus for tag, if any.
func (r *Registry) Remove(tag lang.Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.corpora, tag)
}

// Languages returns the tags that have an active corpus, sorted.
func (r *Registry) Languages() []lang.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]lang.Tag, 0, len(r.corpora))
	for t := range r.corpora {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// Len returns the number of active corpora.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.corpora)
}
