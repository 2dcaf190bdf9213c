// Package corpus loads and holds the reference corpora the follower matches
// live speech against.
//
// A corpus is an ordered list of lines in one language. Order is meaningful:
// neighbouring lines are the previous and next lines of the hymn or song.
// Corpora come from YAML files or from a PostgreSQL table and are published
// through a [Registry], one active corpus per language.
//
// Lines are never modified after loading. Matchers read them concurrently
// without copying; a reload replaces the whole slice.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/kirtan/pkg/lang"
)

// ErrNotFound is returned by a [Source] when the named corpus does not exist.
var ErrNotFound = errors.New("corpus: not found")

// Corpus is an ordered sequence of reference lines in one language.
type Corpus struct {
	// Name identifies the corpus (e.g. "japji-sahib").
	Name string `yaml:"name"`

	// Language is the recognition language whose transcripts are matched
	// against this corpus.
	Language lang.Tag `yaml:"language"`

	// Lines are the reference lines in source order.
	Lines []string `yaml:"lines"`
}

// Validate checks that c can be matched against. Blank lines are allowed;
// they score like any line that normalizes to the empty string.
func (c *Corpus) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !c.Language.IsValid() {
		errs = append(errs, fmt.Errorf("language %q is invalid; valid values: %v", c.Language, lang.All()))
	}
	if len(c.Lines) == 0 {
		errs = append(errs, errors.New("lines must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("corpus %q: %w", c.Name, err)
	}
	return nil
}

// Source loads corpora by name.
type Source interface {
	Load(ctx context.Context, name string) (*Corpus, error)
}

// Decode reads a YAML corpus document from r and validates it. Unknown keys
// are rejected.
func Decode(r io.Reader) (*Corpus, error) {
	c := &Corpus{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("corpus: decode yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads and validates the YAML corpus at path.
func LoadFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("corpus: load %q: %w", path, err)
	}
	return c, nil
}
