package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"linefeed"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Relative corpus paths are resolved against the directory of path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	cfg.ResolvePaths(filepath.Dir(path))
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it and applies
// defaults. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// ResolvePaths makes relative corpus file paths relative to dir.
func (c *Config) ResolvePaths(dir string) {
	for i := range c.Corpora {
		if f := c.Corpora[i].File; f != "" && !filepath.IsAbs(f) {
			c.Corpora[i].File = filepath.Join(dir, f)
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Matcher
	m := cfg.Matcher
	if m.Scorer != "" && !m.Scorer.IsValid() {
		errs = append(errs, fmt.Errorf("matcher.scorer %q is invalid; valid values: levenshtein, jaro-winkler", m.Scorer))
	}
	if m.MinScore < 0 || m.MinScore > 1 {
		errs = append(errs, fmt.Errorf("matcher.min_score %.2f is out of range [0, 1]", m.MinScore))
	}
	if m.SnippetMax < 0 {
		errs = append(errs, fmt.Errorf("matcher.snippet_max %d must not be negative", m.SnippetMax))
	}
	if m.TranscriptMax < 0 {
		errs = append(errs, fmt.Errorf("matcher.transcript_max %d must not be negative", m.TranscriptMax))
	}

	// Corpus files, one per language.
	seen := make(map[string]int, len(cfg.Corpora))
	for i, c := range cfg.Corpora {
		prefix := fmt.Sprintf("corpora[%d]", i)
		if c.File == "" {
			errs = append(errs, fmt.Errorf("%s.file is required", prefix))
		}
		if !c.Language.IsValid() {
			errs = append(errs, fmt.Errorf("%s.language %q is invalid", prefix, c.Language))
			continue
		}
		if prev, ok := seen[string(c.Language)]; ok {
			errs = append(errs, fmt.Errorf("%s.language %q is a duplicate of corpora[%d]", prefix, c.Language, prev))
		}
		seen[string(c.Language)] = i
	}

	// Corpus store
	if len(cfg.Corpus.Names) > 0 && cfg.Corpus.PostgresDSN == "" {
		errs = append(errs, errors.New("corpus.names requires corpus.postgres_dsn"))
	}
	if cfg.Corpus.PostgresDSN != "" && len(cfg.Corpus.Names) == 0 {
		slog.Warn("corpus.postgres_dsn is set but corpus.names is empty; no stored corpus will be activated")
	}
	for i, name := range cfg.Corpus.Names {
		if name == "" {
			errs = append(errs, fmt.Errorf("corpus.names[%d] is empty", i))
		}
	}

	if len(cfg.Corpora) == 0 && len(cfg.Corpus.Names) == 0 {
		slog.Warn("no corpora configured; matching will report no corpus for every language")
	}

	validateProviderName("stt", cfg.STT.Name)

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a provider registered at startup",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
