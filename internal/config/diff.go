package config

import (
	"cmp"
	"slices"

	"github.com/MrWong99/kirtan/pkg/lang"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MatcherChanged is true when any matcher setting changed. New
	// followers pick up the new settings.
	MatcherChanged bool

	// CorporaChanged is true if any corpus file entry or the stored corpus
	// selection changed.
	CorporaChanged bool
	CorpusChanges  []CorpusDiff

	// StoreChanged is true when the PostgreSQL DSN or corpus names changed.
	StoreChanged bool
}

// CorpusDiff describes what changed for one language's corpus file.
type CorpusDiff struct {
	Language lang.Tag
	File     string // new path; empty when Removed
	Added    bool
	Removed  bool
	Moved    bool // path changed
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart. A corpus file
// whose content changed under the same path is not reported here; the
// [Watcher] detects that and reports the config as changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Matcher != new.Matcher {
		d.MatcherChanged = true
	}

	// Build corpus lookup maps keyed by language.
	oldFiles := make(map[lang.Tag]string, len(old.Corpora))
	for _, c := range old.Corpora {
		oldFiles[c.Language] = c.File
	}
	newFiles := make(map[lang.Tag]string, len(new.Corpora))
	for _, c := range new.Corpora {
		newFiles[c.Language] = c.File
	}

	// Detect moved and removed corpora.
	for tag, oldFile := range oldFiles {
		newFile, exists := newFiles[tag]
		switch {
		case !exists:
			d.CorpusChanges = append(d.CorpusChanges, CorpusDiff{Language: tag, Removed: true})
		case newFile != oldFile:
			d.CorpusChanges = append(d.CorpusChanges, CorpusDiff{Language: tag, File: newFile, Moved: true})
		}
	}

	// Detect added corpora.
	for tag, newFile := range newFiles {
		if _, exists := oldFiles[tag]; !exists {
			d.CorpusChanges = append(d.CorpusChanges, CorpusDiff{Language: tag, File: newFile, Added: true})
		}
	}
	slices.SortFunc(d.CorpusChanges, func(a, b CorpusDiff) int {
		return cmp.Compare(a.Language, b.Language)
	})

	if old.Corpus.PostgresDSN != new.Corpus.PostgresDSN || !slices.Equal(old.Corpus.Names, new.Corpus.Names) {
		d.StoreChanged = true
	}

	d.CorporaChanged = len(d.CorpusChanges) > 0 || d.StoreChanged
	return d
}
