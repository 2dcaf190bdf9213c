package corpus_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/kirtan/internal/corpus"
	"github.com/MrWong99/kirtan/pkg/lang"
)

const japjiYAML = `
name: mool-mantar
language: pa-IN
lines:
  - ਇਕ ਓਅੰਕਾਰ
  - ਸਤਿ ਨਾਮੁ
  - ਕਰਤਾ ਪੁਰਖੁ
`

func TestDecode(t *testing.T) {
	t.Parallel()

	c, err := corpus.Decode(strings.NewReader(japjiYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Name != "mool-mantar" {
		t.Errorf("Name = %q, want %q", c.Name, "mool-mantar")
	}
	if c.Language != lang.PunjabiIN {
		t.Errorf("Language = %q, want %q", c.Language, lang.PunjabiIN)
	}
	want := []string{"ਇਕ ਓਅੰਕਾਰ", "ਸਤਿ ਨਾਮੁ", "ਕਰਤਾ ਪੁਰਖੁ"}
	if len(c.Lines) != len(want) {
		t.Fatalf("len(Lines) = %d, want %d", len(c.Lines), len(want))
	}
	for i := range want {
		if c.Lines[i] != want[i] {
			t.Errorf("Lines[%d] = %q, want %q", i, c.Lines[i], want[i])
		}
	}
}

func TestDecode_KeepsBlankLines(t *testing.T) {
	t.Parallel()

	c, err := corpus.Decode(strings.NewReader("name: x\nlanguage: pa-IN\nlines: [ਕ, '  ', ॥੧॥]\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(c.Lines) != 3 || c.Lines[1] != "  " {
		t.Errorf("Lines = %q, want the blank line kept in place", c.Lines)
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\nlanguage: pa-IN\nlines: [a]\nauthor: y\n",
			wantErr: "author",
		},
		{
			name:    "missing name",
			yaml:    "language: pa-IN\nlines: [a]\n",
			wantErr: "name is required",
		},
		{
			name:    "bad language",
			yaml:    "name: x\nlanguage: fr-FR\nlines: [a]\n",
			wantErr: "fr-FR",
		},
		{
			name:    "no lines",
			yaml:    "name: x\nlanguage: pa-IN\n",
			wantErr: "lines must not be empty",
		},
		{
			name:    "not yaml",
			yaml:    "name: [",
			wantErr: "decode yaml",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := corpus.Decode(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "japji.yaml")
	if err := os.WriteFile(path, []byte(japjiYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := corpus.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(c.Lines) != 3 {
		t.Errorf("len(Lines) = %d, want 3", len(c.Lines))
	}

	if _, err := corpus.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) returned nil error")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := corpus.NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("new registry Len = %d, want 0", r.Len())
	}
	if _, ok := r.Get(lang.PunjabiIN); ok {
		t.Fatal("Get on empty registry reported ok")
	}

	pa := &corpus.Corpus{Name: "a", Language: lang.PunjabiIN, Lines: []string{"ਸਤਿ ਨਾਮੁ"}}
	hi := &corpus.Corpus{Name: "b", Language: lang.HindiIN, Lines: []string{"सत नाम"}}
	for _, c := range []*corpus.Corpus{pa, hi} {
		if err := r.Set(c); err != nil {
			t.Fatalf("Set(%q): %v", c.Name, err)
		}
	}

	got, ok := r.Get(lang.PunjabiIN)
	if !ok || got != pa {
		t.Errorf("Get(pa-IN) = %v, %v; want %v, true", got, ok, pa)
	}
	langs := r.Languages()
	if len(langs) != 2 || langs[0] != lang.HindiIN || langs[1] != lang.PunjabiIN {
		t.Errorf("Languages() = %v, want [hi-IN pa-IN]", langs)
	}

	replacement := &corpus.Corpus{Name: "c", Language: lang.PunjabiIN, Lines: []string{"ਵਾਹਿਗੁਰੂ"}}
	if err := r.Set(replacement); err != nil {
		t.Fatalf("Set(replacement): %v", err)
	}
	if got, _ := r.Get(lang.PunjabiIN); got != replacement {
		t.Errorf("Get after replace = %v, want %v", got, replacement)
	}
	if len(pa.Lines) != 1 {
		t.Error("replaced corpus was mutated")
	}

	r.Remove(lang.HindiIN)
	if _, ok := r.Get(lang.HindiIN); ok {
		t.Error("Get(hi-IN) after Remove reported ok")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistry_SetRejectsInvalid(t *testing.T) {
	t.Parallel()

	r := corpus.NewRegistry()
	if err := r.Set(&corpus.Corpus{Name: "empty", Language: lang.PunjabiIN}); err == nil {
		t.Fatal("Set accepted a corpus without lines")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after rejected Set, want 0", r.Len())
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	t.Parallel()

	r := corpus.NewRegistry()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tag := lang.All()[i%len(lang.All())]
			_ = r.Set(&corpus.Corpus{Name: "x", Language: tag, Lines: []string{"line"}})
			r.Get(tag)
			r.Languages()
		}()
	}
	wg.Wait()
	if r.Len() != len(lang.All()) {
		t.Errorf("Len = %d, want %d", r.Len(), len(lang.All()))
	}
}
