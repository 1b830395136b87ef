package gen

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dr8co/plz/lexer"
	"github.com/gkampitakis/go-snaps/snaps"
)

// TestExampleFixtures compiles every program under examples/ and snapshots
// its disassembly, pinning the generated code for the whole language surface.
func TestExampleFixtures(t *testing.T) {
	paths, err := filepath.Glob("../examples/*.pl0")
	if err != nil {
		t.Fatalf("globbing examples: %s", err)
	}
	if len(paths) == 0 {
		t.Fatal("no example fixtures found")
	}
	sort.Strings(paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			source, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading fixture: %s", err)
			}

			program, err := Generate(lexer.New(string(source)).Tokens())
			if err != nil {
				t.Fatalf("generating %s: %s", path, err)
			}

			snaps.MatchSnapshot(t, program.Disassemble())
		})
	}
}

func TestMain(m *testing.M) {
	v := m.Run()
	snaps.Clean(m)
	os.Exit(v)
}
