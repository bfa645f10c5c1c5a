package suite

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum-optimism/infra/cleantest/unit"
	"golang.org/x/mod/modfile"
)

// Source is where a Loader resolves tests
type Source interface {
	Prefix() string
	Marks() *types.Marks
	Root() types.Node
	Lookup(name string) (types.Test, error)
}

// Loader builds suites bound to the prefix of its source.
type Loader struct {
	source Source
	opts   []Option
}

// NewLoader creates a loader. opts are applied to every suite it builds.
func NewLoader(source Source, opts ...Option) *Loader {
	return &Loader{source: source, opts: opts}
}

func (l *Loader) newSuite() *Suite {
	opts := append([]Option{WithMarks(l.source.Marks())}, l.opts...)
	return New(l.source.Prefix(), opts...)
}

// LoadAll builds a suite holding every test of the source.
func (l *Loader) LoadAll() *Suite {
	s := l.newSuite()
	s.Add(l.source.Root())
	return s
}

// LoadNames builds a suite holding the named tests, in order. A name that
// cannot be resolved becomes a test reporting the load error in-process.
func (l *Loader) LoadNames(names ...string) *Suite {
	s := l.newSuite()
	for _, name := range names {
		test, err := l.source.Lookup(name)
		if err != nil {
			s.log.Warn("Failed to load test", "name", name, "err", err)
			s.Add(types.Leaf(unit.NewLoadError(name, err)))
			continue
		}
		s.Add(types.Leaf(test))
	}
	return s
}

// ModulePrefix returns the last element of the module path declared in
// dir/go.mod, for use as a default prefix.
func ModulePrefix(dir string) (string, error) {
	goModPath := filepath.Join(dir, "go.mod")
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, content, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if modFile.Module == nil || modFile.Module.Mod.Path == "" {
		return "", fmt.Errorf("could not find module name in go.mod")
	}
	return path.Base(modFile.Module.Mod.Path), nil
}
