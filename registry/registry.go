package registry

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum-optimism/infra/cleantest/unit"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// ErrTestNotFound is returned by Lookup for names no registered test carries
var ErrTestNotFound = errors.New("test not found")

// Registry indexes every registered test by ID so that both the coordinating
// process and its children can resolve the same names.
type Registry struct {
	config   Config
	marks    *types.Marks
	manifest *Manifest

	mu        sync.RWMutex
	nodes     []types.Node
	cases     []unit.CaseType
	tests     map[string]types.Test
	typeNames map[string]bool
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
	// Prefix is the module prefix of every qualified test name
	Prefix string
	// ManifestFile optionally lists types and tests that must run isolated
	ManifestFile string
}

// Manifest is the YAML isolation manifest:
//
//	isolated:
//	  types: [pkg.PatchTests]
//	  tests: [pkg.OtherTests.TestGlobalState]
type Manifest struct {
	Isolated struct {
		Types []string `yaml:"types"`
		Tests []string `yaml:"tests"`
	} `yaml:"isolated"`
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, ".")

	r := &Registry{
		config:    cfg,
		marks:     types.NewMarks(),
		tests:     make(map[string]types.Test),
		typeNames: make(map[string]bool),
	}

	if cfg.ManifestFile != "" {
		manifest, err := loadManifest(cfg.ManifestFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		r.applyManifest(manifest)
		r.manifest = manifest
	}

	cfg.Log.Debug("Registry created", "prefix", cfg.Prefix, "marks", r.marks.Len())
	return r, nil
}

func loadManifest(path string) (*Manifest, error) {
	log.Debug("Reading isolation manifest", "path", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}
	defer f.Close()

	var m Manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest file: %w", err)
	}
	return &m, nil
}

func (r *Registry) applyManifest(m *Manifest) {
	for _, typeName := range m.Isolated.Types {
		r.marks.MarkType(typeName)
	}
	for _, id := range m.Isolated.Tests {
		r.marks.MarkTest(id)
	}
}

// Register indexes every leaf reachable from nodes. A test ID may only be
// registered once; on a duplicate nothing from this call is registered.
// Tests tagged in the tree, directly or through a tagged group, are also
// recorded in the marks table so they stay isolated when loaded by name.
func (r *Registry) Register(nodes ...types.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	type entry struct {
		node     types.Node
		isolated bool
	}

	added := make(map[string]types.Test)
	var isolated []string
	stack := make([]entry, 0, len(nodes))
	for _, n := range nodes {
		stack = append(stack, entry{node: n})
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tagged := e.isolated || e.node.Marked()

		if e.node.IsGroup() {
			for _, c := range e.node.Children() {
				stack = append(stack, entry{node: c, isolated: tagged})
			}
			continue
		}
		if !e.node.IsLeaf() || e.node.Test().ID() == "" {
			continue
		}

		test := e.node.Test()
		if _, exists := r.tests[test.ID()]; exists {
			return fmt.Errorf("duplicate test %s", test.ID())
		}
		if _, exists := added[test.ID()]; exists {
			return fmt.Errorf("duplicate test %s", test.ID())
		}
		added[test.ID()] = test
		if tagged {
			isolated = append(isolated, test.ID())
		}
	}

	for id, test := range added {
		r.tests[id] = test
		r.typeNames[test.TypeName()] = true
	}
	for _, id := range isolated {
		r.marks.MarkTest(id)
	}
	r.nodes = append(r.nodes, nodes...)
	r.config.Log.Debug("Registered tests", "count", len(added), "isolated", len(isolated), "total", len(r.tests))
	return nil
}

// RegisterCases validates and registers unit case types.
func (r *Registry) RegisterCases(cases ...unit.CaseType) error {
	nodes := make([]types.Node, 0, len(cases))
	for _, ct := range cases {
		if err := ct.Validate(); err != nil {
			return fmt.Errorf("invalid case type: %w", err)
		}
		nodes = append(nodes, ct.Node())
	}
	if err := r.Register(nodes...); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases = append(r.cases, cases...)
	return nil
}

// Cases returns the registered case types in registration order.
func (r *Registry) Cases() []unit.CaseType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.cases)
}

// Root returns every registered node as a single collection.
func (r *Registry) Root() types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.Group(r.config.Prefix, slices.Clone(r.nodes)...)
}

// Lookup resolves a qualified name, with or without the registry prefix.
func (r *Registry) Lookup(name string) (types.Test, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.config.Prefix != "" {
		if id, ok := strings.CutPrefix(name, r.config.Prefix+"."); ok {
			if test, found := r.tests[id]; found {
				return test, nil
			}
		}
	}
	if test, found := r.tests[name]; found {
		return test, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTestNotFound, name)
}

// IDs returns every registered test ID, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tests))
	for id := range r.tests {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Marks returns the isolation side table.
func (r *Registry) Marks() *types.Marks {
	return r.marks
}

// Prefix returns the module prefix, without a trailing dot.
func (r *Registry) Prefix() string {
	return r.config.Prefix
}

// CheckManifest logs and returns manifest entries that match no registered
// type or test.
func (r *Registry) CheckManifest() []string {
	m := r.manifest
	if m == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var unknown []string
	for _, typeName := range m.Isolated.Types {
		if !r.typeNames[typeName] {
			unknown = append(unknown, typeName)
		}
	}
	for _, id := range m.Isolated.Tests {
		if _, ok := r.tests[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	for _, name := range unknown {
		r.config.Log.Warn("Manifest entry matches no registered test", "entry", name, "path", r.config.ManifestFile)
	}
	return unknown
}
