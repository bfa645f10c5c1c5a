package types

import "sync"

// Node is an element of a test collection: either a single test (leaf) or a
// group of further nodes. The zero Node is neither and is ignored.
type Node struct {
	name     string
	test     Test
	children []Node
	group    bool
	isolated bool
}

// Leaf wraps a single test.
func Leaf(t Test) Node {
	if t == nil {
		panic("test cannot be nil")
	}
	return Node{name: t.ID(), test: t}
}

// Group creates a named collection of nodes.
func Group(name string, children ...Node) Node {
	return Node{name: name, children: children, group: true}
}

// Tests builds an unnamed group of leaves.
func Tests(tests ...Test) Node {
	children := make([]Node, 0, len(tests))
	for _, t := range tests {
		children = append(children, Leaf(t))
	}
	return Group("", children...)
}

// Name returns the group name or, for a leaf, the test ID.
func (n Node) Name() string {
	return n.name
}

// IsGroup reports whether the node is a collection.
func (n Node) IsGroup() bool {
	return n.group
}

// IsLeaf reports whether the node holds a single test.
func (n Node) IsLeaf() bool {
	return !n.group && n.test != nil
}

// Test returns the wrapped test, nil for groups.
func (n Node) Test() Test {
	return n.test
}

// Children returns the nodes of a group.
func (n Node) Children() []Node {
	return n.children
}

// Marked reports whether the node itself carries the isolation tag.
func (n Node) Marked() bool {
	return n.isolated
}

// Len returns the number of leaves reachable from the node.
func (n Node) Len() int {
	if n.IsLeaf() {
		return 1
	}
	total := 0
	for _, c := range n.children {
		total += c.Len()
	}
	return total
}

// Mark returns n with the isolation tag set. Marking twice is a no-op.
func Mark(n Node) Node {
	n.isolated = true
	return n
}

// MarkAll returns a new slice holding every node of nodes marked isolated.
func MarkAll(nodes []Node) []Node {
	marked := make([]Node, len(nodes))
	for i, n := range nodes {
		marked[i] = Mark(n)
	}
	return marked
}

// Marks is a side table of type names and test IDs that must run isolated.
// It is filled at registration time; a nil *Marks marks nothing.
type Marks struct {
	mu    sync.RWMutex
	types map[string]struct{}
	tests map[string]struct{}
}

// NewMarks creates an empty side table.
func NewMarks() *Marks {
	return &Marks{
		types: make(map[string]struct{}),
		tests: make(map[string]struct{}),
	}
}

// MarkType tags every test defined by typeName.
func (m *Marks) MarkType(typeName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[typeName] = struct{}{}
}

// MarkTest tags a single test ID.
func (m *Marks) MarkTest(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[id] = struct{}{}
}

// IsMarked reports whether t, or the type defining it, is tagged.
func (m *Marks) IsMarked(t Test) bool {
	if m == nil || t == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tests[t.ID()]; ok {
		return true
	}
	_, ok := m.types[t.TypeName()]
	return ok
}

// IsTypeMarked reports whether typeName is tagged.
func (m *Marks) IsTypeMarked(typeName string) bool {
	if m == nil || typeName == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.types[typeName]
	return ok
}

// Len returns the number of entries in the table.
func (m *Marks) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.types) + len(m.tests)
}
