package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTest struct {
	id        string
	typeName  string
	synthetic bool
}

func (f fakeTest) ID() string       { return f.id }
func (f fakeTest) TypeName() string { return f.typeName }
func (f fakeTest) Synthetic() bool  { return f.synthetic }

func (f fakeTest) Run(_ context.Context, sink Sink) {
	sink.StartTest(f)
	sink.AddSuccess(f)
	sink.StopTest(f)
}

func newFake(typeName, method string) fakeTest {
	return fakeTest{id: typeName + "." + method, typeName: typeName}
}

func TestMarkIsIdempotent(t *testing.T) {
	leaf := Leaf(newFake("pkg.Case", "TestA"))
	assert.False(t, leaf.Marked())

	once := Mark(leaf)
	twice := Mark(once)
	assert.True(t, once.Marked())
	assert.Equal(t, once, twice)

	// The original value is untouched
	assert.False(t, leaf.Marked())
}

func TestMarkAllDoesNotAlias(t *testing.T) {
	children := []Node{Leaf(newFake("pkg.Case", "TestA")), Leaf(newFake("pkg.Case", "TestB"))}
	marked := MarkAll(children)

	require.Len(t, marked, 2)
	for i := range marked {
		assert.True(t, marked[i].Marked())
		assert.False(t, children[i].Marked())
	}
}

func TestNodeShape(t *testing.T) {
	a := newFake("pkg.Case", "TestA")
	tree := Group("root",
		Leaf(a),
		Group("inner", Leaf(newFake("pkg.Case", "TestB")), Group("empty")),
		Node{},
	)

	assert.True(t, tree.IsGroup())
	assert.False(t, tree.IsLeaf())
	assert.Equal(t, "root", tree.Name())
	assert.Equal(t, 2, tree.Len())

	leaf := tree.Children()[0]
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, a.ID(), leaf.Name())
	assert.Equal(t, Test(a), leaf.Test())

	zero := tree.Children()[2]
	assert.False(t, zero.IsLeaf())
	assert.False(t, zero.IsGroup())
}

func TestLeafRejectsNil(t *testing.T) {
	assert.Panics(t, func() { Leaf(nil) })
}

func TestMarks(t *testing.T) {
	m := NewMarks()
	patched := newFake("pkg.PatchTests", "TestBefore")
	other := newFake("pkg.OtherTests", "TestCase")
	plain := newFake("pkg.OtherTests", "TestPlain")

	m.MarkType("pkg.PatchTests")
	m.MarkTest(other.ID())

	assert.True(t, m.IsMarked(patched))
	assert.True(t, m.IsMarked(other))
	assert.False(t, m.IsMarked(plain))
	assert.True(t, m.IsTypeMarked("pkg.PatchTests"))
	assert.False(t, m.IsTypeMarked("pkg.OtherTests"))
	assert.Equal(t, 2, m.Len())

	// Re-marking does not grow the table
	m.MarkType("pkg.PatchTests")
	assert.Equal(t, 2, m.Len())

	var nilMarks *Marks
	assert.False(t, nilMarks.IsMarked(patched))
	assert.False(t, nilMarks.IsTypeMarked("pkg.PatchTests"))
	assert.Zero(t, nilMarks.Len())
}

func TestAddressable(t *testing.T) {
	tests := []struct {
		name string
		test Test
		want bool
	}{
		{name: "regular test", test: newFake("pkg.Case", "TestA"), want: true},
		{name: "empty id", test: fakeTest{}, want: false},
		{name: "synthetic", test: fakeTest{id: "x.y", synthetic: true}, want: false},
		{name: "nil", test: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Addressable(tt.test))
		})
	}
}

func TestQualifiedName(t *testing.T) {
	test := newFake("patch.PatchTests", "TestPatch")
	assert.Equal(t, "tests.contrib.patch.PatchTests.TestPatch", QualifiedName("tests.contrib", test))
	assert.Equal(t, "tests.patch.PatchTests.TestPatch", QualifiedName("tests.", test))
	assert.Equal(t, "patch.PatchTests.TestPatch", QualifiedName("", test))
}

func TestSplitID(t *testing.T) {
	typeName, method := SplitID("pkg.sub.Case.TestA")
	assert.Equal(t, "pkg.sub.Case", typeName)
	assert.Equal(t, "TestA", method)

	typeName, method = SplitID("TestA")
	assert.Empty(t, typeName)
	assert.Equal(t, "TestA", method)
}
