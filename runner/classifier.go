package runner

import (
	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum/go-ethereum/log"
)

// Classifier partitions a nested test collection into ordinary and isolated
// tests. Isolation comes from tags on the nodes themselves and from a Marks
// side table populated at registration.
type Classifier struct {
	marks *types.Marks
	log   log.Logger
}

// NewClassifier creates a classifier. A nil marks table marks nothing.
func NewClassifier(marks *types.Marks, logger log.Logger) *Classifier {
	if logger == nil {
		logger = log.Root()
	}
	return &Classifier{
		marks: marks,
		log:   logger.New("component", "classifier"),
	}
}

// Classify walks root with an explicit stack. A marked group is re-pushed
// with every child marked, so the tag propagates through nested groups. Every
// leaf lands in exactly one of the two lists. Ordinary tests keep discovery
// order; isolated order is unspecified.
func (c *Classifier) Classify(root types.Node) (ordinary, isolated []types.Test) {
	stack := []types.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch {
		case node.IsGroup() && c.groupMarked(node):
			stack = pushReversed(stack, types.MarkAll(node.Children()))
		case node.IsGroup():
			stack = pushReversed(stack, node.Children())
		case node.IsLeaf() && (node.Marked() || c.marks.IsMarked(node.Test())):
			isolated = append(isolated, node.Test())
		case node.IsLeaf():
			ordinary = append(ordinary, node.Test())
		}
	}

	c.log.Debug("Classified tests", "ordinary", len(ordinary), "isolated", len(isolated))
	return ordinary, isolated
}

func (c *Classifier) groupMarked(node types.Node) bool {
	return node.Marked() || c.marks.IsTypeMarked(node.Name())
}

// pushReversed pushes nodes so that the first one is popped first.
func pushReversed(stack []types.Node, nodes []types.Node) []types.Node {
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	return stack
}
