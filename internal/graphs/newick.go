package graphs

import (
	"github.com/evolbioinfo/gotree/tree"
)

// Converts the consensus tree to a gotree tree rooted at the vertex of Root.
// Internal edges carry the fraction of input trees supporting them.
func (ct *ConsensusTree) Tree() *tree.Tree {
	tre := tree.NewTree()
	root := tre.NewNode()
	tre.SetRoot(root)
	h := ct.Root
	ct.graft(tre, root, ct.Edges[h].Back)
	for x := ct.Edges[h].Next; x != h; x = ct.Edges[x].Next {
		ct.graft(tre, root, ct.Edges[x].Back)
	}
	return tre
}

func (ct *ConsensusTree) graft(tre *tree.Tree, parent *tree.Node, h int) {
	node := tre.NewNode()
	e := tre.ConnectNodes(parent, node)
	if ct.IsTip(h) {
		node.SetName(ct.Edges[h].Label)
		return
	}
	e.SetSupport(ct.Edges[h].Support)
	for x := ct.Edges[h].Next; x != h; x = ct.Edges[x].Next {
		ct.graft(tre, node, ct.Edges[x].Back)
	}
}

func (ct *ConsensusTree) Newick() string {
	return ct.Tree().Newick()
}
