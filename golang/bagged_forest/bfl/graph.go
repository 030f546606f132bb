package bfl

import (
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

//GraphFormats maps figure type names to graphviz output formats.
var GraphFormats = map[string]graphviz.Format{
	"png": graphviz.PNG,
	"svg": graphviz.SVG,
	"jpg": graphviz.JPG,
}

func internalDescription(node *InternalNode) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.Weight))
	sb.WriteString(node.Split.Description())
	return sb.String()
}

func leafDescription(node *LeafNode) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.Weight))
	sb.WriteString(node.Model.Description())
	return sb.String()
}

func recurrentDraw(g *cgraph.Graph, node Node, counter *int, parentNode *cgraph.Node) error {
	currentNode, err := g.CreateNode(fmt.Sprint(*counter))
	if err != nil {
		return err
	}
	*counter++

	if parentNode != nil {
		if _, err := g.CreateEdge("", parentNode, currentNode); err != nil {
			return err
		}
	}

	switch n := node.(type) {
	case *LeafNode:
		currentNode.SetLabel(leafDescription(n))
		currentNode.SetShape(cgraph.BoxShape)
		return nil
	case *InternalNode:
		currentNode.SetLabel(internalDescription(n))
		if err := recurrentDraw(g, n.Left, counter, currentNode); err != nil {
			return err
		}
		return recurrentDraw(g, n.Right, counter, currentNode)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownNode, node)
	}
}

//DrawGraph builds a graphviz graph of the tree. The caller closes both returned values.
func (tree *Tree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return nil, nil, err
	}

	counter := 0
	if err := recurrentDraw(graph, tree.Root, &counter, nil); err != nil {
		_ = graph.Close()
		_ = graphViz.Close()
		return nil, nil, err
	}
	return graphViz, graph, nil
}

//RenderTrees writes one picture per tree named <dumpPrefix>_<index>.<figureType>.
func (forest *Forest) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	format, ok := GraphFormats[figureType]
	if !ok {
		return fmt.Errorf("unsupported figure type %q", figureType)
	}

	for graphInd, currentTree := range forest.Trees {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph, err := currentTree.DrawGraph()
		if err != nil {
			return err
		}
		err = graphViz.RenderFilename(graph, format, path.Join(picturesDirectory, filename))
		_ = graph.Close()
		_ = graphViz.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
