package graph

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"
)

type Field struct {
	Name, Value string
}

type Child struct {
	Name string
	Node *Node
}

// Node is a single box in a plan visualization tree.
type Node struct {
	Name     string
	Fields   []Field
	Children []Child
}

func NewNode(name string) *Node {
	return &Node{
		Name: name,
	}
}

func (n *Node) AddField(name, value string) {
	n.Fields = append(n.Fields, Field{
		Name:  name,
		Value: value,
	})
}

func (n *Node) AddChild(name string, node *Node) {
	n.Children = append(n.Children, Child{
		Name: name,
		Node: node,
	})
}

type Visualizer interface {
	Visualize() *Node
}

// Show renders the tree as a Graphviz record-shaped graph.
func Show(node *Node) (*gographviz.Graph, error) {
	out := gographviz.NewGraph()
	out.Directed = true
	if err := out.AddAttr("", "rankdir", "LR"); err != nil {
		return nil, fmt.Errorf("couldn't set graph direction: %w", err)
	}
	builder := &builder{
		graph:    out,
		counters: make(map[string]int),
	}
	if _, err := builder.add(node); err != nil {
		return nil, err
	}
	return out, nil
}

type builder struct {
	graph    *gographviz.Graph
	counters map[string]int
}

func (b *builder) nextID(name string) string {
	count := b.counters[name]
	b.counters[name]++
	return fmt.Sprintf("%s_%d", strings.ReplaceAll(name, " ", "_"), count)
}

func (b *builder) add(node *Node) (string, error) {
	labelParts := []string{fmt.Sprintf("<f0> %s", node.Name)}

	if len(node.Fields) > 0 {
		fields := make([]string, len(node.Fields))
		for i, field := range node.Fields {
			fields[i] = fmt.Sprintf("<%s> %s: %s", field.Name, field.Name, field.Value)
		}
		labelParts = append(labelParts, strings.Join(fields, "|"))
	}
	if len(node.Children) > 0 {
		ports := make([]string, len(node.Children))
		for i, child := range node.Children {
			ports[i] = fmt.Sprintf("<%s> %s", child.Name, child.Name)
		}
		labelParts = append(labelParts, strings.Join(ports, "|"))
	}

	id := b.nextID(node.Name)
	err := b.graph.AddNode("", id, map[string]string{
		"shape": "record",
		"label": fmt.Sprintf("\"{{%s}}\"", strings.Join(labelParts, "}|{")),
	})
	if err != nil {
		return "", fmt.Errorf("couldn't add node %s: %w", id, err)
	}

	for _, child := range node.Children {
		childID, err := b.add(child.Node)
		if err != nil {
			return "", err
		}
		if err := b.graph.AddPortEdge(id, child.Name, childID, "", true, map[string]string{}); err != nil {
			return "", fmt.Errorf("couldn't add edge %s -> %s: %w", id, childID, err)
		}
	}
	return id, nil
}
