package loader

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// Graph renders the composition of defs as a Graphviz digraph. Each
// pipeline is a cluster whose processors are chained in execution order;
// edges into a processor carry its condition. A reference is drawn as a
// dashed edge to the referenced pipeline, and exception handlers hang off
// their pipeline with dotted edges.
func Graph(defs []PipelineDef) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("pipelines"); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	if err := g.AddAttr("pipelines", "rankdir", "LR"); err != nil {
		return "", err
	}

	for _, d := range defs {
		if err := addPipeline(g, d); err != nil {
			return "", fmt.Errorf("loader: graph of %q: %w", d.Name, err)
		}
	}
	return g.String(), nil
}

func addPipeline(g *gographviz.Graph, d PipelineDef) error {
	cluster := "cluster_" + sanitize(d.Name)
	label := fmt.Sprintf("%s\n%s<%s>", d.Name, d.Kind(), d.EntityType)
	if err := g.AddSubGraph("pipelines", cluster, map[string]string{
		"label": strconv.Quote(label),
		"style": "rounded",
	}); err != nil {
		return err
	}

	entry := pipelineNode(d.Name)
	if err := g.AddNode(cluster, entry, map[string]string{
		"label": strconv.Quote(d.Name),
		"shape": "box3d",
	}); err != nil {
		return err
	}

	prev := entry
	for i, p := range d.Processors {
		var id string
		if p.Reference != "" {
			id = strconv.Quote(fmt.Sprintf("%s/%d:%s", d.Name, i, p.Reference))
			if err := g.AddNode(cluster, id, map[string]string{
				"label": strconv.Quote("→ " + p.Reference),
				"shape": "cds",
			}); err != nil {
				return err
			}
			if err := g.AddEdge(id, pipelineNode(p.Reference), true, map[string]string{
				"style": "dashed",
			}); err != nil {
				return err
			}
		} else {
			id = strconv.Quote(fmt.Sprintf("%s/%d:%s", d.Name, i, p.Name))
			if err := g.AddNode(cluster, id, map[string]string{
				"label": strconv.Quote(fmt.Sprintf("%s\n%s", p.Name, p.Type)),
				"shape": "box",
			}); err != nil {
				return err
			}
		}

		attrs := map[string]string{}
		if p.Condition != "" {
			attrs["label"] = strconv.Quote(p.Condition)
		}
		if err := g.AddEdge(prev, id, true, attrs); err != nil {
			return err
		}
		prev = id
	}

	for i, h := range d.ErrorHandlers {
		id := strconv.Quote(fmt.Sprintf("%s/handler/%d:%s", d.Name, i, h.Label()))
		if err := g.AddNode(cluster, id, map[string]string{
			"label": strconv.Quote(h.Label()),
			"shape": "octagon",
		}); err != nil {
			return err
		}
		attrs := map[string]string{"style": "dotted"}
		if h.Condition != "" {
			attrs["label"] = strconv.Quote(h.Condition)
		}
		if err := g.AddEdge(entry, id, true, attrs); err != nil {
			return err
		}
	}
	return nil
}

func pipelineNode(name string) string {
	return strconv.Quote("pipeline:" + name)
}

// sanitize keeps subgraph IDs within the unquoted DOT identifier charset.
func sanitize(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
