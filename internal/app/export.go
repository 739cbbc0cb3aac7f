package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/volfpeter/graphscraper/pkg/graph"
)

// exportNode is the stable wire shape for one exported node. Creation
// timestamps are deliberately left out so exports of the same graph are
// byte-identical.
type exportNode struct {
	Name            string `json:"name"`
	ExternalID      string `json:"external_id,omitempty"`
	NeighborsCached bool   `json:"neighbors_cached"`
}

type exportDoc struct {
	Nodes []exportNode       `json:"nodes"`
	Edges []graph.EdgeRecord `json:"edges"`
}

// WriteJSON dumps the cached graph as indented JSON. Records must already be
// in their canonical store order.
func WriteJSON(w io.Writer, nodes []graph.NodeRecord, edges []graph.EdgeRecord) error {
	doc := exportDoc{
		Nodes: make([]exportNode, 0, len(nodes)),
		Edges: edges,
	}
	if doc.Edges == nil {
		doc.Edges = []graph.EdgeRecord{}
	}
	for _, n := range nodes {
		doc.Nodes = append(doc.Nodes, exportNode{
			Name:            n.Name,
			ExternalID:      n.ExternalID,
			NeighborsCached: n.NeighborsCached,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteDOT dumps the cached graph in Graphviz DOT form.
func WriteDOT(w io.Writer, nodes []graph.NodeRecord, edges []graph.EdgeRecord) error {
	var b strings.Builder
	b.WriteString("graph graphscraper {\n")
	for _, n := range nodes {
		if n.ExternalID != "" {
			fmt.Fprintf(&b, "  %s [id=%s];\n", dotQuote(n.Name), dotQuote(n.ExternalID))
		} else {
			fmt.Fprintf(&b, "  %s;\n", dotQuote(n.Name))
		}
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "  %s -- %s [weight=%g];\n", dotQuote(e.SourceName), dotQuote(e.TargetName), e.Weight)
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
