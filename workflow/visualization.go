package workflow

import (
	"fmt"
	"strings"
)

// Mermaid renders the workflow as a Mermaid flowchart, nesting group and
// while-group subgraphs.
func (w *Workflow) Mermaid() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	w.mermaidInto(&b, "", "    ")
	return b.String()
}

func (w *Workflow) mermaidInto(b *strings.Builder, prefix, indent string) {
	for _, id := range w.order {
		v := w.vertices[id]
		nodeID := prefix + id
		if v.inner != nil {
			fmt.Fprintf(b, "%ssubgraph %s[\"%s (%s)\"]\n", indent, nodeID, id, v.Kind)
			v.inner.mermaidInto(b, nodeID+".", indent+"    ")
			fmt.Fprintf(b, "%send\n", indent)
			continue
		}
		fmt.Fprintf(b, "%s%s[\"%s (%s)\"]\n", indent, nodeID, id, v.Kind)
	}

	for _, e := range w.edges {
		from := prefix + e.From
		to := prefix + e.To
		switch {
		case e.OnError:
			fmt.Fprintf(b, "%s%s -.->|on error| %s\n", indent, from, to)
		case e.Guard != nil:
			fmt.Fprintf(b, "%s%s -->|guard| %s\n", indent, from, to)
		default:
			fmt.Fprintf(b, "%s%s --> %s\n", indent, from, to)
		}
	}
}
