package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart. Lanes become
// subgraphs.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph LR\n")
	if model.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", firstLine(model.Title))
	}

	for _, node := range model.Nodes {
		fmt.Fprintf(&b, "    %s\n", mermaidNodeDef(node))
	}

	for _, lane := range model.Lanes {
		fmt.Fprintf(&b, "    subgraph %s[\"%s\"]\n", mermaidSafeID(lane.ID), mermaidEscapeLabel(lane.Label))
		for _, id := range lane.NodeIDs {
			fmt.Fprintf(&b, "        %s\n", mermaidSafeID(id))
		}
		b.WriteString("    end\n")
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", mermaidSafeID(edge.From), label, mermaidSafeID(edge.To))
	}

	b.WriteString("\n")
	b.WriteString("    classDef event fill:#e8f5e9,stroke:#2d6a2d\n")
	b.WriteString("    classDef gateway fill:#fff8e1,stroke:#b7791a\n")
	for _, node := range model.Nodes {
		switch node.Kind {
		case NodeKindStart, NodeKindEnd:
			fmt.Fprintf(&b, "    class %s event\n", mermaidSafeID(node.ID))
		case NodeKindGateway:
			fmt.Fprintf(&b, "    class %s gateway\n", mermaidSafeID(node.ID))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the shape of its kind.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Kind {
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((\"%s\"))", id, label)
	case NodeKindGateway:
		return fmt.Sprintf("%s{\"%s\"}", id, label)
	case NodeKindOther:
		return fmt.Sprintf("%s[/\"%s\"/]", id, label)
	default:
		return fmt.Sprintf("%s[\"%s\"]", id, label)
	}
}

var mermaidIDReplacer = strings.NewReplacer(".", "_", "-", "_", " ", "_", ":", "_")

// mermaidSafeID converts a BPMN id to a Mermaid identifier.
func mermaidSafeID(id string) string {
	return mermaidIDReplacer.Replace(id)
}

var mermaidLabelReplacer = strings.NewReplacer(`"`, "#quot;", "\n", " ")

func mermaidEscapeLabel(s string) string {
	return mermaidLabelReplacer.Replace(s)
}
