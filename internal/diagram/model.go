// Package diagram renders BPMN diagrams as previews: Mermaid flowcharts,
// ASCII boxes and graphviz images.
package diagram

// NodeKind classifies a preview node.
type NodeKind string

const (
	NodeKindStart   NodeKind = "start"
	NodeKindEnd     NodeKind = "end"
	NodeKindTask    NodeKind = "task"
	NodeKindGateway NodeKind = "gateway"
	NodeKindOther   NodeKind = "other"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Lanes  []*LaneGroup
	Levels [][]string // node ids grouped by distance from the start events
}

// Node is one flow element.
type Node struct {
	ID    string
	Label string
	Kind  NodeKind
	Lane  string // lane id, "" when the node belongs to no lane
}

// LaneGroup lists the nodes drawn inside one swimlane, in diagram order.
type LaneGroup struct {
	ID      string
	Label   string
	NodeIDs []string
}

// Edge is a sequence flow between two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}
