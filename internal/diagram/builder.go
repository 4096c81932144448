package diagram

import (
	"github.com/rendis/procdoc/internal/bpmn"
)

// Build constructs a DiagramModel from a parsed BPMN diagram. Participants,
// lanes and unknown shapes are not drawn as nodes; lanes become groups.
// An empty title falls back to the resolved process name.
func Build(d *bpmn.Diagram, title string) *DiagramModel {
	lanes := bpmn.SortedLanes(d)
	if title == "" {
		title = bpmn.ResolveProcessName(d, lanes)
	}

	laneOf := make(map[string]string)
	for _, l := range lanes {
		for _, id := range l.MemberIDs {
			if _, ok := laneOf[id]; !ok {
				laneOf[id] = l.ID
			}
		}
	}

	model := &DiagramModel{Title: title}
	index := make(map[string]*Node)
	for _, el := range d.Elements {
		kind, ok := nodeKind(el.Kind)
		if !ok {
			continue
		}
		if _, dup := index[el.ID]; dup {
			continue
		}
		n := &Node{ID: el.ID, Label: el.Label(), Kind: kind, Lane: laneOf[el.ID]}
		index[el.ID] = n
		model.Nodes = append(model.Nodes, n)
	}

	seen := make(map[string]bool)
	for _, l := range lanes {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		g := &LaneGroup{ID: l.ID, Label: l.Name}
		if g.Label == "" {
			g.Label = "Lane"
		}
		for _, n := range model.Nodes {
			if n.Lane == l.ID {
				g.NodeIDs = append(g.NodeIDs, n.ID)
			}
		}
		if len(g.NodeIDs) > 0 {
			model.Lanes = append(model.Lanes, g)
		}
	}

	for _, f := range d.Flows {
		if index[f.SourceID] == nil || index[f.TargetID] == nil {
			continue
		}
		model.Edges = append(model.Edges, Edge{From: f.SourceID, To: f.TargetID})
	}

	model.Levels = buildLevels(model.Nodes, model.Edges)
	return model
}

func nodeKind(k bpmn.ElementKind) (NodeKind, bool) {
	switch k {
	case bpmn.KindStartEvent:
		return NodeKindStart, true
	case bpmn.KindEndEvent:
		return NodeKindEnd, true
	case bpmn.KindTask:
		return NodeKindTask, true
	case bpmn.KindGateway:
		return NodeKindGateway, true
	case bpmn.KindParticipant, bpmn.KindLane:
		return "", false
	default:
		return NodeKindOther, true
	}
}

// buildLevels layers nodes by longest path from the sources (Kahn's
// algorithm). Nodes on cycles are collected into one trailing level.
func buildLevels(nodes []*Node, edges []Edge) [][]string {
	inDegree := make(map[string]int, len(nodes))
	succ := make(map[string][]string, len(nodes))
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		inDegree[e.To]++
		succ[e.From] = append(succ[e.From], e.To)
	}

	level := make(map[string]int, len(nodes))
	var queue []string
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	done := make(map[string]bool, len(nodes))
	maxLevel := -1
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		done[id] = true
		if level[id] > maxLevel {
			maxLevel = level[id]
		}
		for _, next := range succ[id] {
			if level[id]+1 > level[next] {
				level[next] = level[id] + 1
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	levels := make([][]string, maxLevel+1)
	var cyclic []string
	for _, n := range nodes {
		if !done[n.ID] {
			cyclic = append(cyclic, n.ID)
			continue
		}
		levels[level[n.ID]] = append(levels[level[n.ID]], n.ID)
	}
	if len(cyclic) > 0 {
		levels = append(levels, cyclic)
	}
	return levels
}

func (m *DiagramModel) node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
