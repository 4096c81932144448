package bpmn

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/rendis/procdoc/pkg/schema"
)

// Element names are matched on their local part so that any namespace
// prefix (bpmn:, bpmn2:, none) is accepted.

type xmlDefinitions struct {
	XMLName        xml.Name           `xml:"definitions"`
	Collaborations []xmlCollaboration `xml:"collaboration"`
	Processes      []xmlProcess       `xml:"process"`
	Diagrams       []xmlDiagram       `xml:"BPMNDiagram"`
}

type xmlCollaboration struct {
	Participants []xmlParticipant `xml:"participant"`
}

type xmlParticipant struct {
	ID         string       `xml:"id,attr"`
	Name       string       `xml:"name,attr"`
	ProcessRef string       `xml:"processRef,attr"`
	Lanes      []xmlLane    `xml:"lane"`
	LaneSets   []xmlLaneSet `xml:"laneSet"`
}

type xmlProcess struct {
	ID            string            `xml:"id,attr"`
	Name          string            `xml:"name,attr"`
	LaneSets      []xmlLaneSet      `xml:"laneSet"`
	Lanes         []xmlLane         `xml:"lane"`
	SequenceFlows []xmlSequenceFlow `xml:"sequenceFlow"`
	Nodes         []xmlFlowNode     `xml:",any"`
}

type xmlLaneSet struct {
	Lanes []xmlLane `xml:"lane"`
}

type xmlLane struct {
	ID           string   `xml:"id,attr"`
	Name         string   `xml:"name,attr"`
	FlowNodeRefs []string `xml:"flowNodeRef"`
}

type xmlFlowNode struct {
	XMLName       xml.Name
	ID            string   `xml:"id,attr"`
	Name          string   `xml:"name,attr"`
	Documentation []string `xml:"documentation"`
}

type xmlSequenceFlow struct {
	ID        string `xml:"id,attr"`
	SourceRef string `xml:"sourceRef,attr"`
	TargetRef string `xml:"targetRef,attr"`
}

type xmlDiagram struct {
	Planes []xmlPlane `xml:"BPMNPlane"`
}

type xmlPlane struct {
	Shapes []xmlShape `xml:"BPMNShape"`
	Edges  []xmlEdge  `xml:"BPMNEdge"`
}

type xmlShape struct {
	ID          string     `xml:"id,attr"`
	BPMNElement string     `xml:"bpmnElement,attr"`
	Bounds      *xmlBounds `xml:"Bounds"`
}

type xmlBounds struct {
	X      float64 `xml:"x,attr"`
	Y      float64 `xml:"y,attr"`
	Width  float64 `xml:"width,attr"`
	Height float64 `xml:"height,attr"`
}

type xmlEdge struct {
	ID          string     `xml:"id,attr"`
	BPMNElement string     `xml:"bpmnElement,attr"`
	Waypoints   []xmlPoint `xml:"waypoint"`
}

type xmlPoint struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
}

// taskTags are the flow-node tags whose names resolve as tasks.
var taskTags = map[string]bool{
	"task":             true,
	"userTask":         true,
	"serviceTask":      true,
	"manualTask":       true,
	"scriptTask":       true,
	"sendTask":         true,
	"receiveTask":      true,
	"businessRuleTask": true,
	"subProcess":       true,
	"callActivity":     true,
}

// Parse decodes BPMN XML text into a Diagram.
func Parse(xmlText string) (*Diagram, error) {
	return ParseReader(strings.NewReader(xmlText))
}

// ParseReader decodes BPMN XML from r into a Diagram.
func ParseReader(r io.Reader) (*Diagram, error) {
	var defs xmlDefinitions
	if err := xml.NewDecoder(r).Decode(&defs); err != nil {
		return nil, schema.NewError(schema.ErrCodeConversion, "parse BPMN XML").WithCause(err)
	}

	idx := newNameIndex(&defs)
	d := &Diagram{}

	for _, diag := range defs.Diagrams {
		for _, plane := range diag.Planes {
			for _, sh := range plane.Shapes {
				if sh.Bounds == nil {
					continue
				}
				d.Elements = append(d.Elements, idx.element(sh))
			}
			for _, edge := range plane.Edges {
				d.Flows = append(d.Flows, idx.flow(edge))
			}
		}
	}

	d.Lanes = collectLanes(&defs)
	return d, nil
}

// ClassifyID derives an element kind from the diagram identifier.
func ClassifyID(id string) ElementKind {
	switch {
	case strings.Contains(id, "StartEvent"):
		return KindStartEvent
	case strings.Contains(id, "EndEvent"):
		return KindEndEvent
	case strings.Contains(id, "Task"), strings.Contains(id, "Activity"):
		return KindTask
	case strings.Contains(id, "Gateway"):
		return KindGateway
	case strings.Contains(id, "Participant"):
		return KindParticipant
	case strings.Contains(id, "Lane"):
		return KindLane
	default:
		return KindUnknown
	}
}

type flowRef struct {
	source string
	target string
}

// nameIndex maps declared ids to names and flow endpoints. It is built once
// per parse; the first declaration of an id wins.
type nameIndex struct {
	nodes        map[string]xmlFlowNode
	participants map[string]string
	lanes        map[string]string
	flows        map[string]flowRef
}

func newNameIndex(defs *xmlDefinitions) *nameIndex {
	idx := &nameIndex{
		nodes:        make(map[string]xmlFlowNode),
		participants: make(map[string]string),
		lanes:        make(map[string]string),
		flows:        make(map[string]flowRef),
	}

	for _, p := range defs.Processes {
		for _, n := range p.Nodes {
			tag := n.XMLName.Local
			if tag != "startEvent" && tag != "endEvent" && !taskTags[tag] {
				continue
			}
			if _, ok := idx.nodes[n.ID]; !ok {
				idx.nodes[n.ID] = n
			}
		}
		for _, sf := range p.SequenceFlows {
			if _, ok := idx.flows[sf.ID]; !ok {
				idx.flows[sf.ID] = flowRef{source: sf.SourceRef, target: sf.TargetRef}
			}
		}
	}
	for _, c := range defs.Collaborations {
		for _, p := range c.Participants {
			if _, ok := idx.participants[p.ID]; !ok {
				idx.participants[p.ID] = p.Name
			}
		}
	}
	for _, l := range collectLanes(defs) {
		if _, ok := idx.lanes[l.ID]; !ok {
			idx.lanes[l.ID] = l.Name
		}
	}
	return idx
}

func (idx *nameIndex) element(sh xmlShape) DiagramElement {
	id := sh.BPMNElement
	if id == "" {
		id = sh.ID
	}
	el := DiagramElement{
		ID:   id,
		Kind: ClassifyID(id),
		Bounds: Bounds{
			X:      sh.Bounds.X,
			Y:      sh.Bounds.Y,
			Width:  sh.Bounds.Width,
			Height: sh.Bounds.Height,
		},
	}

	switch el.Kind {
	case KindParticipant:
		el.Name = idx.participants[id]
	case KindLane:
		el.Name = idx.lanes[id]
	default:
		if n, ok := idx.nodes[id]; ok {
			el.Name = strings.TrimSpace(n.Name)
			el.Documentation = strings.TrimSpace(strings.Join(n.Documentation, "\n"))
		}
	}
	return el
}

func (idx *nameIndex) flow(edge xmlEdge) SequenceFlow {
	id := edge.BPMNElement
	if id == "" {
		id = edge.ID
	}
	ref := idx.flows[id]
	sf := SequenceFlow{ID: id, SourceID: ref.source, TargetID: ref.target}
	for _, wp := range edge.Waypoints {
		sf.Waypoints = append(sf.Waypoints, Point{X: wp.X, Y: wp.Y})
	}
	return sf
}

// collectLanes gathers collaboration lanes, then process lanes. A lane
// declared in both places is reported twice.
func collectLanes(defs *xmlDefinitions) []Lane {
	var lanes []Lane
	for _, c := range defs.Collaborations {
		for _, p := range c.Participants {
			lanes = appendLanes(lanes, p.Lanes)
			for _, ls := range p.LaneSets {
				lanes = appendLanes(lanes, ls.Lanes)
			}
		}
	}
	for _, p := range defs.Processes {
		for _, ls := range p.LaneSets {
			lanes = appendLanes(lanes, ls.Lanes)
		}
		lanes = appendLanes(lanes, p.Lanes)
	}
	return lanes
}

func appendLanes(dst []Lane, src []xmlLane) []Lane {
	for _, l := range src {
		lane := Lane{ID: l.ID, Name: l.Name}
		for _, ref := range l.FlowNodeRefs {
			if ref = strings.TrimSpace(ref); ref != "" {
				lane.MemberIDs = append(lane.MemberIDs, ref)
			}
		}
		dst = append(dst, lane)
	}
	return dst
}
