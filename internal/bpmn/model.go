// Package bpmn reads BPMN 2.0 diagram XML into a flat element/flow/lane model
// and projects it into ordered process-step rows.
package bpmn

// ElementKind classifies a diagram shape.
type ElementKind string

const (
	KindStartEvent  ElementKind = "start-event"
	KindEndEvent    ElementKind = "end-event"
	KindTask        ElementKind = "task"
	KindGateway     ElementKind = "gateway"
	KindParticipant ElementKind = "participant"
	KindLane        ElementKind = "lane"
	KindUnknown     ElementKind = "unknown"
)

// Point is a diagram coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is a shape's bounding box.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DiagramElement is one shape of the diagram plane.
type DiagramElement struct {
	ID            string      `json:"id"`
	Name          string      `json:"name,omitempty"` // resolved name, "" when the model declares none
	Kind          ElementKind `json:"kind"`
	Bounds        Bounds      `json:"bounds"`
	Documentation string      `json:"documentation,omitempty"`
}

// Label returns the element's name or the placeholder for its kind.
func (e DiagramElement) Label() string {
	if e.Name != "" {
		return e.Name
	}
	switch e.Kind {
	case KindStartEvent:
		return "Start"
	case KindTask:
		return "Task"
	case KindEndEvent:
		return "End"
	default:
		return "Element"
	}
}

// SequenceFlow is one diagram edge. Unresolved endpoints are "".
type SequenceFlow struct {
	ID        string  `json:"id"`
	SourceID  string  `json:"source_id"`
	TargetID  string  `json:"target_id"`
	Waypoints []Point `json:"waypoints,omitempty"`
}

// Lane groups flow nodes under one responsible role.
type Lane struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	MemberIDs []string `json:"member_ids,omitempty"`
}

// Diagram is the parsed form of one BPMN document.
type Diagram struct {
	Elements []DiagramElement `json:"elements"`
	Flows    []SequenceFlow   `json:"flows"`
	Lanes    []Lane           `json:"lanes"`
}

// Element returns the first element with the given id.
func (d *Diagram) Element(id string) (DiagramElement, bool) {
	for _, e := range d.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return DiagramElement{}, false
}

// ElementsOfKind returns the elements of kind k in diagram order.
func (d *Diagram) ElementsOfKind(k ElementKind) []DiagramElement {
	var out []DiagramElement
	for _, e := range d.Elements {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
