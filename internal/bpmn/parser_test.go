package bpmn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procdoc/pkg/schema"
)

// onboardingXML has one participant with two lanes (declared under the
// process), three tasks, a gateway and an unnamed end event.
const onboardingXML = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
    xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI"
    xmlns:dc="http://www.omg.org/spec/DD/20100524/DC"
    xmlns:di="http://www.omg.org/spec/DD/20100524/DI" id="Definitions_1">
  <bpmn:collaboration id="Collaboration_1">
    <bpmn:participant id="Participant_1" name="Employee Onboarding" processRef="Process_1" />
  </bpmn:collaboration>
  <bpmn:process id="Process_1">
    <bpmn:laneSet id="LaneSet_1">
      <bpmn:lane id="Lane_HR" name="HR">
        <bpmn:flowNodeRef>StartEvent_1</bpmn:flowNodeRef>
        <bpmn:flowNodeRef>Task_Offer</bpmn:flowNodeRef>
        <bpmn:flowNodeRef>Task_Contract</bpmn:flowNodeRef>
      </bpmn:lane>
      <bpmn:lane id="Lane_IT" name="IT Support">
        <bpmn:flowNodeRef>Activity_Laptop</bpmn:flowNodeRef>
        <bpmn:flowNodeRef>Gateway_Ready</bpmn:flowNodeRef>
        <bpmn:flowNodeRef>EndEvent_1</bpmn:flowNodeRef>
      </bpmn:lane>
    </bpmn:laneSet>
    <bpmn:startEvent id="StartEvent_1" name="Candidate accepted" />
    <bpmn:task id="Task_Offer" name="Send Offer">
      <bpmn:documentation>Email the signed offer letter.</bpmn:documentation>
    </bpmn:task>
    <bpmn:userTask id="Task_Contract" name="Sign Contract" />
    <bpmn:serviceTask id="Activity_Laptop" name="Provision Laptop" />
    <bpmn:exclusiveGateway id="Gateway_Ready" name="Ready?" />
    <bpmn:endEvent id="EndEvent_1" />
    <bpmn:sequenceFlow id="Flow_1" sourceRef="StartEvent_1" targetRef="Task_Offer" />
    <bpmn:sequenceFlow id="Flow_2" sourceRef="Task_Offer" targetRef="Task_Contract" />
  </bpmn:process>
  <bpmndi:BPMNDiagram id="BPMNDiagram_1">
    <bpmndi:BPMNPlane id="BPMNPlane_1" bpmnElement="Collaboration_1">
      <bpmndi:BPMNShape id="Participant_1_di" bpmnElement="Participant_1">
        <dc:Bounds x="100" y="50" width="900" height="400" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="Lane_IT_di" bpmnElement="Lane_IT">
        <dc:Bounds x="130" y="250" width="870" height="200" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="Lane_HR_di" bpmnElement="Lane_HR">
        <dc:Bounds x="130" y="50" width="870" height="200" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="StartEvent_1_di" bpmnElement="StartEvent_1">
        <dc:Bounds x="180" y="130" width="36" height="36" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="Task_Offer_di" bpmnElement="Task_Offer">
        <dc:Bounds x="270" y="110" width="100" height="80" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="Task_Contract_di" bpmnElement="Task_Contract">
        <dc:Bounds x="420" y="110" width="100" height="80" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="Activity_Laptop_di" bpmnElement="Activity_Laptop">
        <dc:Bounds x="420" y="310" width="100" height="80" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="Gateway_Ready_di" bpmnElement="Gateway_Ready" isMarkerVisible="true">
        <dc:Bounds x="575" y="325" width="50" height="50" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="EndEvent_1_di" bpmnElement="EndEvent_1">
        <dc:Bounds x="680" y="332" width="36" height="36" />
      </bpmndi:BPMNShape>
      <bpmndi:BPMNEdge id="Flow_1_di" bpmnElement="Flow_1">
        <di:waypoint x="216" y="148" />
        <di:waypoint x="270" y="150" />
      </bpmndi:BPMNEdge>
      <bpmndi:BPMNEdge id="Flow_2_di" bpmnElement="Flow_2">
        <di:waypoint x="370" y="150" />
        <di:waypoint x="420" y="150" />
      </bpmndi:BPMNEdge>
      <bpmndi:BPMNEdge id="Flow_Ghost_di" bpmnElement="Flow_Ghost">
        <di:waypoint x="0" y="0" />
      </bpmndi:BPMNEdge>
    </bpmndi:BPMNPlane>
  </bpmndi:BPMNDiagram>
</bpmn:definitions>`

func TestParse_Elements(t *testing.T) {
	d, err := Parse(onboardingXML)
	require.NoError(t, err)
	require.Len(t, d.Elements, 9)

	kinds := make(map[string]ElementKind)
	for _, el := range d.Elements {
		kinds[el.ID] = el.Kind
	}
	assert.Equal(t, KindParticipant, kinds["Participant_1"])
	assert.Equal(t, KindLane, kinds["Lane_HR"])
	assert.Equal(t, KindStartEvent, kinds["StartEvent_1"])
	assert.Equal(t, KindTask, kinds["Task_Offer"])
	assert.Equal(t, KindTask, kinds["Activity_Laptop"])
	assert.Equal(t, KindGateway, kinds["Gateway_Ready"])
	assert.Equal(t, KindEndEvent, kinds["EndEvent_1"])

	offer, ok := d.Element("Task_Offer")
	require.True(t, ok)
	assert.Equal(t, "Send Offer", offer.Name)
	assert.Equal(t, "Email the signed offer letter.", offer.Documentation)
	assert.Equal(t, Bounds{X: 270, Y: 110, Width: 100, Height: 80}, offer.Bounds)

	participant, _ := d.Element("Participant_1")
	assert.Equal(t, "Employee Onboarding", participant.Name)

	lane, _ := d.Element("Lane_IT")
	assert.Equal(t, "IT Support", lane.Name)
}

func TestParse_PlaceholderNames(t *testing.T) {
	d, err := Parse(onboardingXML)
	require.NoError(t, err)

	end, ok := d.Element("EndEvent_1")
	require.True(t, ok)
	assert.Empty(t, end.Name)
	assert.Equal(t, "End", end.Label())

	// Gateways are not name-resolved.
	gw, _ := d.Element("Gateway_Ready")
	assert.Empty(t, gw.Name)
	assert.Equal(t, "Element", gw.Label())

	assert.Equal(t, "Start", DiagramElement{Kind: KindStartEvent}.Label())
	assert.Equal(t, "Task", DiagramElement{Kind: KindTask}.Label())
	assert.Equal(t, "Element", DiagramElement{Kind: KindUnknown}.Label())
}

func TestParse_Flows(t *testing.T) {
	d, err := Parse(onboardingXML)
	require.NoError(t, err)
	require.Len(t, d.Flows, 3)

	assert.Equal(t, SequenceFlow{
		ID:        "Flow_1",
		SourceID:  "StartEvent_1",
		TargetID:  "Task_Offer",
		Waypoints: []Point{{X: 216, Y: 148}, {X: 270, Y: 150}},
	}, d.Flows[0])

	ghost := d.Flows[2]
	assert.Equal(t, "Flow_Ghost", ghost.ID)
	assert.Empty(t, ghost.SourceID)
	assert.Empty(t, ghost.TargetID)
}

func TestParse_Lanes(t *testing.T) {
	d, err := Parse(onboardingXML)
	require.NoError(t, err)
	require.Len(t, d.Lanes, 2)
	assert.Equal(t, "Lane_HR", d.Lanes[0].ID)
	assert.Equal(t, []string{"StartEvent_1", "Task_Offer", "Task_Contract"}, d.Lanes[0].MemberIDs)
	assert.Equal(t, "Lane_IT", d.Lanes[1].ID)
}

func TestParse_LanesFromBothSourcesAreNotDeduplicated(t *testing.T) {
	xmlText := `<definitions>
  <collaboration>
    <participant id="Participant_A" name="Claims">
      <laneSet><lane id="Lane_1" name="Clerk"><flowNodeRef>Task_1</flowNodeRef></lane></laneSet>
    </participant>
  </collaboration>
  <process id="P">
    <laneSet><lane id="Lane_1" name="Clerk"><flowNodeRef>Task_1</flowNodeRef></lane></laneSet>
    <task id="Task_1" name="Register Claim" />
  </process>
  <BPMNDiagram><BPMNPlane>
    <BPMNShape bpmnElement="Lane_1"><Bounds x="0" y="0" width="10" height="10" /></BPMNShape>
    <BPMNShape bpmnElement="Task_1"><Bounds x="0" y="0" width="10" height="10" /></BPMNShape>
  </BPMNPlane></BPMNDiagram>
</definitions>`

	d, err := Parse(xmlText)
	require.NoError(t, err)
	require.Len(t, d.Lanes, 2)
	assert.Equal(t, d.Lanes[0], d.Lanes[1])

	rows := ExtractRows(d)
	assert.Len(t, rows, 2, "duplicated lane yields duplicated rows")
}

func TestParse_ShapeWithoutBoundsIsSkipped(t *testing.T) {
	xmlText := `<definitions><process><task id="Task_1" name="A"/></process>
<BPMNDiagram><BPMNPlane>
  <BPMNShape bpmnElement="Task_1" />
  <BPMNShape bpmnElement="Task_2"><Bounds x="1" y="2" width="3" height="4"/></BPMNShape>
</BPMNPlane></BPMNDiagram></definitions>`

	d, err := Parse(xmlText)
	require.NoError(t, err)
	require.Len(t, d.Elements, 1)
	assert.Equal(t, "Task_2", d.Elements[0].ID)
	assert.Equal(t, "Task", d.Elements[0].Label())
}

func TestParse_NoDiagram(t *testing.T) {
	d, err := Parse(`<definitions><process id="P"/></definitions>`)
	require.NoError(t, err)
	assert.Empty(t, d.Elements)
	assert.Empty(t, d.Flows)
	assert.Empty(t, d.Lanes)
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"not xml":     "this is not xml",
		"unclosed":    "<definitions><process>",
		"wrong root":  "<diagram/>",
		"bad numbers": `<definitions><BPMNDiagram><BPMNPlane><BPMNShape bpmnElement="Task_1"><Bounds x="left" y="0" width="1" height="1"/></BPMNShape></BPMNPlane></BPMNDiagram></definitions>`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.Equal(t, schema.ErrCodeConversion, schema.CodeOf(err))
		})
	}
}

func TestClassifyID(t *testing.T) {
	cases := []struct {
		id   string
		want ElementKind
	}{
		{"StartEvent_1", KindStartEvent},
		{"EndEvent_0x1", KindEndEvent},
		{"Task_1", KindTask},
		{"UserTask_7", KindTask},
		{"Activity_0abc", KindTask},
		{"Gateway_1", KindGateway},
		{"ExclusiveGateway_2", KindGateway},
		{"Participant_0p", KindParticipant},
		{"Lane_1", KindLane},
		{"Event_0zz", KindUnknown},
		{"DataObject_1", KindUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyID(tc.id), tc.id)
	}
}
