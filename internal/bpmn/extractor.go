package bpmn

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// DefaultRole labels rows whose lane has no usable name.
	DefaultRole = "Actor"
	// DefaultProcessName is used when neither a participant nor a lane is named.
	DefaultProcessName = "Process"
)

// ProcessTableRow is one step of the generated process table.
type ProcessTableRow struct {
	StepSequence    string `json:"step_sequence"`
	ProcessName     string `json:"process_name"`
	Task            string `json:"task"`
	Procedure       string `json:"procedure"`
	ToolsReferences string `json:"tools_references"`
	Role            string `json:"role"`
}

// ExtractRows projects the diagram into process-step rows. Lanes are read
// top to bottom; tasks within a lane keep diagram order. Tasks outside every
// lane produce no row.
func ExtractRows(d *Diagram) []ProcessTableRow {
	if d == nil {
		return nil
	}

	lanes := SortedLanes(d)
	processName := ResolveProcessName(d, lanes)

	var rows []ProcessTableRow
	for laneIdx, lane := range lanes {
		members := make(map[string]bool, len(lane.MemberIDs))
		for _, id := range lane.MemberIDs {
			members[id] = true
		}

		role := DefaultRole
		if strings.TrimSpace(lane.Name) != "" {
			role = lane.Name
		}

		taskIdx := 0
		for _, el := range d.Elements {
			if el.Kind != KindTask || !members[el.ID] {
				continue
			}
			taskIdx++
			rows = append(rows, ProcessTableRow{
				StepSequence: fmt.Sprintf("%d.%d", laneIdx+1, taskIdx),
				ProcessName:  processName,
				Task:         el.Label(),
				Procedure:    el.Documentation,
				Role:         role,
			})
		}
	}
	return rows
}

// SortedLanes returns the diagram's lanes ordered by the y coordinate of
// their shapes. Lanes without a shape sort as y=0. Equal y keeps
// declaration order.
func SortedLanes(d *Diagram) []Lane {
	y := make(map[string]float64, len(d.Elements))
	for _, el := range d.Elements {
		if _, seen := y[el.ID]; !seen {
			y[el.ID] = el.Bounds.Y
		}
	}

	lanes := make([]Lane, len(d.Lanes))
	copy(lanes, d.Lanes)
	sort.SliceStable(lanes, func(i, j int) bool {
		return y[lanes[i].ID] < y[lanes[j].ID]
	})
	return lanes
}

// ResolveProcessName prefers a named participant, then the first named
// lane in reading order, then DefaultProcessName.
func ResolveProcessName(d *Diagram, sortedLanes []Lane) string {
	for _, el := range d.Elements {
		if el.Kind == KindParticipant && strings.TrimSpace(el.Name) != "" {
			return el.Name
		}
	}
	if len(sortedLanes) > 0 && strings.TrimSpace(sortedLanes[0].Name) != "" {
		return sortedLanes[0].Name
	}
	return DefaultProcessName
}
