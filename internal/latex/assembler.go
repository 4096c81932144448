package latex

import (
	"strconv"
	"strings"

	"github.com/rendis/procdoc/internal/bpmn"
	"github.com/rendis/procdoc/pkg/schema"
)

const (
	// NotSpecified fills missing scalar metadata.
	NotSpecified = "Not specified"
	// EmptyCell fills missing table cells.
	EmptyCell = "--"
)

// Input is everything the assembler formats into one document.
// Standards and KPIs are the tenant catalogues; Metadata selects from them.
type Input struct {
	FileName    string
	ProcessName string
	Rows        []bpmn.ProcessTableRow
	Metadata    schema.DocumentMetadata
	Standards   []schema.Standard
	KPIs        []schema.KPI
}

// Assemble renders in as a complete LaTeX article. The title and the
// overview section are always present; every other section is emitted only
// when its toggle is on and it has data.
func Assemble(in Input) string {
	toggles := schema.DefaultSectionToggles()
	if in.Metadata.Sections != nil {
		toggles = *in.Metadata.Sections
	}

	var b strings.Builder
	writePreamble(&b, in)
	b.WriteString("\\begin{document}\n\\maketitle\n\n")
	writeOverview(&b, in)

	if toggles.ProcessTable && len(in.Rows) > 0 {
		writeProcessTable(&b, in.Rows)
	}
	if toggles.ProcessDetailsTable && in.Metadata.Advanced != nil {
		writeDetailsTable(&b, in.Metadata.Advanced)
	}
	if toggles.FrameworksTable {
		if selected := SelectStandards(in.Standards, in.Metadata.StandardIDs); len(selected) > 0 {
			writeStandardsTable(&b, selected)
		}
	}
	if toggles.KPITable {
		if selected := SelectKPIs(in.KPIs, in.Metadata.KPIIDs); len(selected) > 0 {
			writeKPITable(&b, selected)
		}
	}
	if toggles.SignOffTable && len(in.Metadata.SignOffs) > 0 {
		writeSignOffTable(&b, in.Metadata.SignOffs)
	}
	if toggles.HistoryTable && len(in.Metadata.History) > 0 {
		writeHistoryTable(&b, in.Metadata.History)
	}
	if toggles.TriggerTable && len(in.Metadata.Triggers) > 0 {
		writeTriggerTable(&b, in.Metadata.Triggers)
	}

	b.WriteString("\\end{document}\n")
	return b.String()
}

// SelectStandards keeps the catalogue entries whose id is selected, in
// catalogue order. Unknown ids are ignored.
func SelectStandards(catalogue []schema.Standard, ids []string) []schema.Standard {
	want := idSet(ids)
	var out []schema.Standard
	for _, s := range catalogue {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// SelectKPIs keeps the catalogue entries whose id is selected, in catalogue
// order. Unknown ids are ignored.
func SelectKPIs(catalogue []schema.KPI, ids []string) []schema.KPI {
	want := idSet(ids)
	var out []schema.KPI
	for _, k := range catalogue {
		if want[k.ID] {
			out = append(out, k)
		}
	}
	return out
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func title(in Input) string {
	if p := in.Metadata.Process; p != nil && strings.TrimSpace(p.ProcessName) != "" {
		return p.ProcessName
	}
	if strings.TrimSpace(in.ProcessName) != "" {
		return in.ProcessName
	}
	return bpmn.DefaultProcessName
}

func writePreamble(b *strings.Builder, in Input) {
	b.WriteString("\\documentclass[11pt,a4paper]{article}\n")
	b.WriteString("\\usepackage[utf8]{inputenc}\n")
	b.WriteString("\\usepackage[T1]{fontenc}\n")
	b.WriteString("\\usepackage[margin=2cm]{geometry}\n")
	b.WriteString("\\usepackage{array}\n")
	b.WriteString("\\usepackage{longtable}\n")
	b.WriteString("\\usepackage{booktabs}\n")
	b.WriteString("\\usepackage[table]{xcolor}\n\n")

	b.WriteString("\\title{" + Escape(title(in)) + "}\n")
	author, date := "", "\\today"
	if p := in.Metadata.Process; p != nil {
		author = strings.TrimSpace(p.Author)
		if d := strings.TrimSpace(p.EffectiveDate); d != "" {
			date = Escape(d)
		}
	}
	b.WriteString("\\author{" + Escape(author) + "}\n")
	b.WriteString("\\date{" + date + "}\n\n")
}

func writeOverview(b *strings.Builder, in Input) {
	p := in.Metadata.Process
	if p == nil {
		p = &schema.ProcessMetadata{}
	}

	b.WriteString("\\section{Overview}\n")
	b.WriteString("\\begin{tabular}{@{}>{\\bfseries}l l@{}}\n")
	b.WriteString("Source file: & " + literal(in.FileName) + " \\\\\n")
	b.WriteString("Process: & " + Escape(title(in)) + " \\\\\n")
	b.WriteString("Owner: & " + cell(p.ProcessOwner, NotSpecified) + " \\\\\n")
	b.WriteString("Department: & " + cell(p.Department, NotSpecified) + " \\\\\n")
	b.WriteString("Version: & " + cell(p.Version, NotSpecified) + " \\\\\n")
	b.WriteString("Effective date: & " + cell(p.EffectiveDate, NotSpecified) + " \\\\\n")
	b.WriteString("\\end{tabular}\n\n")

	if d := strings.TrimSpace(p.Description); d != "" {
		b.WriteString(cell(d, "") + "\n\n")
	}
}

// table is one longtable section.
type table struct {
	section string
	columns []string // p{} widths
	headers []string
	rows    [][]string // raw text, escaped on write
}

func writeTable(b *strings.Builder, t table) {
	b.WriteString("\\section{" + t.section + "}\n")

	spec := "|"
	for _, w := range t.columns {
		spec += "p{" + w + "}|"
	}
	b.WriteString("\\begin{longtable}{" + spec + "}\n\\hline\n")

	heads := make([]string, len(t.headers))
	for i, h := range t.headers {
		heads[i] = "\\textbf{" + h + "}"
	}
	b.WriteString(strings.Join(heads, " & ") + " \\\\\n\\hline\n\\endhead\n")

	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = cell(c, EmptyCell)
		}
		b.WriteString(strings.Join(cells, " & ") + " \\\\\n\\hline\n")
	}
	b.WriteString("\\end{longtable}\n\n")
}

func writeProcessTable(b *strings.Builder, rows []bpmn.ProcessTableRow) {
	t := table{
		section: "Process Steps",
		columns: []string{"1.1cm", "2.6cm", "3cm", "4cm", "2.8cm", "2.2cm"},
		headers: []string{"Step", "Process", "Task", "Procedure", "Tools / References", "Role"},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []string{r.StepSequence, r.ProcessName, r.Task, r.Procedure, r.ToolsReferences, r.Role})
	}
	writeTable(b, t)
}

func writeDetailsTable(b *strings.Builder, a *schema.AdvancedDetails) {
	t := table{
		section: "Process Details",
		columns: []string{"4cm", "12cm"},
		headers: []string{"Attribute", "Value"},
	}
	for _, kv := range [][2]string{
		{"Purpose", a.Purpose},
		{"Scope", a.Scope},
		{"Inputs", a.Inputs},
		{"Outputs", a.Outputs},
		{"Frequency", a.Frequency},
		{"Dependencies", a.Dependencies},
		{"Risks", a.Risks},
	} {
		value := kv[1]
		if strings.TrimSpace(value) == "" {
			value = NotSpecified
		}
		t.rows = append(t.rows, []string{kv[0], value})
	}
	writeTable(b, t)
}

func writeStandardsTable(b *strings.Builder, standards []schema.Standard) {
	t := table{
		section: "Frameworks and Standards",
		columns: []string{"2.5cm", "4.5cm", "3cm", "6cm"},
		headers: []string{"Code", "Name", "Category", "Description"},
	}
	for _, s := range standards {
		t.rows = append(t.rows, []string{s.Code, s.Name, s.Category, s.Description})
	}
	writeTable(b, t)
}

func writeKPITable(b *strings.Builder, kpis []schema.KPI) {
	t := table{
		section: "Key Performance Indicators",
		columns: []string{"4cm", "6cm", "3cm", "3cm"},
		headers: []string{"KPI", "Description", "Target", "Frequency"},
	}
	for _, k := range kpis {
		t.rows = append(t.rows, []string{k.Name, k.Description, formatTarget(k), k.Frequency})
	}
	writeTable(b, t)
}

func formatTarget(k schema.KPI) string {
	if k.Target == nil {
		return ""
	}
	s := strconv.FormatFloat(*k.Target, 'f', -1, 64)
	if k.Unit != "" {
		s += " " + k.Unit
	}
	return s
}

func writeSignOffTable(b *strings.Builder, signOffs []schema.SignOff) {
	t := table{
		section: "Sign-off",
		columns: []string{"4cm", "5cm", "3cm", "4cm"},
		headers: []string{"Role", "Name", "Date", "Status"},
	}
	for _, s := range signOffs {
		t.rows = append(t.rows, []string{s.Role, s.Name, s.Date, s.Status})
	}
	writeTable(b, t)
}

func writeHistoryTable(b *strings.Builder, history []schema.HistoryEntry) {
	t := table{
		section: "Revision History",
		columns: []string{"2cm", "3cm", "4cm", "7cm"},
		headers: []string{"Version", "Date", "Author", "Changes"},
	}
	for _, h := range history {
		t.rows = append(t.rows, []string{h.Version, h.Date, h.Author, h.Changes})
	}
	writeTable(b, t)
}

func writeTriggerTable(b *strings.Builder, triggers []schema.Trigger) {
	t := table{
		section: "Triggers",
		columns: []string{"4cm", "3cm", "3cm", "6cm"},
		headers: []string{"Trigger", "Type", "Source", "Description"},
	}
	for _, tr := range triggers {
		t.rows = append(t.rows, []string{tr.Name, tr.Type, tr.Source, tr.Description})
	}
	writeTable(b, t)
}
