package latex

import (
	"strings"

	"github.com/rendis/procdoc/internal/bpmn"
	"github.com/rendis/procdoc/pkg/schema"
)

// Request carries one BPMN conversion.
type Request struct {
	XML       string
	FileName  string
	Metadata  schema.DocumentMetadata
	Standards []schema.Standard
	KPIs      []schema.KPI
}

// Convert turns a BPMN diagram into a LaTeX document. It never fails: any
// parse or assembly failure yields the fallback document instead.
func Convert(req Request) string {
	out, _ := ConvertDetailed(req)
	return out
}

// ConvertDetailed behaves like Convert and also reports the failure that
// triggered the fallback document, if any.
func ConvertDetailed(req Request) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = schema.NewErrorf(schema.ErrCodeConversion, "conversion aborted: %v", r)
			out = FallbackDocument(req.FileName)
		}
	}()

	d, err := bpmn.Parse(req.XML)
	if err != nil {
		return FallbackDocument(req.FileName), err
	}

	rows := bpmn.ExtractRows(d)
	return Assemble(Input{
		FileName:    req.FileName,
		ProcessName: bpmn.ResolveProcessName(d, bpmn.SortedLanes(d)),
		Rows:        rows,
		Metadata:    req.Metadata,
		Standards:   req.Standards,
		KPIs:        req.KPIs,
	}), nil
}

// FallbackDocument is the minimal document returned when conversion fails.
func FallbackDocument(fileName string) string {
	var b strings.Builder
	b.WriteString("\\documentclass[11pt,a4paper]{article}\n")
	b.WriteString("\\usepackage{xcolor}\n")
	b.WriteString("\\title{Process Documentation}\n")
	b.WriteString("\\date{\\today}\n")
	b.WriteString("\\begin{document}\n\\maketitle\n\n")
	b.WriteString("\\section*{\\textcolor{red}{\\textbf{Conversion error}}}\n")
	b.WriteString("The diagram " + literal(fileName) + " could not be converted. ")
	b.WriteString("Check that it is a well-formed BPMN 2.0 file and try again.\n\n")
	b.WriteString("\\end{document}\n")
	return b.String()
}
