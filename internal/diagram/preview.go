package diagram

import (
	"context"

	"github.com/rendis/procdoc/internal/bpmn"
	"github.com/rendis/procdoc/pkg/schema"
)

// Format is a preview output format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
	FormatPNG     Format = "png"
	FormatSVG     Format = "svg"
)

// Preview is a rendered diagram.
type Preview struct {
	ContentType string
	Data        []byte
}

// RenderPreview parses BPMN XML and renders it in the requested format.
// Unparseable XML is reported as CONVERSION_ERROR.
func RenderPreview(ctx context.Context, xmlText, title string, format Format) (*Preview, error) {
	switch format {
	case FormatMermaid, FormatASCII, FormatPNG, FormatSVG:
	case "":
		format = FormatMermaid
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported preview format %q", format).WithField("format")
	}

	d, err := bpmn.Parse(xmlText)
	if err != nil {
		return nil, err
	}
	model := Build(d, title)

	switch format {
	case FormatASCII:
		return &Preview{ContentType: "text/plain; charset=utf-8", Data: []byte(RenderASCII(model))}, nil
	case FormatPNG, FormatSVG:
		img, err := RenderImage(ctx, model, ImageFormat(format))
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeConversion, "render diagram image").WithCause(err)
		}
		ct := "image/png"
		if format == FormatSVG {
			ct = "image/svg+xml"
		}
		return &Preview{ContentType: ct, Data: img}, nil
	default:
		return &Preview{ContentType: "text/plain; charset=utf-8", Data: []byte(RenderMermaid(model))}, nil
	}
}
