package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/procdoc/internal/latex"
	"github.com/rendis/procdoc/internal/service"
	"github.com/rendis/procdoc/internal/validation"
	"github.com/rendis/procdoc/pkg/schema"
)

var convertOpts struct {
	output    string
	metadata  string
	catalogue string
	sections  []string
	strict    bool
}

var convertCmd = &cobra.Command{
	Use:   "convert [file.bpmn]",
	Short: "Convert a BPMN file to LaTeX without touching the database",
	Long: `Reads a BPMN 2.0 file ("-" for stdin) and writes the generated LaTeX document.

Example:
  procdoc convert order.bpmn --metadata order.json --catalogue catalogue.yaml \
      --sections process_table,kpi_table -o order.tex`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertOpts.output, "output", "o", "-", "output file (- for stdout)")
	f.StringVar(&convertOpts.metadata, "metadata", "", "document metadata JSON file")
	f.StringVar(&convertOpts.catalogue, "catalogue", "", "standards/KPI catalogue YAML file")
	f.StringSliceVar(&convertOpts.sections, "sections", nil, "optional sections to enable, e.g. process_table,kpi_table")
	f.BoolVar(&convertOpts.strict, "strict", false, "fail instead of writing the fallback document")
}

func runConvert(cmd *cobra.Command, args []string) error {
	xmlData, fileName, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	req := latex.Request{XML: string(xmlData), FileName: fileName}

	var cat validation.Catalogue
	if convertOpts.catalogue != "" {
		f, err := os.Open(convertOpts.catalogue)
		if err != nil {
			return err
		}
		parsed, err := service.ParseCatalogue(f)
		f.Close()
		if err != nil {
			return err
		}
		req.Standards, req.KPIs = parsed.Standards, parsed.KPIs
		cat = validation.NewCatalogueIDs(parsed.Standards, parsed.KPIs)
	}

	if convertOpts.metadata != "" || len(convertOpts.sections) > 0 {
		meta, err := readMetadata(convertOpts.metadata, convertOpts.sections, cat)
		if err != nil {
			return err
		}
		req.Metadata = *meta
	}

	out, convErr := latex.ConvertDetailed(req)
	if convErr != nil {
		if convertOpts.strict {
			return fmt.Errorf("convert %s: %w", fileName, convErr)
		}
		logger.Warn("conversion fell back", slog.String("file_name", fileName), slog.String("error", convErr.Error()))
	}

	if convertOpts.output == "-" || convertOpts.output == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	}
	return os.WriteFile(convertOpts.output, []byte(out), 0o644)
}

func readInput(stdin io.Reader, path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return data, "stdin.bpmn", err
	}
	data, err := os.ReadFile(path)
	return data, filepath.Base(path), err
}

// readMetadata loads and validates a metadata file; sections override its toggles.
func readMetadata(path string, sections []string, cat validation.Catalogue) (*schema.DocumentMetadata, error) {
	validator, err := validation.NewMetadataValidator()
	if err != nil {
		return nil, err
	}

	meta := &schema.DocumentMetadata{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateRaw(raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, meta); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if len(sections) > 0 {
		toggles, err := parseSections(sections)
		if err != nil {
			return nil, err
		}
		meta.Sections = toggles
	}

	if err := validator.Validate(meta, cat).ToError(); err != nil {
		return nil, err
	}
	return meta, nil
}

// parseSections maps section names (the JSON keys of SectionToggles) to toggles.
func parseSections(names []string) (*schema.SectionToggles, error) {
	obj := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			obj[n] = true
		}
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var t schema.SectionToggles
	if err := dec.Decode(&t); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown section in %v", names).
			WithField("sections").WithCause(err)
	}
	return &t, nil
}
