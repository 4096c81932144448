package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/rendis/procdoc/pkg/schema"
)

// Bundle lists the files of a document export.
type Bundle struct {
	Name     string
	LaTeX    string
	Source   string
	Kind     schema.DocumentKind
	Metadata *schema.DocumentMetadata
	PDF      []byte
	Modified time.Time
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BaseName turns a document name into a safe file stem.
func BaseName(name string) string {
	stem := strings.TrimSuffix(strings.TrimSpace(name), path.Ext(name))
	stem = strings.Trim(unsafeName.ReplaceAllString(stem, "_"), "_.")
	if stem == "" {
		return "document"
	}
	return stem
}

// Files returns the archive entries in write order.
func (b *Bundle) Files() ([]string, error) {
	entries, err := b.entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names, nil
}

type entry struct {
	name string
	data []byte
}

func (b *Bundle) entries() ([]entry, error) {
	stem := BaseName(b.Name)
	out := []entry{{name: stem + ".tex", data: []byte(b.LaTeX)}}

	if b.Kind == schema.DocumentKindBPMN && b.Source != "" {
		out = append(out, entry{name: stem + ".bpmn", data: []byte(b.Source)})
	}
	if b.Metadata != nil {
		meta, err := json.MarshalIndent(b.Metadata, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		out = append(out, entry{name: "metadata.json", data: meta})
	}
	if len(b.PDF) > 0 {
		out = append(out, entry{name: stem + ".pdf", data: b.PDF})
	}
	return out, nil
}

// Zip writes the bundle as a ZIP archive.
func (b *Bundle) Zip() ([]byte, error) {
	entries, err := b.entries()
	if err != nil {
		return nil, err
	}
	modified := b.Modified
	if modified.IsZero() {
		modified = time.Now()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
