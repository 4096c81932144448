// Package latex renders process data into a LaTeX article and wraps the
// BPMN conversion pipeline behind a failure-proof facade.
package latex

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// textMacros are the escapes Escape itself emits for characters that have no
// backslash form.
var textMacros = []string{`\textbackslash{}`, `\textasciitilde{}`, `\textasciicircum{}`}

// Escape makes s safe for running text and table cells. Existing escapes
// (\&, \{, \textbackslash{} and the like) are kept as they are, so
// Escape(Escape(s)) == Escape(s). Any other backslash is printed literally.
func Escape(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 < len(s) && strings.IndexByte(`&%$#_{}`, s[i+1]) >= 0 {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			}
			if m := macroAt(s[i:]); m != "" {
				b.WriteString(m)
				i += len(m) - 1
				continue
			}
			b.WriteString(`\textbackslash{}`)
		case '&', '%', '$', '#', '_', '{', '}':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '~':
			b.WriteString(`\textasciitilde{}`)
		case '^':
			b.WriteString(`\textasciicircum{}`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func macroAt(s string) string {
	for _, m := range textMacros {
		if strings.HasPrefix(s, m) {
			return m
		}
	}
	return ""
}

// cell escapes a table cell, substituting the placeholder for blank values
// and turning line breaks into \newline.
func cell(s, placeholder string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return placeholder
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = Escape(strings.TrimSpace(l))
	}
	return strings.Join(lines, ` \newline `)
}

// verbDelims are tried in order as the \verb delimiter.
const verbDelims = `|!+=@;:"'`

// literal prints a name exactly as given using \verb, which needs no
// escaping. Line breaks are removed. A name containing every delimiter
// falls back to escaped \texttt.
func literal(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, name)
	if strings.TrimSpace(name) == "" {
		name = "untitled"
	}
	for _, d := range verbDelims {
		if !strings.ContainsRune(name, d) {
			return `\verb` + string(d) + name + string(d)
		}
	}
	return `\texttt{` + Escape(name) + `}`
}
