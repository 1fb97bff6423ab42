// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// run reports.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/dslgen/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a Report into TOON format.
func Encode(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(r.Root)))
	parts = append(parts, fmt.Sprintf("scanned: %d", r.Scanned))
	parts = append(parts, formatList("triggers", r.Triggers))

	var unitRows [][]string
	for i := range r.Units {
		u := &r.Units[i]
		unitRows = append(unitRows, []string{
			u.Source,
			u.Path,
			u.Written,
			fmt.Sprintf("%d", u.Bytes),
		})
	}
	parts = append(parts, formatTabular("units", []string{"source", "path", "written", "bytes"}, unitRows))

	if len(r.Diagnostics) > 0 {
		var diagRows [][]string
		for i := range r.Diagnostics {
			d := &r.Diagnostics[i]
			diagRows = append(diagRows, []string{
				d.File,
				fmt.Sprintf("%d", d.Line),
				fmt.Sprintf("%d", d.Column),
				fmt.Sprintf("%d", d.Code),
				d.Message,
			})
		}
		parts = append(parts, formatTabular("diagnostics", []string{"file", "line", "column", "code", "message"}, diagRows))
	}

	return strings.Join(parts, "\n")
}

// formatList renders a primitive array inline, e.g. "tags[2]: a,b".
func formatList(name string, values []string) string {
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = encodeValue(v)
	}
	return fmt.Sprintf("%s[%d]: %s", name, len(values), strings.Join(encoded, ","))
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
