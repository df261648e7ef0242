package tabular

import "strings"

var cellReplacer = strings.NewReplacer("|", "/", "\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// Render writes the header and rows[start:end] as a pipe-delimited text table.
func (t *Table) Render(w Window) string {
	var b strings.Builder
	writeRow(&b, t.Header)
	b.WriteString("|")
	for range t.Header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows[w.Start:w.End] {
		writeRow(&b, row)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(cellReplacer.Replace(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
