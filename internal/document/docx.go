// Package document turns word-processor files into plain text the extraction
// engine can read.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joseph-ayodele/network-extractor/internal/common"
)

const (
	docxBody = "word/document.xml"
	// maxBodyBytes bounds the decompressed document body.
	maxBodyBytes = 64 << 20
)

// DocxText returns the visible text of a .docx file. Paragraphs end with a
// newline and table cells are separated with "| " so rows stay on one line.
func DocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", common.ParseError("open word document", err)
	}
	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", common.ParseError("open "+docxBody, err)
		}
		defer rc.Close()
		text, err := bodyText(io.LimitReader(rc, maxBodyBytes))
		if err != nil {
			return "", common.ParseError("read "+docxBody, err)
		}
		return text, nil
	}
	return "", common.ParseError("open word document", errors.New(docxBody+" is missing"))
}

func bodyText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	inCell := false
	cellsInRow := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			case "tc":
				if cellsInRow > 0 {
					sb.WriteString("| ")
				}
				inCell = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				// Paragraphs inside a cell are joined with a space.
				if inCell {
					sb.WriteByte(' ')
				} else {
					sb.WriteByte('\n')
				}
			case "tc":
				inCell = false
				cellsInRow++
			case "tr":
				cellsInRow = 0
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return tidy(sb.String()), nil
}

// tidy trims trailing blanks on every line and drops empty lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
