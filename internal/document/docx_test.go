package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/joseph-ayodele/network-extractor/internal/common"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func docxBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("Write(%s) error = %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestDocxText(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document ` + wordNS + `><w:body>
<w:p><w:r><w:t>Provider network</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Smile </w:t></w:r><w:r><w:t>Dental</w:t></w:r><w:r><w:tab/><w:t>Cairo</w:t></w:r></w:p>
<w:p></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Phone</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>مستشفى السلام</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>0100</w:t></w:r></w:p><w:p><w:r><w:t>0122</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
</w:body></w:document>`

	got, err := DocxText(docxBytes(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   body,
	}))
	if err != nil {
		t.Fatalf("DocxText() error = %v", err)
	}
	want := "Provider network\nSmile Dental\tCairo\nName | Phone\nمستشفى السلام | 0100 0122"
	if got != want {
		t.Errorf("DocxText() =\n%q\nwant\n%q", got, want)
	}
}

func TestDocxText_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a zip", []byte("{\\rtf1 legacy}")},
		{"missing body", docxBytes(t, map[string]string{"word/styles.xml": "<w:styles/>"})},
		{"broken xml", docxBytes(t, map[string]string{"word/document.xml": "<w:document " + wordNS + "><w:body>"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DocxText(tt.data); !errors.Is(err, common.ErrParse) {
				t.Errorf("DocxText() error = %v, want ErrParse", err)
			}
		})
	}
}
