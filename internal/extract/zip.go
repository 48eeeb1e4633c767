package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipFile returns the contents of the entry called name, or nil if there is none.
func readZipFile(zr *zip.Reader, name, format string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract %s: open %s: %w", format, f.Name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("extract %s: read %s: %w", format, f.Name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}

// joinTextNodes appends the first submatch of every match of re in xml to b,
// space separated, with XML entities decoded.
func joinTextNodes(b *strings.Builder, re *regexp.Regexp, xml string) {
	for _, p := range re.FindAllStringSubmatch(xml, -1) {
		text := strings.TrimSpace(html.UnescapeString(p[1]))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
}
