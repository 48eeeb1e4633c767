package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// wtTag matches <w:t>text</w:t> with any attributes.
var wtTag = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)

// mainPartRes find the main document part in [Content_Types].xml, in either attribute order.
var mainPartRes = []*regexp.Regexp{
	regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`),
	regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`),
}

// findDocxMainDocumentPath returns the main document path without leading slash,
// or "" when [Content_Types].xml does not name one.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	ct, err := readZipFile(zr, contentTypesPath, "DOCX")
	if err != nil || ct == nil {
		return ""
	}
	for _, re := range mainPartRes {
		if m := re.FindSubmatch(ct); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return ""
}

// extractDOCX joins all <w:t> text nodes of the main document part. lu4p/cat is
// not used here because it misses paragraphs that carry attributes.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath, "DOCX")
	if err != nil {
		return "", err
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	var b strings.Builder
	joinTextNodes(&b, wtTag, string(docXML))
	return b.String(), nil
}
