package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const odfContentPath = "content.xml"

var (
	// odpText matches paragraphs, headings and spans in document order.
	odpText = regexp.MustCompile(`<text:(?:p|h|span)(?:\s[^>]*)?>([^<]*)</text:(?:p|h|span)>`)
	// odsText matches cell paragraphs and spans in document order.
	odsText = regexp.MustCompile(`<text:(?:p|span)(?:\s[^>]*)?>([^<]*)</text:(?:p|span)>`)
)

func extractODP(content []byte) (string, error) {
	return extractODF(content, "ODP", odpText)
}

func extractODS(content []byte) (string, error) {
	return extractODF(content, "ODS", odsText)
}

// extractODF reads content.xml from an OpenDocument zip and joins the text of
// every element re matches.
func extractODF(content []byte, format string, re *regexp.Regexp) (string, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return "", err
	}
	xml, err := readZipFile(zr, odfContentPath, format)
	if err != nil {
		return "", err
	}
	if xml == nil {
		return "", fmt.Errorf("extract %s: %s not found", format, odfContentPath)
	}
	var b strings.Builder
	joinTextNodes(&b, re, string(xml))
	return b.String(), nil
}
