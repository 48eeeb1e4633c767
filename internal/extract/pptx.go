package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slideName matches ppt/slides/slideN.xml and captures N.
var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)

// extractPPTX joins the <a:t> text nodes of every slide in slide-number order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var b strings.Builder
	for _, s := range slides {
		xml, err := readZipFile(zr, s.name, "PPTX")
		if err != nil {
			return "", err
		}
		joinTextNodes(&b, atTag, string(xml))
	}
	return b.String(), nil
}
