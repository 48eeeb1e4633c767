package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractWithCat reads RTF and ODT through lu4p/cat, which detects the format
// from the content itself.
func extractWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	return text, nil
}
