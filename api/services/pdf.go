package services

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextExtractor turns raw document bytes into plain text.
type TextExtractor func(content []byte) (string, error)

// ExtractText extracts all text from an in-memory PDF
func ExtractText(content []byte) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyFile
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			// Continue even if one page fails
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	return textBuilder.String(), nil
}

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	hyphenBreak    = regexp.MustCompile(`(\p{L})-\n(\p{L})`)
	horizontalRuns = regexp.MustCompile(`[ \t\x{00A0}]+`)
	newlineSpacing = regexp.MustCompile(` ?\n ?`)
	blankLineRuns  = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted PDF text before it is chunked.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = horizontalRuns.ReplaceAllString(text, " ")
	text = newlineSpacing.ReplaceAllString(text, "\n")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
