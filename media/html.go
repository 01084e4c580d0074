package media

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToText extracts the readable text of an HTML document.
func HTMLToText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, head").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li, td, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return collapse(doc.Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
