package fetch

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"rsc.io/pdf"
)

var ErrUnsupportedContentType = errors.New("unsupported content type")

const maxPDFRunes = 220_000

// contentSelector matches one element kind that commonly wraps the main
// text of a page. Selectors are tried in order; the first one with text wins.
type contentSelector struct {
	tag      string
	attr     string
	value    string
	hasClass bool
}

var contentSelectors = []contentSelector{
	{tag: "article"},
	{tag: "main"},
	{attr: "role", value: "main"},
	{attr: "id", value: "content"},
	{attr: "class", value: "content", hasClass: true},
	{attr: "class", value: "post-content", hasClass: true},
	{attr: "class", value: "entry-content", hasClass: true},
}

func extractContent(contentType string, body []byte) (title, text string, err error) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, parseErr := mime.ParseMediaType(mediaType); parseErr == nil {
		mediaType = parsed
	}

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		title, text, err = extractHTMLText(body)
	case "text/plain", "text/markdown", "text/csv":
		text = string(body)
	case "application/json":
		text, err = extractJSONText(body)
	case "application/pdf":
		text, err = extractPDFTextFromBody(body)
	default:
		if strings.HasPrefix(mediaType, "text/") {
			text = string(body)
			break
		}
		return "", "", ErrUnsupportedContentType
	}
	if err != nil {
		return "", "", err
	}
	return trimToRunes(collapseWhitespace(title), 240), collapseWhitespace(text), nil
}

func extractJSONText(data []byte) (string, error) {
	if !json.Valid(data) {
		return string(data), nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return "", err
	}
	return compact.String(), nil
}

func extractPDFTextFromBody(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	runeCount := 0
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		for _, item := range page.Content().Text {
			chunk := strings.TrimSpace(item.S)
			if chunk == "" {
				continue
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteByte(' ')
				runeCount++
			}
			textBuilder.WriteString(chunk)
			runeCount += utf8.RuneCountInString(chunk)
			if runeCount >= maxPDFRunes {
				return trimToRunes(textBuilder.String(), maxPDFRunes), nil
			}
		}
	}
	return textBuilder.String(), nil
}

func extractHTMLText(data []byte) (title, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", "", err
	}

	title = findHTMLTitle(doc)
	for _, selector := range contentSelectors {
		node := findFirst(doc, selector.matches)
		if node == nil {
			continue
		}
		if text := visibleText(node); text != "" {
			return title, text, nil
		}
	}
	if body := findFirst(doc, func(n *html.Node) bool { return isElement(n, "body") }); body != nil {
		return title, visibleText(body), nil
	}
	return title, visibleText(doc), nil
}

func (s contentSelector) matches(node *html.Node) bool {
	if node.Type != html.ElementNode {
		return false
	}
	if s.tag != "" {
		return strings.EqualFold(node.Data, s.tag)
	}
	value, ok := attribute(node, s.attr)
	if !ok {
		return false
	}
	if s.hasClass {
		for _, class := range strings.Fields(value) {
			if class == s.value {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(strings.TrimSpace(value), s.value)
}

func attribute(node *html.Node, key string) (string, bool) {
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val, true
		}
	}
	return "", false
}

func isElement(node *html.Node, tag string) bool {
	return node != nil && node.Type == html.ElementNode && strings.EqualFold(node.Data, tag)
}

func findFirst(node *html.Node, match func(*html.Node) bool) *html.Node {
	if node == nil {
		return nil
	}
	if match(node) {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirst(child, match); found != nil {
			return found
		}
	}
	return nil
}

func findHTMLTitle(doc *html.Node) string {
	node := findFirst(doc, func(n *html.Node) bool { return isElement(n, "title") })
	if node == nil {
		return ""
	}
	var builder strings.Builder
	walkHTMLText(node, false, &builder)
	return strings.TrimSpace(builder.String())
}

func visibleText(node *html.Node) string {
	var builder strings.Builder
	walkHTMLText(node, false, &builder)
	return collapseWhitespace(builder.String())
}

func walkHTMLText(node *html.Node, skip bool, out *strings.Builder) {
	if node == nil || out == nil {
		return
	}
	if node.Type == html.ElementNode {
		switch strings.ToLower(node.Data) {
		case "script", "style", "noscript", "svg", "iframe", "head", "nav", "footer":
			skip = true
		}
	}
	if node.Type == html.TextNode && !skip {
		trimmed := strings.TrimSpace(node.Data)
		if trimmed != "" {
			out.WriteString(trimmed)
			out.WriteByte(' ')
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walkHTMLText(child, skip, out)
	}
}

func collapseWhitespace(raw string) string {
	return strings.Join(strings.Fields(strings.ToValidUTF8(raw, "")), " ")
}

func trimToRunes(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
