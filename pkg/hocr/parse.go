package hocr

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// lineClasses are the hOCR classes Tesseract and other engines use for a text line.
var lineClasses = []string{"ocr_line", "ocrx_line", "ocr_header", "ocr_caption", "ocr_textfloat"}

// Parse converts raw hOCR data into a Document.
func Parse(data []byte) (Document, error) {
	doc := Document{Metadata: make(map[string]string)}

	decoded, err := toUTF8(data)
	if err != nil {
		return doc, err
	}

	root, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return doc, fmt.Errorf("failed to parse hOCR HTML: %w", err)
	}

	readDocumentMeta(&doc, root)

	var findPages func(*html.Node)
	findPages = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_page") {
			doc.Pages = append(doc.Pages, readPage(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findPages(c)
		}
	}
	findPages(root)

	if len(doc.Pages) == 0 {
		return doc, fmt.Errorf("no ocr_page elements found in hOCR data")
	}
	return doc, nil
}

// toUTF8 re-encodes Latin-1 documents; anything else is assumed to be UTF-8 already.
func toUTF8(data []byte) ([]byte, error) {
	enc := declaredCharset(data)
	if enc == "" || enc == "utf-8" || enc == "utf8" {
		return data, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", enc, err)
	}
	return out, nil
}

func declaredCharset(data []byte) string {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	i := bytes.Index(bytes.ToLower(head), []byte("charset="))
	if i < 0 {
		return ""
	}
	rest := string(head[i+len("charset="):])
	fields := strings.FieldsFunc(rest, func(r rune) bool {
		return r == '"' || r == ';' || r == '\'' || r == '>' || r == ' ' || r == '/'
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// ParseTitle breaks down an hOCR title attribute into its components
// Example input: "bbox 100 200 300 400; x_wconf 95"
func ParseTitle(title string) map[string][]string {
	props := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		items := strings.Fields(part)
		if len(items) > 0 {
			props[items[0]] = items[1:]
		}
	}
	return props
}

// ParseBBox extracts the bbox property from a title attribute.
func ParseBBox(title string) (BBox, bool) {
	v, ok := ParseTitle(title)["bbox"]
	if !ok || len(v) < 4 {
		return BBox{}, false
	}
	var n [4]float64
	for i := range n {
		f, err := strconv.ParseFloat(v[i], 64)
		if err != nil {
			return BBox{}, false
		}
		n[i] = f
	}
	return BBox{X1: n[0], Y1: n[1], X2: n[2], Y2: n[3]}, true
}

func readDocumentMeta(doc *Document, root *html.Node) {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "html":
				if lang := attr(n, "lang"); lang != "" {
					doc.Language = lang
				} else if lang := attr(n, "xml:lang"); lang != "" {
					doc.Language = lang
				}
			case "title":
				if n.FirstChild != nil {
					doc.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name, content := attr(n, "name"), attr(n, "content")
				switch {
				case name == "" || content == "":
				case strings.HasPrefix(name, "ocr-"):
					doc.Metadata[name] = content
				case name == "dc.language":
					doc.Language = content
				}
			case "body":
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
}

func readPage(n *html.Node) Page {
	page := Page{ID: attr(n, "id")}
	title := attr(n, "title")
	if bbox, ok := ParseBBox(title); ok {
		page.BBox = bbox
	}
	props := ParseTitle(title)
	if ppageno, ok := props["ppageno"]; ok && len(ppageno) > 0 {
		page.Number, _ = strconv.Atoi(ppageno[0])
	}

	// Words that sit outside any line element.
	var loose Line
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode {
			if hasAnyClass(c, lineClasses) {
				page.Lines = append(page.Lines, readLine(c))
				return
			}
			if hasClass(c, "ocrx_word") {
				loose.Words = append(loose.Words, readWord(c))
				return
			}
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	if len(loose.Words) > 0 {
		loose.ID = page.ID + "_loose"
		loose.BBox = unionBBox(loose.Words)
		page.Lines = append(page.Lines, loose)
	}
	return page
}

func readLine(n *html.Node) Line {
	line := Line{ID: attr(n, "id")}
	title := attr(n, "title")
	if bbox, ok := ParseBBox(title); ok {
		line.BBox = bbox
	}

	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && hasClass(c, "ocrx_word") {
			line.Words = append(line.Words, readWord(c))
			return
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return line
}

func readWord(n *html.Node) Word {
	word := Word{ID: attr(n, "id"), Lang: attr(n, "lang")}
	title := attr(n, "title")
	if bbox, ok := ParseBBox(title); ok {
		word.BBox = bbox
	}
	props := ParseTitle(title)
	if conf, ok := props["x_wconf"]; ok && len(conf) > 0 {
		word.Confidence, _ = strconv.ParseFloat(conf[0], 64)
	}
	word.Text = textContent(n)
	return word
}

func unionBBox(words []Word) BBox {
	b := words[0].BBox
	for _, w := range words[1:] {
		b.X1 = min(b.X1, w.BBox.X1)
		b.Y1 = min(b.Y1, w.BBox.Y1)
		b.X2 = max(b.X2, w.BBox.X2)
		b.Y2 = max(b.Y2, w.BBox.Y2)
	}
	return b
}

// textContent concatenates all text beneath n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func hasAnyClass(n *html.Node, classes []string) bool {
	for _, c := range classes {
		if hasClass(n, c) {
			return true
		}
	}
	return false
}
