package gdocai

import (
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/mergepdf/pkg/hocr"
)

// DocumentFromProto converts a Document AI response to hOCR.
func DocumentFromProto(doc *documentaipb.Document) hocr.Document {
	lang := documentLanguage(doc)
	out := hocr.Document{
		Title:    "Document OCR",
		Language: lang,
		Metadata: map[string]string{
			"ocr-system":          "Document AI OCR",
			"ocr-number-of-pages": fmt.Sprintf("%d", len(doc.GetPages())),
			"ocr-capabilities":    "ocr_page ocr_line ocrx_word",
		},
	}
	if lang != "" {
		out.Metadata["ocr-langs"] = lang
	}
	for i, page := range doc.GetPages() {
		n := int(page.PageNumber)
		if n == 0 {
			n = i + 1
		}
		out.Pages = append(out.Pages, PageFromProto(page, doc.GetText(), n))
	}
	return out
}

// PageFromProto converts a single Document AI page. Tokens are assigned to the first line
// whose text anchor contains them; tokens outside every line are kept in a trailing line.
func PageFromProto(page *documentaipb.Document_Page, fullText string, pageNumber int) hocr.Page {
	out := hocr.Page{
		ID:     fmt.Sprintf("page_%d", pageNumber),
		Number: pageNumber,
	}
	if dim := page.GetDimension(); dim != nil {
		out.BBox = hocr.BBox{X2: float64(dim.Width), Y2: float64(dim.Height)}
	}
	if bbox, ok := layoutBBox(page.GetLayout(), page.GetDimension()); ok && out.BBox.Empty() {
		out.BBox = bbox
	}

	assigned := make([]bool, len(page.GetTokens()))
	for lidx, line := range page.GetLines() {
		ocrLine := hocr.Line{ID: fmt.Sprintf("line_%d_%d", pageNumber, lidx)}
		if bbox, ok := layoutBBox(line.GetLayout(), page.GetDimension()); ok {
			ocrLine.BBox = bbox
		}
		for tidx, token := range page.GetTokens() {
			if assigned[tidx] || !isElementInParent(token.GetLayout(), line.GetLayout()) {
				continue
			}
			assigned[tidx] = true
			if w, ok := convertToken(token, page, fullText, pageNumber, tidx); ok {
				ocrLine.Words = append(ocrLine.Words, w)
			}
		}
		if len(ocrLine.Words) > 0 {
			out.Lines = append(out.Lines, ocrLine)
		}
	}

	var rest hocr.Line
	for tidx, token := range page.GetTokens() {
		if assigned[tidx] {
			continue
		}
		if w, ok := convertToken(token, page, fullText, pageNumber, tidx); ok {
			rest.Words = append(rest.Words, w)
		}
	}
	if len(rest.Words) > 0 {
		rest.ID = fmt.Sprintf("line_%d_rest", pageNumber)
		rest.BBox = unionBBox(rest.Words)
		out.Lines = append(out.Lines, rest)
	}
	return out
}

func convertToken(token *documentaipb.Document_Page_Token, page *documentaipb.Document_Page, fullText string, pageNumber, tidx int) (hocr.Word, bool) {
	text := strings.TrimSpace(textFromLayout(token.GetLayout(), fullText))
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	if text == "" {
		return hocr.Word{}, false
	}
	bbox, ok := layoutBBox(token.GetLayout(), page.GetDimension())
	if !ok {
		return hocr.Word{}, false
	}
	word := hocr.Word{
		ID:         fmt.Sprintf("word_%d_%d", pageNumber, tidx),
		Text:       text,
		BBox:       bbox,
		Confidence: float64(token.GetLayout().GetConfidence() * 100),
	}
	if langs := token.GetDetectedLanguages(); len(langs) > 0 {
		word.Lang = langs[0].LanguageCode
	}
	return word, true
}

// layoutBBox converts a bounding poly to image pixels. Normalized vertices (0-1) are scaled
// by the page dimension; absolute vertices are used as-is.
func layoutBBox(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension) (hocr.BBox, bool) {
	poly := layout.GetBoundingPoly()
	if poly == nil {
		return hocr.BBox{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	extend := func(x, y float64) {
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	switch {
	case len(poly.NormalizedVertices) > 0 && dim != nil:
		for _, v := range poly.NormalizedVertices {
			extend(float64(v.X*dim.Width), float64(v.Y*dim.Height))
		}
	case len(poly.Vertices) > 0:
		for _, v := range poly.Vertices {
			extend(float64(v.X), float64(v.Y))
		}
	default:
		return hocr.BBox{}, false
	}
	bbox := hocr.BBox{X1: math.Round(minX), Y1: math.Round(minY), X2: math.Round(maxX), Y2: math.Round(maxY)}
	return bbox, !bbox.Empty()
}

func unionBBox(words []hocr.Word) hocr.BBox {
	b := words[0].BBox
	for _, w := range words[1:] {
		b.X1 = math.Min(b.X1, w.BBox.X1)
		b.Y1 = math.Min(b.Y1, w.BBox.Y1)
		b.X2 = math.Max(b.X2, w.BBox.X2)
		b.Y2 = math.Max(b.Y2, w.BBox.Y2)
	}
	return b
}

// documentLanguage finds the most common language by counting occurrences on pages and tokens.
func documentLanguage(doc *documentaipb.Document) string {
	langCount := make(map[string]int)
	for _, page := range doc.GetPages() {
		for _, lang := range page.DetectedLanguages {
			langCount[lang.LanguageCode]++
		}
		for _, token := range page.Tokens {
			for _, lang := range token.DetectedLanguages {
				langCount[lang.LanguageCode]++
			}
		}
	}

	var mostCommon string
	var highest int
	for lang, count := range langCount {
		if count > highest || (count == highest && lang < mostCommon) {
			highest = count
			mostCommon = lang
		}
	}
	return mostCommon
}

// isElementInParent reports whether the element's first text segment lies within the parent's.
func isElementInParent(elementLayout, parentLayout *documentaipb.Document_Page_Layout) bool {
	es := elementLayout.GetTextAnchor().GetTextSegments()
	ps := parentLayout.GetTextAnchor().GetTextSegments()
	if len(es) == 0 || len(ps) == 0 {
		return false
	}
	return es[0].StartIndex >= ps[0].StartIndex && es[0].EndIndex <= ps[0].EndIndex
}
