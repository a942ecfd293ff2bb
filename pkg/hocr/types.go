package hocr

import "strings"

// Document represents an entire hOCR document
type Document struct {
	Title    string            // Document title
	Language string            // Document language
	Metadata map[string]string // ocr-system, ocr-langs, ... from <meta>
	Pages    []Page
}

// Page is one page of recognized text
// Corresponds to hOCR element with class: 'ocr_page'
type Page struct {
	ID     string
	Number int  // ppageno, when present
	BBox   BBox // Page extent in image pixels
	Lines  []Line
}

// Line is a line of text. Words found outside any line element are grouped into a
// synthetic line so no recognized text is lost.
type Line struct {
	ID    string
	BBox  BBox
	Words []Word
}

// Word is a recognized word with bounding box
// Corresponds to hOCR element with class: 'ocrx_word'
type Word struct {
	ID         string
	Text       string
	BBox       BBox
	Confidence float64 // x_wconf, 0-100
	Lang       string
}

// BBox is a rectangle in image pixels. X1, Y1 is the top-left corner.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Empty reports whether the box has no area.
func (b BBox) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Words returns every word on the page in reading order.
func (p Page) Words() []Word {
	var words []Word
	for _, line := range p.Lines {
		words = append(words, line.Words...)
	}
	return words
}

// Text returns the page text, one line per row.
func (p Page) Text() string {
	var b strings.Builder
	for _, line := range p.Lines {
		for i, w := range line.Words {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(w.Text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
