package pdfocr

// DefaultLayerName is the optional content group holding the OCR text.
const DefaultLayerName = "OCR Text"

// FontConfig selects the core font used for the invisible words.
type FontConfig struct {
	Name  string
	Style string
	Size  float64
	// AscentRatio places the baseline below the top of the word box, as a share of the
	// font size.
	AscentRatio float64
}

var DefaultFont = FontConfig{Name: "Helvetica", Size: 10, AscentRatio: 0.718}
