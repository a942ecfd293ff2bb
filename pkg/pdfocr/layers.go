package pdfocr

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// ocgName matches the /Name string of an optional content group dictionary, with /Type
// written before or shortly after it. Objects inside compressed streams are not visible.
var ocgName = regexp.MustCompile(
	`/Type\s*/OCG\s*/Name\s*\(((?:\\.|[^)\\])*)\)` +
		`|/Name\s*\(((?:\\.|[^)\\])*)\)[^()]{0,50}?/Type\s*/OCG`)

// LayerReport describes the optional content groups found in a PDF.
type LayerReport struct {
	Layers []string
	// Match is the layer carrying the requested text layer name, empty when there is none.
	Match string
	// Suspects are other layers whose name mentions OCR.
	Suspects []string
}

func (r LayerReport) HasOCRLayer() bool { return r.Match != "" }

// CheckOCRLayer looks for a layer called name, or name followed by a "(Page N)" suffix.
func CheckOCRLayer(pdf []byte, name string) (LayerReport, error) {
	if len(pdf) == 0 {
		return LayerReport{}, errors.New("cannot analyze layers: empty PDF data")
	}
	report := LayerReport{Layers: layerNames(pdf)}
	for _, layer := range report.Layers {
		rest, ok := strings.CutPrefix(layer, name)
		switch {
		case ok && (rest == "" || isPageSuffix(rest)):
			if report.Match == "" {
				report.Match = layer
			}
		case !ok && strings.Contains(strings.ToLower(layer), "ocr"):
			report.Suspects = append(report.Suspects, layer)
		}
	}
	return report, nil
}

func isPageSuffix(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "(Page")
}

// layerNames returns the distinct OCG names in document order.
func layerNames(pdf []byte) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range ocgName.FindAllSubmatch(pdf, -1) {
		raw := m[1]
		if raw == nil {
			raw = m[2]
		}
		name := decodeTextString(unescapePDFString(raw))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// decodeTextString turns a PDF text string into UTF-8. Strings with a FE FF byte order mark
// are UTF-16BE; anything else is taken as is.
func decodeTextString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	}
	return string(b)
}

// unescapePDFString resolves the backslash escapes of a literal string body.
func unescapePDFString(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			out = append(out, c)
			continue
		}
		i++
		switch c = s[i]; c {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case '\n':
			// line continuation
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := int(c - '0')
			for n := 1; n < 3 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; n++ {
				i++
				v = v*8 + int(s[i]-'0')
			}
			out = append(out, byte(v))
		default:
			out = append(out, c)
		}
	}
	return out
}
