package pdfocr

// normalizeCoords maps a point from an hOCR page of hocrW x hocrH pixels onto a drawn image of
// pdfW x pdfH points.
func normalizeCoords(x, y, hocrW, hocrH, pdfW, pdfH float64) (float64, float64) {
	return x * pdfW / hocrW, y * pdfH / hocrH
}
