// Package hocr parses hOCR, the HTML-based format OCR engines use to report recognized text
// together with its position on the page.
//
// The object model is reduced to what a text layer needs: Document → Pages → Lines → Words,
// each carrying a bounding box in image pixel coordinates. Areas and paragraphs present in the
// source are flattened; their lines keep document order.
//
// Key Types:
//
// - Document: an entire hOCR document
// - Page: one element with class 'ocr_page'
// - Line: one text line ('ocr_line', 'ocr_header', 'ocr_caption', 'ocr_textfloat', 'ocrx_line')
// - Word: one element with class 'ocrx_word'
// - BBox: a rectangle, origin at the top-left of the page image
//
// Main Functions:
//
// - Parse: parses hOCR HTML into the object model
// - ParseTitle / ParseBBox: decode hOCR 'title' property lists
package hocr
