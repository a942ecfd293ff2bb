package gdocai

import (
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

// textFromLayout joins the text anchor segments of layout. Segment offsets index runes of
// fullText and are clamped to it.
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	segments := layout.GetTextAnchor().GetTextSegments()
	if len(segments) == 0 {
		return ""
	}
	runes := []rune(fullText)
	clamp := func(i int64) int { return int(max(0, min(i, int64(len(runes))))) }

	var sb strings.Builder
	for _, seg := range segments {
		start, end := clamp(seg.GetStartIndex()), clamp(seg.GetEndIndex())
		if start < end {
			sb.WriteString(string(runes[start:end]))
		}
	}
	return sb.String()
}
