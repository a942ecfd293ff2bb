package gdocai

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/mergepdf/pkg/hocr"
	"github.com/gardar/mergepdf/pkg/ocr"
)

type fakeProcessor struct {
	doc  *documentaipb.Document
	err  error
	req  *documentaipb.ProcessRequest
	done bool
}

func (f *fakeProcessor) process(_ context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
	f.req = req
	return f.doc, f.err
}

func (f *fakeProcessor) Close() error {
	f.done = true
	return nil
}

func anchor(start, end int64) *documentaipb.Document_TextAnchor {
	return &documentaipb.Document_TextAnchor{
		TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
	}
}

func normalizedLayout(start, end int64, x1, y1, x2, y2 float32) *documentaipb.Document_Page_Layout {
	return &documentaipb.Document_Page_Layout{
		TextAnchor: anchor(start, end),
		Confidence: 0.9,
		BoundingPoly: &documentaipb.BoundingPoly{
			NormalizedVertices: []*documentaipb.NormalizedVertex{
				{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2},
			},
		},
	}
}

// sampleDocument has one line "Hello world" and a stray token "p1" outside it.
func sampleDocument() *documentaipb.Document {
	en := []*documentaipb.Document_Page_DetectedLanguage{{LanguageCode: "en"}}
	return &documentaipb.Document{
		Text: "Hello world\np1",
		Pages: []*documentaipb.Document_Page{{
			PageNumber: 1,
			Dimension:  &documentaipb.Document_Page_Dimension{Width: 1000, Height: 2000, Unit: "pixels"},
			Lines: []*documentaipb.Document_Page_Line{
				{Layout: normalizedLayout(0, 12, 0.1, 0.1, 0.5, 0.12)},
			},
			Tokens: []*documentaipb.Document_Page_Token{
				{Layout: normalizedLayout(0, 6, 0.1, 0.1, 0.25, 0.12), DetectedLanguages: en},
				{Layout: normalizedLayout(6, 12, 0.3, 0.1, 0.5, 0.12), DetectedLanguages: en},
				{Layout: normalizedLayout(12, 14, 0.9, 0.95, 0.95, 0.97)},
			},
		}},
	}
}

func TestPageFromProto(t *testing.T) {
	doc := sampleDocument()
	page := PageFromProto(doc.Pages[0], doc.Text, 1)

	if page.BBox != (hocr.BBox{X2: 1000, Y2: 2000}) {
		t.Fatalf("page bbox = %+v", page.BBox)
	}
	if len(page.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(page.Lines))
	}

	var texts []string
	for _, w := range page.Words() {
		texts = append(texts, w.Text)
	}
	if want := []string{"Hello", "world", "p1"}; !reflect.DeepEqual(texts, want) {
		t.Fatalf("words = %v, want %v", texts, want)
	}

	hello := page.Lines[0].Words[0]
	if hello.BBox != (hocr.BBox{X1: 100, Y1: 200, X2: 250, Y2: 240}) {
		t.Fatalf("hello bbox = %+v", hello.BBox)
	}
	if hello.Lang != "en" || hello.Confidence < 89 || hello.Confidence > 91 {
		t.Fatalf("hello = %+v", hello)
	}
	if page.Lines[1].BBox != page.Lines[1].Words[0].BBox {
		t.Fatalf("trailing line bbox = %+v", page.Lines[1].BBox)
	}
}

func TestRecognize(t *testing.T) {
	fake := &fakeProcessor{doc: sampleDocument()}
	debug := t.TempDir()
	e := &Engine{
		cfg:  Config{ProjectID: "p", Location: "eu", ProcessorID: "abc", DebugDir: debug},
		proc: fake,
	}

	res, err := e.Recognize(context.Background(), ocr.Request{ID: "item/1", Image: []byte("png"), Language: "eng+deu"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.HOCR == nil || len(res.HOCR.Pages) != 1 || res.HOCR.Language != "en" {
		t.Fatalf("unexpected result %+v", res.HOCR)
	}

	if got, want := fake.req.Name, "projects/p/locations/eu/processors/abc"; got != want {
		t.Fatalf("processor name = %q, want %q", got, want)
	}
	raw := fake.req.GetRawDocument()
	if raw.GetMimeType() != "image/png" || string(raw.GetContent()) != "png" {
		t.Fatalf("raw document = %+v", raw)
	}
	hints := fake.req.GetProcessOptions().GetOcrConfig().GetHints().GetLanguageHints()
	if want := []string{"en", "de"}; !reflect.DeepEqual(hints, want) {
		t.Fatalf("language hints = %v, want %v", hints, want)
	}

	if _, err := os.Stat(filepath.Join(debug, "item_1-documentai.json")); err != nil {
		t.Fatalf("debug output missing: %v", err)
	}

	if err := e.Close(); err != nil || !fake.done {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecognizeSurvivesDebugWriteFailure(t *testing.T) {
	// A regular file where the debug directory should be makes every write fail.
	blocker := filepath.Join(t.TempDir(), "debug")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	e := &Engine{
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
		cfg:    Config{ProjectID: "p", Location: "eu", ProcessorID: "abc", DebugDir: filepath.Join(blocker, "sub")},
		proc:   &fakeProcessor{doc: sampleDocument()},
	}

	res, err := e.Recognize(context.Background(), ocr.Request{ID: "1", Image: []byte("png")})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.HOCR == nil || len(res.HOCR.Pages) != 1 {
		t.Fatalf("unexpected result %+v", res.HOCR)
	}
	if !strings.Contains(logs.String(), "Could not write debug response.") {
		t.Fatalf("missing warning in logs: %s", logs.String())
	}
}

func TestRecognizeErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	tests := []struct {
		name string
		proc *fakeProcessor
		req  ocr.Request
		want error
	}{
		{name: "empty image", proc: &fakeProcessor{}, req: ocr.Request{}},
		{name: "api failure", proc: &fakeProcessor{err: boom}, req: ocr.Request{Image: []byte("png")}, want: boom},
		{name: "no pages", proc: &fakeProcessor{doc: &documentaipb.Document{}}, req: ocr.Request{Image: []byte("png")}, want: ocr.ErrNoText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{cfg: Config{ProjectID: "p", Location: "us", ProcessorID: "x"}, proc: tt.proc}
			_, err := e.Recognize(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Location: "us", ProcessorID: "x"}).validate(); err == nil {
		t.Fatal("expected missing project error")
	}
	if err := (Config{ProjectID: "p", Location: "us", ProcessorID: "x"}).validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTextFromLayoutClamps(t *testing.T) {
	layout := &documentaipb.Document_Page_Layout{TextAnchor: anchor(3, 100)}
	if got := textFromLayout(layout, "héllo"); got != "lo" {
		t.Fatalf("textFromLayout = %q", got)
	}
	if got := textFromLayout(nil, "x"); got != "" {
		t.Fatalf("textFromLayout(nil) = %q", got)
	}
}
