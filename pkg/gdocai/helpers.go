package gdocai

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ToJSON renders a protocol buffer message as indented JSON.
func ToJSON(m proto.Message) (string, error) {
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writeDebug stores the raw response for one page as <id>-documentai.json.
func writeDebug(dir, id string, m proto.Message) error {
	if id == "" {
		id = "page"
	}
	out, err := ToJSON(m)
	if err != nil {
		return fmt.Errorf("marshal documentai response: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create debug dir: %w", err)
	}
	path := filepath.Join(dir, unsafeName.ReplaceAllString(id, "_")+"-documentai.json")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write debug output: %w", err)
	}
	return nil
}
