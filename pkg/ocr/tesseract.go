package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/gardar/mergepdf/pkg/hocr"
)

const (
	defaultBinary  = "tesseract"
	defaultTimeout = 2 * time.Minute
)

// Tesseract runs the tesseract CLI once per page.
type Tesseract struct {
	Binary  string
	Timeout time.Duration
	Output  Output
	// TempDir holds the per-call input image; empty means the OS temp dir.
	TempDir string
	// Variables are passed as -c name=value, e.g. preserve_interword_spaces=1.
	Variables map[string]string
}

// NewTesseract returns a Tesseract engine with sane defaults.
func NewTesseract(output Output) *Tesseract {
	return &Tesseract{
		Binary:  defaultBinary,
		Timeout: defaultTimeout,
		Output:  output,
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Recognize writes req.Image to a temp file and reads the rendered PDF or hOCR from stdout.
//
// Cancelling ctx does not interrupt a running page; the timeout does. Callers discard the
// result of a cancelled request.
func (t *Tesseract) Recognize(ctx context.Context, req Request) (*Result, error) {
	if len(req.Image) == 0 {
		return nil, errors.New("image is required")
	}
	output := t.Output
	if output == "" {
		output = OutputPDF
	}
	if output != OutputPDF && output != OutputHOCR {
		return nil, fmt.Errorf("unsupported tesseract output %q", output)
	}

	in, err := os.CreateTemp(t.TempDir, "ocr-input-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(req.Image); err != nil {
		in.Close()
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}

	stdout, err := t.run(ctx, t.args(in.Name(), req, output))
	if err != nil {
		return nil, err
	}
	if len(stdout) == 0 {
		return nil, ErrNoText
	}

	if output == OutputPDF {
		return &Result{PDF: stdout}, nil
	}
	doc, err := hocr.Parse(stdout)
	if err != nil {
		return nil, fmt.Errorf("parse tesseract hocr: %w", err)
	}
	return &Result{HOCR: &doc}, nil
}

func (t *Tesseract) args(input string, req Request, output Output) []string {
	args := []string{input, "stdout"}
	if req.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(req.DPI))
	}
	if req.Language != "" {
		args = append(args, "-l", req.Language)
	}
	for _, k := range slices.Sorted(maps.Keys(t.Variables)) {
		args = append(args, "-c", k+"="+t.Variables[k])
	}
	return append(args, string(output))
}

func (t *Tesseract) run(ctx context.Context, args []string) ([]byte, error) {
	binary := t.Binary
	if binary == "" {
		binary = defaultBinary
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cmdCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w - %s", filepath.Base(binary), err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// ResolveBinary finds binary on PATH and returns its absolute path, so later runs do not
// depend on the working directory.
func ResolveBinary(binary string) (string, error) {
	if binary == "" {
		binary = defaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("tesseract binary not found (%s): %w", binary, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs, nil
	}
	return path, nil
}
