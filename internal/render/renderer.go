package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const DefaultTool = "wkhtmltoimage"

var ErrToolMissing = errors.New("render tool is not installed or not in PATH")

// ToolError reports a non-zero exit of the render tool.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no output"
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, msg)
}

type Options struct {
	Tool      string
	OutputDir string
	Width     int
	Quality   int
	Format    string
}

type runFunc func(ctx context.Context, name string, args ...string) (stderr []byte, err error)

type Renderer struct {
	opts     Options
	lookPath func(string) (string, error)
	run      runFunc
}

func NewRenderer(opts Options) *Renderer {
	if opts.Tool == "" {
		opts.Tool = DefaultTool
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if opts.Width <= 0 {
		opts.Width = 1200
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 100
	}
	if opts.Format == "" {
		opts.Format = "png"
	}
	return &Renderer{opts: opts, lookPath: exec.LookPath, run: runCommand}
}

// Render writes doc as an image under the output directory and returns its
// path. The intermediate HTML file lives in a temporary directory that is
// removed before returning.
func (r *Renderer) Render(ctx context.Context, doc Document) (string, error) {
	if _, err := r.lookPath(r.opts.Tool); err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, r.opts.Tool)
	}

	page, err := BuildHTML(doc)
	if err != nil {
		return "", err
	}

	tmpDir, err := os.MkdirTemp("", "gmat-render-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "question.html")
	if err := os.WriteFile(htmlPath, []byte(page), 0o600); err != nil {
		return "", fmt.Errorf("write question html: %w", err)
	}

	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outPath := filepath.Join(r.opts.OutputDir, fmt.Sprintf("question_%s.%s", safeName(doc.ID), r.opts.Format))

	args := []string{
		"--width", strconv.Itoa(r.opts.Width),
		"--disable-smart-width",
		"--quality", strconv.Itoa(r.opts.Quality),
		"--format", r.opts.Format,
		htmlPath,
		outPath,
	}
	stderr, err := r.run(ctx, r.opts.Tool, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ToolError{Tool: r.opts.Tool, ExitCode: exitErr.ExitCode(), Stderr: string(stderr)}
		}
		return "", fmt.Errorf("run %s: %w", r.opts.Tool, err)
	}

	return outPath, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	err := cmd.Run()
	return []byte(stderr.String()), err
}

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(id string) string {
	name := reUnsafe.ReplaceAllString(id, "_")
	if name == "" {
		return "unknown"
	}
	return name
}
