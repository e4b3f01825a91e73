package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TesseractOptions configures the local rasterize-and-recognize pipeline.
type TesseractOptions struct {
	PdftoppmPath  string
	TesseractPath string
	DPI           int
	Languages     string
}

// Tesseract rasterizes pages with poppler's pdftoppm and recognizes each
// page image with the tesseract CLI.
type Tesseract struct {
	opts TesseractOptions
}

// NewTesseract creates a Tesseract recognizer, filling defaults for empty options.
func NewTesseract(opts TesseractOptions) *Tesseract {
	if opts.PdftoppmPath == "" {
		opts.PdftoppmPath = "pdftoppm"
	}
	if opts.TesseractPath == "" {
		opts.TesseractPath = "tesseract"
	}
	if opts.DPI <= 0 {
		opts.DPI = 200
	}
	if opts.Languages == "" {
		opts.Languages = "rus+eng"
	}
	return &Tesseract{opts: opts}
}

// Name implements Recognizer.
func (*Tesseract) Name() string { return "tesseract" }

// Available reports whether both binaries can be found.
func (t *Tesseract) Available() bool {
	if _, err := exec.LookPath(t.opts.PdftoppmPath); err != nil {
		return false
	}
	_, err := exec.LookPath(t.opts.TesseractPath)
	return err == nil
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(ctx context.Context, pdfPath string) ([]string, error) {
	dir, err := os.MkdirTemp("", "fin-extract-ocr-*")
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create work dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	prefix := filepath.Join(dir, "page")
	if _, err := run(ctx, t.opts.PdftoppmPath, "-r", strconv.Itoa(t.opts.DPI), "-png", pdfPath, prefix); err != nil {
		return nil, eris.Wrap(err, "ocr: rasterize")
	}

	images, err := pageImages(dir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, eris.New("ocr: pdftoppm produced no page images")
	}

	pages := make([]string, 0, len(images))
	for i, img := range images {
		text, err := run(ctx, t.opts.TesseractPath, img, "stdout", "-l", t.opts.Languages)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: recognize page %d", i+1)
		}
		pages = append(pages, text)
	}

	zap.L().Debug("ocr: tesseract finished",
		zap.String("file", pdfPath),
		zap.Int("pages", len(pages)),
	)
	return pages, nil
}

// pageImages lists the rasterized pages in numeric page order.
func pageImages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: list page images")
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	n, err := strconv.Atoi(strings.TrimPrefix(base, "page-"))
	if err != nil {
		return 0
	}
	return n
}

func run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "%s failed: %s", filepath.Base(bin), strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
