package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/domain"
)

// PreviewSize is how many embedding values DiscardSink logs per document.
const PreviewSize = 5

// DirSink writes each document under the same file name in an output directory.
type DirSink struct {
	dir string
}

// NewDirSink creates the output directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w: %w", dir, domain.ErrIO, err)
	}
	return &DirSink{dir: dir}, nil
}

// Write stores doc as <dir>/<name>, replacing any previous file.
func (s *DirSink) Write(_ context.Context, name string, doc []byte, _ []float32) error {
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, doc, 0o644); err != nil { //nolint:gosec // output documents are not secrets
		return fmt.Errorf("write %s: %w: %w", path, domain.ErrIO, err)
	}
	return nil
}

// DiscardSink drops documents and logs a preview of each embedding. Used for dry runs.
type DiscardSink struct {
	logger *zap.Logger
}

// NewDiscardSink creates a dry-run sink.
func NewDiscardSink(logger *zap.Logger) *DiscardSink {
	return &DiscardSink{logger: logger}
}

// Write logs the first PreviewSize embedding values.
func (s *DiscardSink) Write(_ context.Context, name string, _ []byte, vector []float32) error {
	s.logger.Info("Embedding generated",
		zap.String("file", name),
		zap.Int("dimensions", len(vector)),
		zap.Float32s("preview", vector[:min(PreviewSize, len(vector))]),
	)
	return nil
}

// writer is the sink contract shared by every sink in this package.
type writer interface {
	Write(ctx context.Context, name string, doc []byte, vector []float32) error
}

// TeeSink hands each document to several sinks in order.
type TeeSink struct {
	sinks []writer
}

// Tee combines sinks. Every sink sees every document; errors are joined.
func Tee(sinks ...writer) *TeeSink {
	return &TeeSink{sinks: sinks}
}

// Write forwards to every sink.
func (t *TeeSink) Write(ctx context.Context, name string, doc []byte, vector []float32) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Write(ctx, name, doc, vector); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
