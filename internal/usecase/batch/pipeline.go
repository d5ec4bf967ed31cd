// Package batch embeds a collection of JSON documents with per-item failure isolation.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docvec/internal/domain"
	dombatch "github.com/kailas-cloud/docvec/internal/domain/batch"
	"github.com/kailas-cloud/docvec/internal/metrics"
	"github.com/kailas-cloud/docvec/internal/repository/dataset"
)

// Pipeline reads documents from a Source, embeds them and hands them to a Sink.
// A failing item is recorded in the summary and never stops the run.
type Pipeline struct {
	embed   Embedder
	text    TextFunc
	workers int
	pattern string
	logger  *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithWorkers processes up to n items concurrently. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = max(n, 1) }
}

// WithTextFunc replaces the default whole-document text.
func WithTextFunc(f TextFunc) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.text = f
		}
	}
}

// WithPattern sets the file glob RunDir enumerates.
func WithPattern(pattern string) Option {
	return func(p *Pipeline) { p.pattern = pattern }
}

// NewPipeline creates a pipeline. By default it embeds the compact form of each document.
func NewPipeline(embed Embedder, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		embed:   embed,
		text:    WholeDocument,
		workers: 1,
		pattern: dataset.DefaultPattern,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunDir embeds every matching file in inputDir. With an empty outputDir the run is dry:
// nothing is written and a preview of each embedding is logged.
func (p *Pipeline) RunDir(ctx context.Context, inputDir, outputDir string) (dombatch.Summary, error) {
	src, err := dataset.NewDirSource(inputDir, p.pattern)
	if err != nil {
		return dombatch.NewSummary(), fmt.Errorf("open input: %w", err)
	}

	var sink Sink = dataset.NewDiscardSink(p.logger)
	if outputDir != "" {
		dirSink, err := dataset.NewDirSink(outputDir)
		if err != nil {
			return dombatch.NewSummary(), fmt.Errorf("open output: %w", err)
		}
		sink = dirSink
	}
	return p.Run(ctx, src, sink)
}

// Run processes every item the source lists. The returned error is non-nil only when the
// source cannot be listed or ctx is canceled; item failures live in the summary.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink) (dombatch.Summary, error) {
	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	summary := dombatch.NewSummary()
	names, err := src.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("list items: %w", err)
	}
	p.logger.Info("Batch started", zap.Int("items", len(names)), zap.Int("workers", p.workers))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.workers)

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := p.processItem(ctx, src, sink, name)
			if res.Err() != nil && ctx.Err() != nil {
				return nil // aborted, not failed
			}
			p.record(res)

			mu.Lock()
			summary.Add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.logger.Warn("Batch aborted", zap.Int("processed", summary.Processed), zap.Error(err))
		return summary, fmt.Errorf("batch aborted after %d items: %w", summary.Processed, err)
	}

	p.logger.Info("Batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

func (p *Pipeline) processItem(ctx context.Context, src Source, sink Sink, name string) dombatch.Result {
	raw, err := src.Read(ctx, name)
	if err != nil {
		return dombatch.NewError(name, err)
	}

	doc, err := parseObject(raw)
	if err != nil {
		return dombatch.NewError(name, fmt.Errorf("%s: %w", name, err))
	}

	text, err := p.text(doc)
	if err != nil {
		return dombatch.NewError(name, fmt.Errorf("%s: %w", name, err))
	}

	emb, err := p.embed.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingService) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
		return dombatch.NewError(name, fmt.Errorf("embed %s: %w", name, err))
	}

	out, err := attachEmbedding(doc, emb.Embedding)
	if err != nil {
		return dombatch.NewError(name, fmt.Errorf("%s: %w", name, err))
	}

	if err := sink.Write(ctx, name, out, emb.Embedding); err != nil {
		return dombatch.NewError(name, err)
	}
	return dombatch.NewOK(name)
}

func (p *Pipeline) record(res dombatch.Result) {
	kind := domain.ErrorKind(res.Err())
	metrics.BatchItemsTotal.WithLabelValues(string(res.Status()), kind).Inc()
	if res.Err() != nil {
		p.logger.Warn("Batch item failed",
			zap.String("file", res.Name()),
			zap.String("kind", kind),
			zap.Error(res.Err()),
		)
		return
	}
	p.logger.Debug("Batch item embedded", zap.String("file", res.Name()))
}

// parseObject accepts only a syntactically valid JSON object.
// The result has no surrounding whitespace and no spare capacity.
func parseObject(raw []byte) ([]byte, error) {
	doc := bytes.TrimSpace(raw)
	if !json.Valid(doc) {
		return nil, fmt.Errorf("invalid JSON: %w", domain.ErrDocumentParse)
	}
	if _, typ, _, err := jsonparser.Get(doc); err != nil || typ != jsonparser.Object {
		return nil, fmt.Errorf("top-level value is not an object: %w", domain.ErrDocumentParse)
	}
	return slices.Clip(doc), nil
}

// attachEmbedding sets the top-level embedding key, replacing a previous one in place,
// and pretty-prints the document. Every other member keeps its bytes and position.
func attachEmbedding(doc []byte, vector []float32) ([]byte, error) {
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w: %w", domain.ErrEmbeddingService, err)
	}
	spliced, err := jsonparser.Set(doc, vecJSON, domain.EmbeddingField)
	if err != nil {
		return nil, fmt.Errorf("attach embedding: %w: %w", domain.ErrDocumentParse, err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, spliced, "", "  "); err != nil {
		return nil, fmt.Errorf("format document: %w: %w", domain.ErrDocumentParse, err)
	}
	return buf.Bytes(), nil
}

// WholeDocument embeds the compact form of the document without its embedding key,
// so re-running over pipeline output embeds the same text.
func WholeDocument(doc []byte) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	err := jsonparser.ObjectEach(doc, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		if string(key) == domain.EmbeddingField {
			return nil
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		k, err := json.Marshal(string(key))
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if typ == jsonparser.String {
			buf.WriteByte('"')
			buf.Write(value)
			buf.WriteByte('"')
			return nil
		}
		return json.Compact(&buf, value)
	})
	if err != nil {
		return "", fmt.Errorf("render document text: %w: %w", domain.ErrDocumentParse, err)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// FieldText embeds a single field addressed by a dotted path, e.g. "code.text".
// Strings are embedded as their value, other types as compact JSON.
func FieldText(path string) TextFunc {
	keys := strings.Split(path, ".")
	return func(doc []byte) (string, error) {
		value, typ, _, err := jsonparser.Get(doc, keys...)
		if err != nil {
			return "", fmt.Errorf("text field %q: %w: %w", path, domain.ErrDocumentParse, err)
		}
		switch typ {
		case jsonparser.String:
			s, err := jsonparser.ParseString(value)
			if err != nil {
				return "", fmt.Errorf("text field %q: %w: %w", path, domain.ErrDocumentParse, err)
			}
			if s == "" {
				return "", fmt.Errorf("text field %q is empty: %w", path, domain.ErrDocumentParse)
			}
			return s, nil
		case jsonparser.Null:
			return "", fmt.Errorf("text field %q is null: %w", path, domain.ErrDocumentParse)
		default:
			var buf bytes.Buffer
			if err := json.Compact(&buf, value); err != nil {
				return "", fmt.Errorf("text field %q: %w: %w", path, domain.ErrDocumentParse, err)
			}
			return buf.String(), nil
		}
	}
}
