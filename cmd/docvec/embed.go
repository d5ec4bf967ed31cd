package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/db"
	dombatch "github.com/kailas-cloud/docvec/internal/domain/batch"
	"github.com/kailas-cloud/docvec/internal/metrics"
	"github.com/kailas-cloud/docvec/internal/repository/dataset"
	"github.com/kailas-cloud/docvec/internal/repository/document"
	batchuc "github.com/kailas-cloud/docvec/internal/usecase/batch"
)

type embedFlags struct {
	input     string
	output    string
	pattern   string
	textField string
	workers   int
	upload    bool
}

func newEmbedCmd(a *app) *cobra.Command {
	var f embedFlags
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed every JSON document in a directory",
		Long: "Reads each matching file, attaches an \"embedding\" array and writes it to --output.\n" +
			"Without --output and --upload the run is dry: embeddings are only previewed in the log.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runEmbed(ctx, cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input directory (default batch.input_dir)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory (default batch.output_dir)")
	cmd.Flags().StringVar(&f.pattern, "pattern", "", "File name pattern (default batch.pattern)")
	cmd.Flags().StringVar(&f.textField, "text-field", "", "Dotted path of the field to embed instead of the whole document")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Concurrent documents (default batch.workers)")
	cmd.Flags().BoolVar(&f.upload, "upload", false, "Also upsert each document and its vector into the store")
	cmd.Flags().Bool("dry-run", false, "Do not write output files")
	return cmd
}

func (a *app) runEmbed(ctx context.Context, cmd *cobra.Command, f embedFlags) error {
	cfg := a.cfg.Batch
	if f.input == "" {
		f.input = cfg.InputDir
	}
	if f.input == "" {
		return fmt.Errorf("--input is required")
	}
	if f.output == "" && !cmd.Flags().Changed("output") {
		f.output = cfg.OutputDir
	}
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		f.output = ""
	}
	if f.pattern == "" {
		f.pattern = cfg.Pattern
	}
	if f.textField == "" {
		f.textField = cfg.TextField
	}
	if f.workers <= 0 {
		f.workers = cfg.Workers
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	var store db.Store
	if f.upload || a.cfg.Embedding.Cache.Enabled {
		var err error
		store, err = openStore(ctx, a.cfg.Store, a.logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}
	var kv db.KVStore
	if store != nil {
		kv = kvOf(store)
	}

	opts := []batchuc.Option{batchuc.WithWorkers(f.workers), batchuc.WithPattern(f.pattern)}
	if f.textField != "" {
		opts = append(opts, batchuc.WithTextFunc(batchuc.FieldText(f.textField)))
	}
	embedder := buildEmbedder(a.cfg.Embedding, kv, a.cfg.Embedding.DocumentInstruction, a.logger)
	pipeline := batchuc.NewPipeline(embedder, a.logger, opts...)

	a.logger.Info("Embedding documents",
		zap.String("input", f.input),
		zap.String("output", f.output),
		zap.Bool("upload", f.upload),
		zap.Int("workers", f.workers),
	)

	var (
		summary dombatch.Summary
		err     error
	)
	if f.upload {
		summary, err = a.runUpload(ctx, pipeline, store, f)
	} else {
		summary, err = pipeline.RunDir(ctx, f.input, f.output)
	}
	printSummary(cmd.OutOrStdout(), summary)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", summary.Failed, summary.Processed)
	}
	return nil
}

func (a *app) runUpload(
	ctx context.Context, p *batchuc.Pipeline, store db.Store, f embedFlags,
) (dombatch.Summary, error) {
	src, err := dataset.NewDirSource(f.input, f.pattern)
	if err != nil {
		return dombatch.NewSummary(), fmt.Errorf("open input: %w", err)
	}

	var sink batchuc.Sink = document.NewStoreSink(store, a.cfg.Embedding.Dimensions, a.logger)
	if f.output != "" {
		dirSink, err := dataset.NewDirSink(f.output)
		if err != nil {
			return dombatch.NewSummary(), fmt.Errorf("open output: %w", err)
		}
		sink = dataset.Tee(dirSink, sink)
	}
	return p.Run(ctx, src, sink)
}

func printSummary(w io.Writer, s dombatch.Summary) {
	fmt.Fprintf(w, "processed %d, succeeded %d, failed %d\n", s.Processed, s.Succeeded, s.Failed)
	kinds := s.ErrorKinds()
	for _, name := range s.FailedNames() {
		fmt.Fprintf(w, "  %s: %s: %v\n", name, kinds[name], s.Errors[name])
	}
}
