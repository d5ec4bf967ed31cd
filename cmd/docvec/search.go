package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docvec/internal/domain/search/result"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
	"github.com/kailas-cloud/docvec/internal/metrics"
	searchuc "github.com/kailas-cloud/docvec/internal/usecase/search"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		strat     string
		limit     int
		partition string
	)
	cmd := &cobra.Command{
		Use:   "search TEXT",
		Short: "Embed TEXT and print the nearest documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := strategy.Strategy("")
			if strat != "" {
				parsed, err := strategy.Parse(strat)
				if err != nil {
					return err
				}
				st = parsed
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runSearch(ctx, cmd.OutOrStdout(), searchuc.Request{
				Query:     strings.Join(args, " "),
				Strategy:  st,
				Limit:     limit,
				Partition: partition,
			})
		},
	}
	cmd.Flags().StringVarP(&strat, "strategy", "s", "", "unordered, ordered or filtered (default search.default_strategy)")
	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "Maximum results (default search.default_limit)")
	cmd.Flags().StringVarP(&partition, "partition", "p", "", "Partition value; implies the filtered strategy")
	return cmd
}

func (a *app) runSearch(ctx context.Context, w io.Writer, req searchuc.Request) error {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	store, err := openStore(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder := buildEmbedder(a.cfg.Embedding, kvOf(store), a.cfg.Embedding.QueryInstruction, a.logger)
	svc, err := newSearchService(a.cfg.Search, embedder, store, a.logger)
	if err != nil {
		return err
	}

	cur, err := svc.Open(ctx, req)
	if err != nil {
		return err
	}
	return printResults(w, cur.All())
}

// printResults writes one row per result as it arrives from the cursor.
func printResults(w io.Writer, results iter.Seq2[result.Result, error]) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tTITLE\tPARTITION")
	n := 0
	for r, err := range results {
		if err != nil {
			_ = tw.Flush()
			return err
		}
		doc := r.Document()
		fmt.Fprintf(tw, "%.6f\t%s\t%s\t%s\n", r.Score(), r.ID(), doc.Title, doc.PartKey)
		n++
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(w, "no results")
	}
	return nil
}
