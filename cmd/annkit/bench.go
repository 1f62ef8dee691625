package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/annkit"
	"github.com/hupe1980/annkit/blobstore"
	"github.com/hupe1980/annkit/config"
	"github.com/hupe1980/annkit/metrics/prom"
	"github.com/hupe1980/annkit/testutil"
)

var (
	benchRows         int
	benchDim          int
	benchQueries      int
	benchSeed         int64
	benchTrainParams  string
	benchSearchParams string
	benchOut          string
	benchMetricsAddr  string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Build an index on random vectors and measure recall and latency",
	Long: `Build an index of the selected kind on uniformly random vectors, run
the approximate search and the exhaustive search over the same queries,
and report recall@k together with build and query latency.

With --out the index is published as a snapshot into that directory.
With --metrics-addr the Prometheus metrics are served on that address
until interrupted.`,
	Example: `  annkit bench --kind HNSW --n 20000 --dim 64 --params '{"M": 16, "efConstruction": 200}' --search-params '{"k": 10, "ef": 64}'`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchRows, "n", 10000, "number of rows to index")
	benchCmd.Flags().IntVar(&benchDim, "dim", 64, "vector dimension")
	benchCmd.Flags().IntVar(&benchQueries, "queries", 100, "number of queries")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 42, "random seed")
	benchCmd.Flags().StringVarP(&benchTrainParams, "params", "p", "", "TRAIN document: inline JSON or JSON/YAML file")
	benchCmd.Flags().StringVar(&benchSearchParams, "search-params", "", "SEARCH document: inline JSON or JSON/YAML file")
	benchCmd.Flags().StringVar(&benchOut, "out", "", "directory to publish the built index into")
	benchCmd.Flags().StringVar(&benchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(benchCmd)
}

type benchReport struct {
	build    time.Duration
	approx   time.Duration
	exact    time.Duration
	recall   float64
	k        int
	snapshot string
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trainDoc, err := loadDocument(benchTrainParams)
	if err != nil {
		return err
	}
	searchDoc, err := loadDocument(benchSearchParams)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	logger := annkit.NoopLogger()
	if verbose {
		logger = annkit.NewTextLogger(slog.LevelDebug)
	}
	ix, err := annkit.New[float32](kindName,
		annkit.WithLogger(logger),
		annkit.WithMetricsCollector(prom.NewCollector(reg)),
	)
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()

	rep, err := bench(ctx, ix, trainDoc, searchDoc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "kind:      %s\n", ix.Kind())
	fmt.Fprintf(out, "rows:      %d x %d\n", ix.Count(), ix.Dim())
	fmt.Fprintf(out, "build:     %s (%.0f rows/s)\n", rep.build, float64(benchRows)/rep.build.Seconds())
	fmt.Fprintf(out, "search:    %s/query\n", perQuery(rep.approx))
	fmt.Fprintf(out, "bruteforce: %s/query\n", perQuery(rep.exact))
	fmt.Fprintf(out, "recall@%d: %.4f\n", rep.k, rep.recall)
	if rep.snapshot != "" {
		fmt.Fprintf(out, "snapshot:  %s\n", rep.snapshot)
	}

	if benchMetricsAddr == "" {
		return nil
	}
	return serveMetrics(ctx, reg, benchMetricsAddr)
}

func bench(ctx context.Context, ix *annkit.Index[float32], trainDoc, searchDoc config.Document) (*benchReport, error) {
	rng := testutil.NewRNG(benchSeed)
	vectors := rng.UniformVectors(benchRows, benchDim)
	queries := rng.UniformVectors(benchQueries, benchDim)

	rep := &benchReport{}
	start := time.Now()
	if err := ix.Build(ctx, annkit.Dataset[float32]{Vectors: vectors}, trainDoc); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	rep.build = time.Since(start)

	start = time.Now()
	approx, err := ix.Search(ctx, queries, searchDoc, nil)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	rep.approx = time.Since(start)

	exactDoc := config.MustParseDocument(`{}`)
	if r, ok := searchDoc.Lookup("k"); ok {
		if exactDoc, err = exactDoc.WithRaw("k", r.Raw); err != nil {
			return nil, err
		}
	}
	start = time.Now()
	exact, err := ix.SearchBF(ctx, queries, exactDoc, nil)
	if err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	rep.exact = time.Since(start)

	truth := make([][]int64, len(queries))
	got := make([][]int64, len(queries))
	for i := range queries {
		truth[i], _ = exact.Row(i)
		got[i], _ = approx.Row(i)
	}
	rep.k = approx.K
	rep.recall = testutil.MeanRecall(truth, got)

	if benchOut != "" {
		if rep.snapshot, err = ix.Publish(ctx, blobstore.NewLocalStore(benchOut)); err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
	}
	return rep, nil
}

func perQuery(d time.Duration) time.Duration {
	if benchQueries == 0 {
		return 0
	}
	return d / time.Duration(benchQueries)
}

func serveMetrics(ctx context.Context, reg *prometheus.Registry, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("serving metrics on %s/metrics\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
