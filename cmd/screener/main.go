package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"equity-screener/internal/app"
	"equity-screener/internal/config"
	"equity-screener/internal/domain"
	"equity-screener/internal/repository"
	"equity-screener/internal/service"
	"equity-screener/internal/tui"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultWorkers  = 8
	failuresShown   = 10
	failureErrWidth = 60
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = pgxpool.New
	runTUIFunc  = tui.Run
)

type options struct {
	input      string
	output     string
	policyFile string
	workers    int
	ingest     bool
	browse     bool
}

func main() {
	loadEnvFunc()

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("parse options: %v", err)
	}
	if err := run(context.Background(), opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	start := time.Now()

	policy, err := config.LoadPolicy(opts.policyFile)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	inputs, err := readInputs(opts.input)
	if err != nil {
		return err
	}

	tracer := trace.NewNoopTracerProvider().Tracer("screener")
	svc := app.NewAnalysisService(tracer, &config.Config{AnalysisWorkers: opts.workers}, policy, nil, nil)

	report, err := svc.Analyze(ctx, inputs)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if opts.output != "" {
		if err := writeRecords(opts.output, report.Records); err != nil {
			return err
		}
	}
	if opts.ingest {
		if err := ingest(ctx, inputs); err != nil {
			return err
		}
	}

	printSummary(out, report, time.Since(start))
	if opts.output != "" {
		fmt.Fprintf(out, "Records: %s\n", opts.output)
	}
	fmt.Fprintln(out, strings.Repeat("=", 60))

	if opts.browse {
		return runTUIFunc(tui.Services{Analyses: reportQuerier{report: report}, Username: os.Getenv("USER")})
	}
	return nil
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("screener", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	input := fs.String("input", "", "JSON batch file of snapshots and price bars, or - for stdin")
	output := fs.String("output", "", "write analysis records as JSON to this path")
	policyFile := fs.String("policy", strings.TrimSpace(getenv("POLICY_FILE")), "TOML policy override file (default from POLICY_FILE)")
	workers := fs.Int("workers", defaultWorkerCount(getenv), "parallel per-ticker pipelines (default from ANALYSIS_WORKERS, else 8)")
	ingestFlag := fs.Bool("ingest", false, "also store the batch in Postgres (requires DATABASE_URL)")
	browse := fs.Bool("tui", false, "browse the results in the terminal UI after the run")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if strings.TrimSpace(*input) == "" {
		return options{}, fmt.Errorf("input is required")
	}
	if *workers <= 0 {
		return options{}, fmt.Errorf("workers must be > 0")
	}

	return options{
		input:      strings.TrimSpace(*input),
		output:     strings.TrimSpace(*output),
		policyFile: *policyFile,
		workers:    *workers,
		ingest:     *ingestFlag,
		browse:     *browse,
	}, nil
}

func defaultWorkerCount(getenv func(string) string) int {
	v := strings.TrimSpace(getenv("ANALYSIS_WORKERS"))
	if v == "" {
		return defaultWorkers
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultWorkers
	}
	return n
}

func readInputs(path string) ([]domain.TickerInput, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return decodeInputs(r)
}

func decodeInputs(r io.Reader) ([]domain.TickerInput, error) {
	var inputs []domain.TickerInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("input batch is empty")
	}
	return inputs, nil
}

func writeRecords(path string, records []domain.AnalysisRecord) error {
	if records == nil {
		records = []domain.AnalysisRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

func ingest(ctx context.Context, inputs []domain.TickerInput) error {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is required for -ingest")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pool, err := openPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	tracer := trace.NewNoopTracerProvider().Tracer("screener")
	svc := service.NewAnalysisService(
		tracer,
		nil,
		repository.NewSnapshotRepository(pool, tracer),
		repository.NewPriceRepository(pool, tracer),
		nil,
	)
	if err := svc.Ingest(ctx, inputs); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	log.Printf("ingested %d tickers", len(inputs))
	return nil
}

func printSummary(w io.Writer, report domain.BatchReport, elapsed time.Duration) {
	sum := report.Summary
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  ANALYSIS SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total stocks analyzed: %d\n", sum.Analyzed)
	if sum.Failed > 0 {
		fmt.Fprintf(w, "Failed: %d\n", sum.Failed)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Signal Distribution:")
	for _, action := range domain.AllActions {
		count := sum.Distribution[action]
		fmt.Fprintf(w, "  %12s: %3d %s\n", action, count, strings.Repeat("#", count))
	}
	fmt.Fprintln(w)

	if len(sum.TopBuys) > 0 {
		fmt.Fprintln(w, "Top 10 Buy Signals (by conviction):")
		for _, pick := range sum.TopBuys {
			fmt.Fprintf(w, "  %6s: %15s | Conv: %d/5 | Upside: %8s | Price: %s\n",
				pick.Ticker, pick.Recommendation, pick.Conviction, upside(pick.UpsidePct), price(pick.CurrentPrice))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Data Quality: High=%d, Medium=%d, Low=%d\n",
		sum.Confidence[domain.ConfidenceHigh],
		sum.Confidence[domain.ConfidenceMedium],
		sum.Confidence[domain.ConfidenceLow],
	)

	if len(report.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failed tickers (%d):\n", len(report.Failures))
		for _, f := range report.Failures[:min(len(report.Failures), failuresShown)] {
			fmt.Fprintf(w, "  %s: %s\n", f.Ticker, clip(f.Error, failureErrWidth))
		}
		if extra := len(report.Failures) - failuresShown; extra > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", extra)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total time: %.1fs\n", elapsed.Seconds())
}

func upside(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", *v*100)
}

func price(v *float64) string {
	if v == nil || *v == 0 {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// reportQuerier serves a finished in-memory run to the TUI.
type reportQuerier struct {
	report domain.BatchReport
}

func (q reportQuerier) ListAnalyses(_ context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisRecord, error) {
	filter, err := service.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	return service.FilterRecords(q.report.Records, filter), nil
}

func (q reportQuerier) LatestReport(context.Context) (*domain.BatchReport, error) {
	slim := q.report
	slim.Records = nil
	return &slim, nil
}
