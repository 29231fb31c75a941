package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pawpantry/larder/pkg/cli"
	"pawpantry/larder/pkg/client"
	"pawpantry/larder/pkg/upstream"
)

var benchFlags struct {
	path        string
	requests    int
	concurrency int
	timeout     time.Duration
	format      string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load test the proxy endpoint",
	Long: `Send GET requests for one path to a running server's /api/wp endpoint
and report throughput, latency percentiles, and how many answers were the
fallback envelope.

Examples:
  # 200 requests, 10 at a time
  larder bench --path /wp/v2/recipe --requests 200 --concurrency 10

  # JSON report
  larder bench --path /wp/v2/faq --format json`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVar(&benchFlags.path, "path", "/wp/v2/posts", "API path to request")
	benchCmd.Flags().IntVar(&benchFlags.requests, "requests", 100, "total requests")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 4, "concurrent requests")
	benchCmd.Flags().DurationVar(&benchFlags.timeout, "timeout", 60*time.Second, "per-request timeout")
	benchCmd.Flags().StringVar(&benchFlags.format, "format", "text", "output format: text, json, csv")
}

// benchResults summarizes a load test.
type benchResults struct {
	Target     string  `json:"target"`
	Requests   int     `json:"requests"`
	OK         int     `json:"ok"`
	Fallbacks  int     `json:"fallbacks"`
	Errors     int     `json:"errors"`
	Duration   string  `json:"duration"`
	Throughput float64 `json:"throughput"`
	Latency    latency `json:"latency"`
}

type latency struct {
	Min    time.Duration `json:"min_ns"`
	Mean   time.Duration `json:"mean_ns"`
	Median time.Duration `json:"median_ns"`
	P95    time.Duration `json:"p95_ns"`
	P99    time.Duration `json:"p99_ns"`
	Max    time.Duration `json:"max_ns"`
}

func (r benchResults) Header() []string { return []string{"metric", "value"} }

func (r benchResults) Rows() [][]string {
	ms := func(d time.Duration) string { return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000) }
	return [][]string{
		{"target", r.Target},
		{"requests", strconv.Itoa(r.Requests)},
		{"ok", strconv.Itoa(r.OK)},
		{"fallbacks", strconv.Itoa(r.Fallbacks)},
		{"errors", strconv.Itoa(r.Errors)},
		{"duration", r.Duration},
		{"throughput", fmt.Sprintf("%.2f req/s", r.Throughput)},
		{"latency_min", ms(r.Latency.Min)},
		{"latency_mean", ms(r.Latency.Mean)},
		{"latency_median", ms(r.Latency.Median)},
		{"latency_p95", ms(r.Latency.P95)},
		{"latency_p99", ms(r.Latency.P99)},
		{"latency_max", ms(r.Latency.Max)},
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(benchFlags.format)
	if err != nil {
		return err
	}
	if benchFlags.requests <= 0 || benchFlags.concurrency <= 0 {
		return fmt.Errorf("--requests and --concurrency must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

	c, err := client.New(proxyClientConfig(cfg))
	if err != nil {
		return cli.NewConfigError("client", err.Error())
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "Benchmarking")
	results := loadTest(ctx, &http.Client{Timeout: benchFlags.timeout}, c.URL(benchFlags.path),
		benchFlags.requests, benchFlags.concurrency, progress)

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), results)
}

// loadTest sends total GET requests to target with at most concurrency
// in flight.
func loadTest(ctx context.Context, hc *http.Client, target string, total, concurrency int, progress cli.ProgressReporter) benchResults {
	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, total)
		res       = benchResults{Target: target}
	)

	progress.Start(int64(total))
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < total && ctx.Err() == nil; i++ {
		g.Go(func() error {
			reqStart := time.Now()
			fallback, err := benchRequest(ctx, hc, target)
			elapsed := time.Since(reqStart)

			mu.Lock()
			res.Requests++
			switch {
			case err != nil:
				res.Errors++
			case fallback:
				res.Fallbacks++
				latencies = append(latencies, elapsed)
			default:
				res.OK++
				latencies = append(latencies, elapsed)
			}
			mu.Unlock()

			progress.Increment()
			return nil
		})
	}
	_ = g.Wait()
	progress.Finish()

	duration := time.Since(start)
	res.Duration = duration.Round(time.Millisecond).String()
	if secs := duration.Seconds(); secs > 0 {
		res.Throughput = float64(res.OK+res.Fallbacks) / secs
	}
	res.Latency = calculatePercentiles(latencies)
	return res
}

func benchRequest(ctx context.Context, hc *http.Client, target string) (fallback bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Header.Get(upstream.HeaderFallback) == "1", nil
}

func calculatePercentiles(latencies []time.Duration) latency {
	if len(latencies) == 0 {
		return latency{}
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var sum time.Duration
	for _, lat := range sorted {
		sum += lat
	}

	at := func(q float64) time.Duration {
		return sorted[min(int(float64(len(sorted))*q), len(sorted)-1)]
	}

	return latency{
		Min:    sorted[0],
		Mean:   sum / time.Duration(len(sorted)),
		Median: sorted[len(sorted)/2],
		P95:    at(0.95),
		P99:    at(0.99),
		Max:    sorted[len(sorted)-1],
	}
}
