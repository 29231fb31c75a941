package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"pawpantry/larder/pkg/cli"
	"pawpantry/larder/pkg/client"
	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/upstream"
)

// errFallback is returned by fetch --fail-on-fallback.
var errFallback = errors.New("upstream unavailable, fallback envelope returned")

var fetchFlags struct {
	viaProxy       bool
	format         string
	failOnFallback bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch PATH",
	Short: "Fetch one content API path",
	Long: `Fetch a WordPress API path with the same retry policy the proxy
endpoint uses, and print the body.

By default the upstream is called directly. With --via-proxy the request
goes through a running larder server's /api/wp endpoint instead.

In text mode the body is written to stdout and the outcome to stderr, so
the output can be piped into jq.

Examples:
  # Fetch a recipe by slug
  larder fetch "/wp/v2/recipe?slug=chicken-stew"

  # Go through the running server and fail when it falls back
  larder fetch /wp/v2/posts --via-proxy --fail-on-fallback

  # Print outcome and body as one JSON document
  larder fetch /wp/v2/faq --format json`,
	Args: cobra.ExactArgs(1),
	RunE: fetchPath,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchFlags.viaProxy, "via-proxy", false, "call the running server's proxy endpoint")
	fetchCmd.Flags().StringVar(&fetchFlags.format, "format", "text", "output format: text, json")
	fetchCmd.Flags().BoolVar(&fetchFlags.failOnFallback, "fail-on-fallback", false, "exit non-zero when the fallback envelope is returned")
}

// fetchResult is the outcome of one fetch.
type fetchResult struct {
	Path     string          `json:"path"`
	Via      string          `json:"via"`
	Status   int             `json:"status,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
	Fallback bool            `json:"fallback"`
	Reason   string          `json:"reason,omitempty"`
	Body     json.RawMessage `json:"body"`
}

func fetchPath(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(fetchFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return fmt.Errorf("csv output is not supported by fetch")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	path := args[0]
	var res fetchResult
	if fetchFlags.viaProxy {
		c, err := client.New(proxyClientConfig(cfg), client.WithLogger(logger.Logger))
		if err != nil {
			return cli.NewConfigError("client", err.Error())
		}
		res, err = fetchViaProxy(ctx, c, path)
		if err != nil {
			return cli.NewCommandError("fetch", err)
		}
	} else {
		f, err := upstream.New(cfg.Upstream, upstream.WithLogger(logger.Logger))
		if err != nil {
			return cli.NewConfigError("upstream", err.Error())
		}
		resp, err := f.Fetch(ctx, upstream.Request{Path: path})
		if err != nil {
			return cli.NewCommandError("fetch", err)
		}
		res = fetchResult{
			Path:     path,
			Via:      "upstream",
			Status:   resp.StatusCode,
			Attempts: resp.Attempts,
			Fallback: resp.Fallback,
			Reason:   resp.FallbackReason,
			Body:     resp.Body,
		}
	}

	if err := writeFetchResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), format, res); err != nil {
		return err
	}
	if res.Fallback && fetchFlags.failOnFallback {
		return cli.NewCommandError("fetch", errFallback)
	}
	return nil
}

// proxyClientConfig points the client configuration at the resolved
// proxy URL.
func proxyClientConfig(cfg *config.Config) config.ClientConfig {
	cc := cfg.Client
	cc.ProxyURL = cfg.ResolvedProxyURL()
	return cc
}

func fetchViaProxy(ctx context.Context, c *client.Client, path string) (fetchResult, error) {
	res, err := client.Fetch[json.RawMessage](ctx, c, path, &client.Options{NoCache: true})
	if err != nil {
		return fetchResult{}, err
	}

	out := fetchResult{Path: path, Via: "proxy", Fallback: res.Fallback, Body: res.Data}
	if res.Fallback {
		out.Body = upstream.FallbackBody()
	}
	return out, nil
}

func writeFetchResult(stdout, stderr io.Writer, format cli.OutputFormat, res fetchResult) error {
	if format == cli.FormatJSON {
		if !json.Valid(res.Body) {
			res.Body, _ = json.Marshal(string(res.Body))
		}
		return cli.NewFormatter(cli.FormatJSON).FormatTo(stdout, res)
	}

	switch {
	case res.Fallback && res.Reason != "":
		fmt.Fprintf(stderr, "✗ %s via %s: fallback (%s)\n", res.Path, res.Via, res.Reason)
	case res.Fallback:
		fmt.Fprintf(stderr, "✗ %s via %s: fallback\n", res.Path, res.Via)
	default:
		status := "ok"
		if res.Status != 0 {
			status = strconv.Itoa(res.Status)
		}
		fmt.Fprintf(stderr, "✓ %s via %s: %s", res.Path, res.Via, status)
		if res.Attempts > 1 {
			fmt.Fprintf(stderr, " after %d attempts", res.Attempts)
		}
		fmt.Fprintln(stderr)
	}

	if _, err := stdout.Write(res.Body); err != nil {
		return err
	}
	_, err := fmt.Fprintln(stdout)
	return err
}
