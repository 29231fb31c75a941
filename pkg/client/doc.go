// Package client calls the proxy endpoint on behalf of rendering code and
// turns its answers into typed results.
//
// The proxy owns resilience: it retries the content API and answers with
// the fallback envelope when it cannot. The client never retries. It
// decodes the body into the caller's type, reports a fallback through
// Result.Fallback instead of an error, and keeps a revalidating data cache
// so a fallback can be answered with the last good response.
//
// # Basic Usage
//
//	c, err := client.New(cfg.Client, client.WithStore(store))
//	if err != nil {
//	    return err
//	}
//
//	res, err := client.FetchList[Recipe](ctx, c, "/wp/v2/recipe?per_page=50", nil)
//	if err != nil {
//	    return err // the proxy itself answered non-2xx or was unreachable
//	}
//	if res.Fallback {
//	    // content API unavailable, res.Data is an empty slice
//	}
//
// # Caching
//
// GET responses are stored for Options.Revalidate (default 300s) under
// Options.Tags (default ["wp"]). A fresh entry is returned without a call.
// An expired entry triggers a refetch; when that refetch falls back the
// expired entry is served with Result.Stale set. Fallback bodies are never
// stored. Concurrent fetches of the same path share one call.
package client
