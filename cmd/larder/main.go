// Larder is a resilient proxy in front of a WordPress content API.
//
// It serves the upstream JSON through /api/wp with retries and a stable
// fallback envelope, and builds a cached recipe, article and FAQ catalogue
// on top of it:
//   - Bounded retries with backoff for rate limits and gateway errors
//   - A fallback body instead of an error when the upstream is unavailable
//   - A data cache (memory, sqlite or bbolt) with stale-on-failure reads
//   - Tag revalidation, Prometheus metrics, and OpenTelemetry traces
//
// Usage:
//
//	# Start the server
//	larder run --config larder.yaml
//
//	# Check configuration
//	larder validate
//
//	# Fetch one path through the retry policy
//	larder fetch /wp/v2/recipe?slug=chicken-stew
//
//	# Prime the data cache from a running server
//	larder cache warm
//
//	# Remove cached entries past their stale window
//	larder cache prune
package main

func main() {
	Execute()
}
