package upstream

import (
	"encoding/base64"
	"strings"
)

// BuildURL joins the origin, API prefix and logical path. Trailing slashes
// on the origin are stripped and the path gets exactly one leading slash.
//
//	BuildURL("https://cms.example.com/", "/wp-json", "//wp/v2/posts")
//	// https://cms.example.com/wp-json/wp/v2/posts
func BuildURL(baseURL, prefix, path string) string {
	return strings.TrimRight(baseURL, "/") + prefix + NormalizePath(path)
}

// NormalizePath returns path with exactly one leading slash.
func NormalizePath(path string) string {
	return "/" + strings.TrimLeft(path, "/")
}

// BasicAuth returns the Authorization header value for username and
// password, or "" unless both are set.
func BasicAuth(username, password string) string {
	if username == "" || password == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
