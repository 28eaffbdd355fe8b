// Package origin rewrites Wallhaven image URLs onto the local proxy and
// derives the secondary origin used when the primary keeps failing.
package origin

import (
	"strings"
)

// Remote hosts serving Wallhaven content.
const (
	ImageHost = "https://w.wallhaven.cc"
	ThumbHost = "https://th.wallhaven.cc"
	SiteHost  = "https://wallhaven.cc"
)

// Rewriter holds the configured rewrite targets. Empty fields disable the
// corresponding rewrite.
type Rewriter struct {
	// ImageProxyBase replaces ImageHost, e.g. http://localhost:5173/proxy/image.
	ImageProxyBase string
	// ThumbProxyBase replaces ThumbHost.
	ThumbProxyBase string
	// FallbackImageHost serves the same paths as ImageHost from another endpoint.
	FallbackImageHost string
}

// ProxiedFull maps a full-resolution URL onto the image proxy.
func (r Rewriter) ProxiedFull(u string) string {
	return replaceHost(u, ImageHost, r.ImageProxyBase)
}

// ProxiedThumb maps a thumbnail URL onto the thumbnail proxy.
func (r Rewriter) ProxiedThumb(u string) string {
	return replaceHost(u, ThumbHost, r.ThumbProxyBase)
}

// ProxiedDownload is ProxiedFull that also maps the bare site host, which
// some records use for their original file path.
func (r Rewriter) ProxiedDownload(u string) string {
	if out := replaceHost(u, ImageHost, r.ImageProxyBase); out != u {
		return out
	}
	return replaceHost(u, SiteHost, r.ImageProxyBase)
}

// Fallback returns the same resource on the secondary origin, or "" when no
// URL distinct from the primary (proxied) one exists. The input may be the
// original or the proxied URL.
func (r Rewriter) Fallback(u string) string {
	direct := r.Unproxy(u)
	primary := r.ProxiedDownload(direct)

	var out string
	switch {
	case r.FallbackImageHost != "" && strings.HasPrefix(direct, ImageHost+"/"):
		out = strings.TrimRight(r.FallbackImageHost, "/") + strings.TrimPrefix(direct, ImageHost)
	case r.FallbackImageHost != "" && strings.HasPrefix(direct, SiteHost+"/"):
		out = strings.TrimRight(r.FallbackImageHost, "/") + strings.TrimPrefix(direct, SiteHost)
	case primary != direct:
		// Primary goes through the proxy, so the origin itself is the alternative.
		out = direct
	}
	if out == "" || out == primary {
		return ""
	}
	return out
}

// Unproxy maps a proxied URL back to its origin.
func (r Rewriter) Unproxy(u string) string {
	if r.ImageProxyBase != "" && strings.HasPrefix(u, strings.TrimRight(r.ImageProxyBase, "/")) {
		return ImageHost + strings.TrimPrefix(u, strings.TrimRight(r.ImageProxyBase, "/"))
	}
	if r.ThumbProxyBase != "" && strings.HasPrefix(u, strings.TrimRight(r.ThumbProxyBase, "/")) {
		return ThumbHost + strings.TrimPrefix(u, strings.TrimRight(r.ThumbProxyBase, "/"))
	}
	return u
}

// FallbackResolver adapts Fallback to the image controller's resolver shape.
func (r Rewriter) FallbackResolver() func(string) string {
	return r.Fallback
}

func replaceHost(u, host, base string) string {
	if base == "" || !strings.HasPrefix(u, host) {
		return u
	}
	rest := strings.TrimPrefix(u, host)
	if rest != "" && !strings.HasPrefix(rest, "/") {
		// Prefix matched a different host such as https://wallhaven.cc.evil
		return u
	}
	return strings.TrimRight(base, "/") + rest
}
