// Package server exposes the proxy's HTTP surface: rewritten RSS feeds, the
// just-in-time episode endpoint that triggers processing on first request,
// and a small JSON API for inspection and control.
package server
