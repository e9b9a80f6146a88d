// Package feed fetches podcast RSS, extracts episode metadata, and rewrites
// enclosure URLs so clients pull audio through the proxy.
package feed
