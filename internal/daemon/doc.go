// Package daemon wires the proxy together: the episode store, the
// single-slot scheduler, the processing pipeline, the HTTP server, and the
// background feed refresh and retention loops. A file lock enforces one
// daemon per data directory.
package daemon
