// Package storage manages the on-disk layout for podcast data: per-podcast
// directories holding the cached RSS document, processed episode audio, and
// the transcript and ad-detection artifacts produced while processing.
package storage
