// Package addetect identifies advertisement segments in episode transcripts
// using a chat-completions LLM endpoint. Detection is best effort: a missing
// API key or a failed request degrades to zero ads instead of failing the
// processing pipeline.
package addetect
