// Package transcribe downloads episode audio and produces timestamped
// transcripts via a local whisper installation.
package transcribe
