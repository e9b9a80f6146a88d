// Package ffprobe wraps ffprobe invocations for inspecting downloaded
// episode audio.
package ffprobe
