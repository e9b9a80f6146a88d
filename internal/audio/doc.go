// Package audio edits episode files with ffmpeg, cutting detected ad ranges
// out of the audio stream.
package audio
