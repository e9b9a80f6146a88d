// Package pipeline runs the full episode processing flow: download the
// source audio, transcribe it, detect ad segments, cut them out, and record
// the outcome. One episode processes at a time; the scheduler in
// internal/lease enforces that, and the pipeline always releases its slot
// when it finishes.
package pipeline
