// Package status maintains the cross-process record of the currently running
// processing job. The record is a JSON file shared by all worker processes
// and guarded by an advisory file lock, making it the authoritative view the
// scheduler reconciles against.
package status
