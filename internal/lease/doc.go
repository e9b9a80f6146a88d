// Package lease provides the single-slot processing scheduler. At most one
// episode job may hold the slot process-wide; ownership is expressed as a
// ticket so a stale job that outlives its lease cannot release a newer
// holder's slot.
package lease
