// Package episode models the per-episode processing lifecycle
// (none → processing → processed | failed), the serve decision made on every
// audio request, and the SQLite store that persists episode records.
package episode
