// Package logging builds the slog loggers used across podscrub and defines
// the shared attribute vocabulary (component, slug, episode) so log lines
// stay greppable.
package logging
