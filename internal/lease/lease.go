package lease

import "time"

// JobKey identifies a processing job by podcast slug and episode ID.
type JobKey struct {
	Slug      string
	EpisodeID string
}

// IsZero reports whether the key is empty.
func (k JobKey) IsZero() bool {
	return k.Slug == "" && k.EpisodeID == ""
}

func (k JobKey) String() string {
	return k.Slug + ":" + k.EpisodeID
}

// Ticket is the capability returned by a successful acquire. Release requires
// presenting the ticket; a ticket whose lease has since been force-cleared is
// silently ignored.
type Ticket struct {
	id  string
	key JobKey
}

// Key returns the job identity the ticket was issued for.
func (t Ticket) Key() JobKey {
	return t.key
}

// Valid reports whether the ticket was issued by a successful acquire.
func (t Ticket) Valid() bool {
	return t.id != ""
}

// Lease is a snapshot of the current slot holder.
type Lease struct {
	Holder     JobKey
	AcquiredAt time.Time
}

// Held reports whether the lease has a concrete holder.
func (l Lease) Held() bool {
	return !l.Holder.IsZero()
}

// Age returns how long the lease has been held as of now.
func (l Lease) Age(now time.Time) time.Duration {
	if !l.Held() || l.AcquiredAt.IsZero() {
		return 0
	}
	return now.Sub(l.AcquiredAt)
}
