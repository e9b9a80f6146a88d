package episode

// Decision is the outcome of the just-in-time serve decision for an audio
// request.
type Decision int

const (
	// DecisionServeCached serves the processed artifact from disk.
	DecisionServeCached Decision = iota
	// DecisionServeOriginal redirects the client to the upstream enclosure.
	DecisionServeOriginal
	// DecisionUnavailable tells the client processing is in flight; retry.
	DecisionUnavailable
	// DecisionProcess runs the full pipeline on this request.
	DecisionProcess
	// DecisionBusy rejects with backpressure: the slot is held by another job.
	DecisionBusy
	// DecisionNotFound means the episode cannot be served at all.
	DecisionNotFound
)

func (d Decision) String() string {
	switch d {
	case DecisionServeCached:
		return "serve_cached"
	case DecisionServeOriginal:
		return "serve_original"
	case DecisionUnavailable:
		return "unavailable"
	case DecisionProcess:
		return "process"
	case DecisionBusy:
		return "busy"
	case DecisionNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Decide maps persisted episode state plus the current slot state to a serve
// decision. rec is nil when no record exists for the episode.
//
// A processed record whose artifact vanished falls through to reprocessing.
// A failed record is sticky: the original is served and no retry happens on
// the default path (reprocessing requires an explicit trigger), avoiding
// retry storms against a failing upstream. A busy slot never queues; the
// caller reports busy and the client retries.
func Decide(rec *Record, artifactExists, slotBusy bool) Decision {
	if rec != nil {
		switch rec.Status {
		case StatusProcessed:
			if artifactExists {
				return DecisionServeCached
			}
			// Artifact missing: treat as never processed.
		case StatusFailed:
			if rec.OriginalURL != "" {
				return DecisionServeOriginal
			}
			return DecisionNotFound
		case StatusProcessing:
			return DecisionUnavailable
		}
	}
	if slotBusy {
		return DecisionBusy
	}
	return DecisionProcess
}
