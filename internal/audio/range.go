package audio

import "sort"

// Range is a half-open [Start, End) span of seconds to remove.
type Range struct {
	Start float64
	End   float64
}

// Duration returns the range length in seconds.
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// NormalizeRanges sorts ranges by start time, drops empty or inverted ones,
// and merges overlapping or touching neighbors. The result is the minimal
// ordered set covering the same audio.
func NormalizeRanges(ranges []Range) []Range {
	cleaned := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > r.Start {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Start < cleaned[j].Start })

	merged := cleaned[:1]
	for _, r := range cleaned[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// KeepRanges returns the complement of cut ranges over [0, total): the spans
// of audio that survive the edit. Cut ranges must already be normalized.
func KeepRanges(cuts []Range, total float64) []Range {
	var keeps []Range
	cursor := 0.0
	for _, cut := range cuts {
		if cut.Start >= total {
			break
		}
		if cut.Start > cursor {
			keeps = append(keeps, Range{Start: cursor, End: cut.Start})
		}
		if cut.End > cursor {
			cursor = cut.End
		}
	}
	if cursor < total {
		keeps = append(keeps, Range{Start: cursor, End: total})
	}
	return keeps
}

// TotalDuration sums the ranges' lengths.
func TotalDuration(ranges []Range) float64 {
	total := 0.0
	for _, r := range ranges {
		total += r.Duration()
	}
	return total
}
