// Package analysis measures episode loudness over fixed windows and extracts
// volume anomalies: regions mastered noticeably louder or quieter than the
// episode baseline, a strong tell for dynamically inserted ads.
package analysis
