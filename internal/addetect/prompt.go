package addetect

import (
	"fmt"
	"strings"

	"podscrub/internal/transcribe"
)

const detectionInstructions = `INSTRUCTIONS:
Analyze this podcast transcript and identify ALL advertisement segments. Look for:
- Product endorsements, sponsored content, or promotional messages
- Promo codes, special offers, or calls to action
- Clear transitions to/from ads (e.g., "This episode is brought to you by...")
- Host-read advertisements
- Pre-roll, mid-roll, or post-roll ads
- Long intro sections filled with multiple ads before actual content begins
- Mentions of other podcasts/shows from the network (cross-promotion)
- Sponsor messages about credit cards, apps, products, or services
- ANY podcast promos (e.g., "Listen to X on iHeart Radio app")

CRITICAL MERGING RULES:
1. If there are multiple ads with NO ACTUAL SHOW CONTENT between them, treat them as ONE CONTINUOUS SEGMENT
2. Brief transitions, silence, or gaps up to 10-15 seconds between ads do NOT count as content - they're part of the same ad block
3. After detecting an ad, ALWAYS look ahead to check if another ad/promo follows within 15 seconds
4. Only split ads if there's REAL SHOW CONTENT (actual discussion, interview, topic content) for at least 30 seconds between them
5. When in doubt, merge the segments - better to remove too much than leave ads in

Return ONLY a JSON array of ad segments with start/end times in seconds. Be aggressive in detecting ads.

Format:
[{"start": 0.0, "end": 240.0, "reason": "Continuous ad block: multiple sponsors"}, ...]

If no ads are found, return an empty array: []`

// BuildPrompt renders the detection prompt for one episode transcript.
func BuildPrompt(segments []transcribe.Segment, podcastName, episodeTitle string) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Podcast: %s\n", orUnknown(podcastName))
	fmt.Fprintf(&builder, "Episode: %s\n\n", orUnknown(episodeTitle))
	builder.WriteString("Transcript:\n")
	for _, segment := range segments {
		fmt.Fprintf(&builder, "[%.1fs - %.1fs] %s\n", segment.Start, segment.End, segment.Text)
	}
	builder.WriteString("\n")
	builder.WriteString(detectionInstructions)
	return builder.String()
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Unknown"
	}
	return value
}
