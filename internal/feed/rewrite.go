package feed

import (
	"fmt"
	"strings"
)

// RewriteEnclosures replaces each episode's enclosure URL in the raw RSS
// document with a proxy URL of the form
// {baseURL}/episodes/{slug}/{episodeID}.mp3. The rewrite is plain string
// substitution over the original bytes, so every element, namespace, and
// attribute the source feed carries survives untouched.
func RewriteEnclosures(raw []byte, episodes []Episode, slug, baseURL string) []byte {
	document := string(raw)
	base := strings.TrimRight(baseURL, "/")
	for _, episode := range episodes {
		if episode.EnclosureURL == "" {
			continue
		}
		proxied := fmt.Sprintf("%s/episodes/%s/%s.mp3", base, slug, episode.ID)
		document = strings.ReplaceAll(document, episode.EnclosureURL, proxied)
		// Feeds that XML-escape ampersands in attribute values need the
		// escaped form replaced too.
		if escaped := strings.ReplaceAll(episode.EnclosureURL, "&", "&amp;"); escaped != episode.EnclosureURL {
			document = strings.ReplaceAll(document, escaped, proxied)
		}
	}
	return []byte(document)
}
