package feed

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"
)

// Episode is one item extracted from a podcast RSS feed.
type Episode struct {
	ID           string
	GUID         string
	Title        string
	EnclosureURL string
	Duration     string
	PubDate      string
}

// Feed is the parsed subset of an RSS document that the proxy needs.
type Feed struct {
	Title       string
	Description string
	Episodes    []Episode
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title       string    `xml:"title"`
		Description string    `xml:"description"`
		Items       []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	PubDate   string `xml:"pubDate"`
	Duration  string `xml:"duration"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Type   string `xml:"type,attr"`
		Length string `xml:"length,attr"`
	} `xml:"enclosure"`
}

// Parse decodes RSS XML into a Feed. Items without an enclosure URL are
// skipped; they have no audio to proxy.
func Parse(raw []byte) (*Feed, error) {
	var doc rssDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	feed := &Feed{
		Title:       strings.TrimSpace(doc.Channel.Title),
		Description: strings.TrimSpace(doc.Channel.Description),
	}
	for _, item := range doc.Channel.Items {
		enclosure := strings.TrimSpace(item.Enclosure.URL)
		if enclosure == "" {
			continue
		}
		guid := strings.TrimSpace(item.GUID)
		feed.Episodes = append(feed.Episodes, Episode{
			ID:           EpisodeID(guid, enclosure),
			GUID:         guid,
			Title:        strings.TrimSpace(item.Title),
			EnclosureURL: enclosure,
			Duration:     strings.TrimSpace(item.Duration),
			PubDate:      strings.TrimSpace(item.PubDate),
		})
	}
	return feed, nil
}

// EpisodeByID returns the episode with the given ID, if present.
func (f *Feed) EpisodeByID(id string) (Episode, bool) {
	for _, episode := range f.Episodes {
		if episode.ID == id {
			return episode, true
		}
	}
	return Episode{}, false
}

// EpisodeID derives a stable, URL-safe identifier for an item. The GUID is
// preferred; the enclosure URL is the fallback when feeds omit GUIDs. Both
// hash to the same short hex form so the ID survives enclosure CDN swaps
// only when the GUID is stable.
func EpisodeID(guid, enclosureURL string) string {
	source := guid
	if source == "" {
		source = enclosureURL
	}
	sum := sha1.Sum([]byte(source))
	return hex.EncodeToString(sum[:8])
}
