package lookup

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	granuleSearchBase = "https://search.earthdata.nasa.gov/search/granules"
	keywordSearchBase = "https://search.earthdata.nasa.gov/search"
)

// conceptIDPattern matches a CMR collection concept ID: a "C" prefix, a
// numeric serial, and an uppercase alphanumeric provider code, e.g.
// "C1940473819-POCLOUD".
var conceptIDPattern = regexp.MustCompile(`^C\d+-[A-Z0-9_]+$`)

// Link is a resolved external reference for a single recommendation.
type Link struct {
	URL       string
	Label     string
	CopyLabel string
	CopyValue string
}

// IsConceptID reports whether identifier has the structured CMR collection
// concept-ID shape as opposed to a free-text collection name.
func IsConceptID(identifier string) bool {
	return conceptIDPattern.MatchString(strings.TrimSpace(identifier))
}

// Resolve maps a recommendation identifier to an Earthdata Search link.
// Concept IDs resolve to a direct granule search keyed by the ID; anything
// else resolves to a keyword search over the raw text. Pure string
// transform, no network.
func Resolve(identifier string) Link {
	id := strings.TrimSpace(identifier)
	if conceptIDPattern.MatchString(id) {
		return Link{
			URL:       granuleSearchBase + "?p=" + url.QueryEscape(id),
			Label:     id,
			CopyLabel: "Copy concept ID",
			CopyValue: id,
		}
	}
	return Link{
		URL:       keywordSearchBase + "?q=" + url.QueryEscape(id),
		Label:     id,
		CopyLabel: "Copy name",
		CopyValue: id,
	}
}
