package normalize

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// SummaryView is the display-ready form of the backend's synthesis text.
type SummaryView struct {
	Available bool
	Heading   string
	BodyHTML  string
}

const summaryHeading = "Summary"

var (
	h3Line   = regexp.MustCompile(`(?m)^### (.*)$`)
	h4Line   = regexp.MustCompile(`(?m)^#### (.*)$`)
	boldLead = regexp.MustCompile(`(?m)^\*\*([^*]+)\*\*`)
	dashLine = regexp.MustCompile(`(?m)^- (.*)$`)

	summaryPolicyOnce sync.Once
	summaryPolicy     *bluemonday.Policy
)

// summaryHTMLPolicy allows exactly the tags the markup translation emits.
func summaryHTMLPolicy() *bluemonday.Policy {
	summaryPolicyOnce.Do(func() {
		policy := bluemonday.NewPolicy()
		policy.AllowElements("h3", "h4", "strong", "li", "br")
		summaryPolicy = policy
	})
	return summaryPolicy
}

// Summary translates synthesis text into a SummaryView. The text is
// HTML-escaped before any structural substitution runs, so literal angle
// brackets in backend content can never be reinterpreted as markup. The
// substitutions are fixed and ordered: level-3 headings, level-4 headings,
// bold line prefixes, bullet-dash lines, then line breaks.
func Summary(synthesis string) SummaryView {
	if strings.TrimSpace(synthesis) == "" {
		return SummaryView{}
	}

	body := html.EscapeString(synthesis)
	body = h3Line.ReplaceAllString(body, "<h3>$1</h3>")
	body = h4Line.ReplaceAllString(body, "<h4>$1</h4>")
	body = boldLead.ReplaceAllString(body, "<strong>$1</strong>")
	body = dashLine.ReplaceAllString(body, "<li>$1</li>")
	body = strings.ReplaceAll(body, "\n", "<br>")
	body = summaryHTMLPolicy().Sanitize(body)

	return SummaryView{
		Available: true,
		Heading:   summaryHeading,
		BodyHTML:  body,
	}
}
