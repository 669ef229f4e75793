package view

import (
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/microcosm-cc/bluemonday"

	"github.com/cmr-tools/cmrconsole/internal/normalize"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	linkColor    = color.New(color.FgBlue, color.Underline)
	noticeColor  = color.New(color.FgYellow)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgRed)

	stripPolicyOnce sync.Once
	stripPolicy     *bluemonday.Policy
)

func plainText(bodyHTML string) string {
	stripPolicyOnce.Do(func() { stripPolicy = bluemonday.StrictPolicy() })
	text := strings.ReplaceAll(bodyHTML, "<br>", "\n")
	text = stripPolicy.Sanitize(text)
	return strings.TrimSpace(html.UnescapeString(text))
}

// Terminal renders session updates to a writer, repainting the whole block
// on every update. It satisfies the stream sink contract.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminal builds a terminal renderer writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// RenderUpdate prints the current recommendations and summary.
func (t *Terminal) RenderUpdate(recs normalize.RecommendationSet, sum normalize.SummaryView, validated *bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out)
	if validated != nil {
		if *validated {
			okColor.Fprintln(t.out, "validated: true")
		} else {
			warnColor.Fprintln(t.out, "validated: false")
		}
	}

	if sum.Available {
		headingColor.Fprintln(t.out, sum.Heading)
		fmt.Fprintln(t.out, plainText(sum.BodyHTML))
	}

	if recs.Empty() {
		fmt.Fprintln(t.out, "no recommendations yet")
		return
	}

	headingColor.Fprintf(t.out, "Recommendations (%s)\n", recs.Source)
	for _, row := range NewModel(recs, normalize.SummaryView{}, nil).Rows {
		fmt.Fprintf(t.out, "%2d. %s - %s\n", row.Rank, row.Label, row.Why)
		fmt.Fprintf(t.out, "    %s\n", linkColor.Sprint(row.URL))
	}
}

// RenderNotice prints a non-fatal inline message.
func (t *Terminal) RenderNotice(msg string) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	noticeColor.Fprintf(t.out, "note: %s\n", msg)
}

// SetStreaming reports lifecycle transitions.
func (t *Terminal) SetStreaming(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if active {
		fmt.Fprintln(t.out, "streaming… (ctrl-c to stop)")
	} else {
		fmt.Fprintln(t.out, "stream closed")
	}
}
