package view

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/cmr-tools/cmrconsole/internal/normalize"
)

func rankedSet(collections ...string) normalize.RecommendationSet {
	items := make([]normalize.Recommendation, 0, len(collections))
	for i, c := range collections {
		items = append(items, normalize.Recommendation{Collection: c, Rank: i + 1, Why: "best match"})
	}
	return normalize.RecommendationSet{Source: normalize.SourceRanked, Items: items}
}

func TestNewModelResolvesLinks(t *testing.T) {
	t.Parallel()
	m := NewModel(rankedSet("C123-PROV", "GPM IMERG"), normalize.SummaryView{}, nil)
	if len(m.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.Rows))
	}
	if m.Rows[0].URL != "https://search.earthdata.nasa.gov/search/granules?p=C123-PROV" {
		t.Fatalf("rows[0].URL = %q, want granule search", m.Rows[0].URL)
	}
	if m.Rows[1].URL != "https://search.earthdata.nasa.gov/search?q=GPM+IMERG" {
		t.Fatalf("rows[1].URL = %q, want keyword search", m.Rows[1].URL)
	}
	if m.Rows[0].Label != "C123-PROV" {
		t.Fatalf("rows[0].Label = %q", m.Rows[0].Label)
	}
}

func TestRenderHTMLSingleRowScenario(t *testing.T) {
	t.Parallel()
	m := NewModel(rankedSet("C123-PROV"), normalize.SummaryView{}, nil)
	html, err := RenderHTML(m)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if got := strings.Count(html, "<tr>"); got != 2 { // header + one row
		t.Fatalf("row count = %d, want header plus exactly one row:\n%s", got, html)
	}
	if !strings.Contains(html, "https://search.earthdata.nasa.gov/search/granules?p=C123-PROV") {
		t.Fatalf("html missing granule link:\n%s", html)
	}
	if !strings.Contains(html, ">C123-PROV</a>") {
		t.Fatalf("html missing label:\n%s", html)
	}
}

func TestRenderHTMLReplacesWholeFragment(t *testing.T) {
	t.Parallel()
	first, err := RenderHTML(NewModel(rankedSet("C1-PROV", "C2-PROV", "C3-PROV"), normalize.SummaryView{}, nil))
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	second, err := RenderHTML(NewModel(rankedSet("C9-PROV"), normalize.SummaryView{}, nil))
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	// Each render is a complete standalone fragment; nothing accumulates.
	if strings.Count(first, "<tbody>") != 1 || strings.Count(second, "<tbody>") != 1 {
		t.Fatal("fragment must contain exactly one table body")
	}
	if strings.Contains(second, "C1-PROV") {
		t.Fatalf("second render leaked rows from the first:\n%s", second)
	}
}

func TestRenderHTMLSummaryAndValidated(t *testing.T) {
	t.Parallel()
	v := true
	sum := normalize.Summary("### Why\n- point")
	html, err := RenderHTML(NewModel(normalize.RecommendationSet{Source: normalize.SourceNone}, sum, &v))
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.Contains(html, "<h3>Why</h3>") {
		t.Fatalf("html missing summary body:\n%s", html)
	}
	if !strings.Contains(html, "validated: true") {
		t.Fatalf("html missing validated badge:\n%s", html)
	}
	if strings.Contains(html, "<table") {
		t.Fatalf("empty set must not render a table:\n%s", html)
	}
}

func TestTerminalRendersRowsAndSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.RenderUpdate(rankedSet("C123-PROV"), normalize.Summary("### Why\nbecause"), nil)
	out := buf.String()
	for _, want := range []string{
		"Recommendations (ranked)",
		"C123-PROV",
		"https://search.earthdata.nasa.gov/search/granules?p=C123-PROV",
		"Why",
		"because",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("terminal output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<h3>") {
		t.Fatalf("terminal output leaked markup:\n%s", out)
	}
}

func TestTerminalNotice(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	term.RenderNotice("upstream timeout")
	if !strings.Contains(buf.String(), "upstream timeout") {
		t.Fatalf("notice missing: %q", buf.String())
	}
	buf.Reset()
	term.RenderNotice("   ")
	if buf.Len() != 0 {
		t.Fatalf("blank notice rendered: %q", buf.String())
	}
}
