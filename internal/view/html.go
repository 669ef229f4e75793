package view

import (
	"html/template"
	"strings"
)

// fragmentTmpl renders the summary block and the recommendation table as one
// unit. The whole fragment replaces the previous one on every update, so no
// event bindings or rows accumulate across renders.
var fragmentTmpl = template.Must(template.New("fragment").
	Funcs(template.FuncMap{
		"deref": func(b *bool) bool { return b != nil && *b },
	}).
	Parse(`<section id="result">
{{- if .Summary.Available}}
<div class="summary"><h2>{{.Summary.Heading}}</h2>{{.SummaryBody}}</div>
{{- end}}
{{- if .Validated}}
<p class="badge {{if deref .Validated}}ok{{else}}warn{{end}}">validated: {{deref .Validated}}</p>
{{- end}}
{{- if .Rows}}
<table class="recs" data-source="{{.Source}}">
<thead><tr><th>#</th><th>Collection</th><th>Why</th><th></th></tr></thead>
<tbody>
{{- range .Rows}}
<tr>
<td>{{.Rank}}</td>
<td><a href="{{.URL}}" target="_blank" rel="noopener">{{.Label}}</a></td>
<td>{{.Why}}</td>
<td><button type="button" class="copy" data-copy="{{.CopyValue}}">{{.CopyLabel}}</button></td>
</tr>
{{- end}}
</tbody>
</table>
{{- end}}
</section>`))

type fragmentData struct {
	Model
	SummaryBody template.HTML
}

// RenderHTML produces the console fragment for one model. The summary body
// is already escaped and sanitized by the normalizer, so it is the only
// value injected as trusted HTML.
func RenderHTML(m Model) (string, error) {
	var sb strings.Builder
	data := fragmentData{Model: m, SummaryBody: template.HTML(m.Summary.BodyHTML)}
	if err := fragmentTmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
