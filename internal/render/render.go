// Package render turns a session's conversation into a standalone HTML page.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/KaramelBytes/sheetwise-cli/internal/session"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// Markdown converts model output to HTML. Raw HTML in the input is dropped.
func Markdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}

type pageTurn struct {
	Question string
	Answer   template.HTML
	Dataset  string
	AskedAt  string
}

type pageData struct {
	ID     string
	Source string
	Active string
	Sheets []session.SheetInfo
	Turns  []pageTurn
}

var page = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{if .Source}}{{.Source}}{{else}}Conversation{{end}} - sheetwise</title>
<style>
body{font-family:system-ui,sans-serif;max-width:52rem;margin:2rem auto;padding:0 1rem;color:#222}
table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.2rem .5rem}
.q{font-weight:600;margin-top:1.5rem}.meta{color:#777;font-size:.85rem}
.a{background:#f6f8fa;padding:.5rem 1rem;border-radius:4px}
</style>
</head>
<body>
<h1>{{if .Source}}{{.Source}}{{else}}No file uploaded{{end}}</h1>
<p class="meta">session {{.ID}}{{if .Active}} &middot; active sheet <strong>{{.Active}}</strong>{{end}}</p>
{{if .Sheets}}<table>
<tr><th>Sheet</th><th>Rows</th><th>Columns</th></tr>
{{range .Sheets}}<tr><td>{{.Name}}</td><td>{{.Rows}}</td><td>{{.Columns}}</td></tr>
{{end}}</table>{{end}}
{{if .Turns}}{{range .Turns}}<div class="turn">
<p class="q">{{.Question}}</p>
<p class="meta">{{.Dataset}} &middot; {{.AskedAt}}</p>
<div class="a">{{.Answer}}</div>
</div>
{{end}}{{else}}<p class="meta">No questions asked yet.</p>{{end}}
</body>
</html>
`))

// Transcript renders the session snapshot as an HTML document.
func Transcript(snap session.Snapshot) ([]byte, error) {
	data := pageData{ID: snap.ID, Source: snap.Source, Active: snap.Active, Sheets: snap.Sheets}
	for _, t := range snap.History {
		answer, err := Markdown(t.Answer)
		if err != nil {
			return nil, err
		}
		data.Turns = append(data.Turns, pageTurn{
			Question: t.Question,
			Answer:   answer,
			Dataset:  t.Dataset,
			AskedAt:  t.AskedAt.Format("2006-01-02 15:04:05"),
		})
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	return buf.Bytes(), nil
}
