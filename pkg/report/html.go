package report

import (
	"html"
	"strings"

	"gitlab.com/golang-commonmark/markdown"
)

const htmlStyle = `body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;max-width:960px;margin:2em auto;padding:0 1em;color:#222}
table{border-collapse:collapse;margin:1em 0}th,td{border:1px solid #ccc;padding:4px 8px;text-align:left}th{background:#f4f4f4}`

// RenderHTML converts rendered Markdown into a standalone HTML document.
func RenderHTML(md string) string {
	renderer := markdown.New(markdown.XHTMLOutput(true), markdown.Tables(true), markdown.HTML(false))
	body := renderer.RenderToString([]byte(md))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + html.EscapeString(Title) + "</title>\n")
	b.WriteString("<style>" + htmlStyle + "</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
