package email

import (
	"fmt"
	"strings"
)

// Report statuses select the accent colour of the heading.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Field is a labelled line in a report.
type Field struct {
	Label string
	Value string
}

// Link is a named URL in the report footer.
type Link struct {
	Text string
	URL  string
}

// Report is the content of an outcome email.
type Report struct {
	Subject string
	Heading string
	Status  string
	Fields  []Field
	Errors  []string
	Links   []Link
	Details string // Preformatted, usually the JSON result
}

func formatReport(r Report) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background: #fff; }\n")
	b.WriteString(".header { border-bottom: 2px solid #c0392b; padding-bottom: 10px; margin-bottom: 20px; }\n")
	b.WriteString(".header.ok { border-bottom-color: #27ae60; }\n")
	b.WriteString(".header.warning { border-bottom-color: #e67e22; }\n")
	b.WriteString(".fields { list-style: none; padding: 0; }\n")
	b.WriteString(".fields li { margin: 6px 0; white-space: pre-wrap; }\n")
	b.WriteString(".label { color: #7f8c8d; font-weight: 600; }\n")
	b.WriteString(".errors { background: #fdecea; padding: 10px 20px; border-radius: 8px; }\n")
	b.WriteString("pre { background: #f8f9fa; padding: 15px; border-radius: 8px; overflow-x: auto; font-size: 0.85em; }\n")
	b.WriteString(".footer { margin-top: 20px; padding-top: 10px; border-top: 2px solid #ecf0f1; color: #7f8c8d; font-size: 0.9em; }\n")
	b.WriteString(".footer a { color: #7f8c8d; text-decoration: underline; margin: 0 8px; }\n")
	b.WriteString(".footer a:first-child { margin-left: 0; }\n")
	b.WriteString("@media (prefers-color-scheme: dark) {\n")
	b.WriteString("body { background: #1a1a1a; color: #e0e0e0; }\n")
	b.WriteString(".label { color: #a0a0a0; }\n")
	b.WriteString(".errors { background: #3a2222; }\n")
	b.WriteString("pre { background: #2a2a2a; }\n")
	b.WriteString(".footer { border-top-color: #444; color: #a0a0a0; }\n")
	b.WriteString(".footer a { color: #a0a0a0; }\n")
	b.WriteString("}\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	status := r.Status
	if status != StatusOK && status != StatusWarning {
		status = StatusError
	}
	heading := r.Heading
	if heading == "" {
		heading = r.Subject
	}
	b.WriteString(fmt.Sprintf("<div class=\"header %s\">\n", status))
	b.WriteString(fmt.Sprintf("<h2>%s</h2>\n", escapeHTML(heading)))
	b.WriteString("</div>\n")

	if len(r.Fields) > 0 {
		b.WriteString("<ul class=\"fields\">\n")
		for _, f := range r.Fields {
			b.WriteString(fmt.Sprintf("<li><span class=\"label\">%s:</span> %s</li>\n", escapeHTML(f.Label), escapeHTML(f.Value)))
		}
		b.WriteString("</ul>\n")
	}

	if len(r.Errors) > 0 {
		b.WriteString("<div class=\"errors\">\n<ul>\n")
		for _, e := range r.Errors {
			b.WriteString(fmt.Sprintf("<li>%s</li>\n", escapeHTML(e)))
		}
		b.WriteString("</ul>\n</div>\n")
	}

	if r.Details != "" {
		b.WriteString(fmt.Sprintf("<pre>%s</pre>\n", escapeHTML(r.Details)))
	}

	var links []Link
	for _, l := range r.Links {
		if isSafeURL(l.URL) {
			links = append(links, l)
		}
	}
	if len(links) > 0 {
		b.WriteString("<div class=\"footer\">\n")
		for _, l := range links {
			b.WriteString(fmt.Sprintf("<a href=\"%s\">%s</a>\n", escapeHTML(l.URL), escapeHTML(l.Text)))
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</body>\n</html>")

	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}

// isSafeURL allows only absolute http(s) links in reports.
func isSafeURL(urlStr string) bool {
	urlStr = strings.TrimSpace(strings.ToLower(urlStr))
	return strings.HasPrefix(urlStr, "https://") || strings.HasPrefix(urlStr, "http://")
}
