package report

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(reportHTML))
}

// TemplateData holds data for report template rendering
type TemplateData struct {
	CourseID      int64
	CourseTitle   string
	GeneratedAt   time.Time
	Tags          []TemplateTag
	QuestionTotal int
	UntaggedCount int
}

// TemplateTag holds tag usage data for the template
type TemplateTag struct {
	Name          string
	Color         string
	Description   string
	QuestionCount int
}

// RenderReportHTML renders the course report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.CourseTitle}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
    th { background: #f5f5f5; }
    .swatch { display: inline-block; width: 0.8em; height: 0.8em; margin-right: 0.4em; border: 1px solid #999; }
    .count { text-align: right; }
  </style>
</head>
<body>
  <h1>{{.CourseTitle}}</h1>
  <div class="meta">Course {{.CourseID}} | {{formatDate .GeneratedAt "Jan 2, 2006 15:04"}} | {{.QuestionTotal}} questions, {{len .Tags}} tags</div>
  {{if .Tags}}
  <table>
    <tr><th>Tag</th><th>Description</th><th class="count">Questions</th></tr>
    {{range .Tags}}
    <tr>
      <td><span class="swatch {{lower .Color}}"></span>{{.Name}}</td>
      <td>{{.Description}}</td>
      <td class="count">{{.QuestionCount}}</td>
    </tr>
    {{end}}
  </table>
  {{else}}
  <p>No tags defined for this course.</p>
  {{end}}
  {{if .UntaggedCount}}<p>{{.UntaggedCount}} questions carry no tags.</p>{{end}}
</body>
</html>`
