package render

import (
	"bytes"
	"fmt"
	"html/template"
)

const accentColor = "#0068ff"

type Document struct {
	ID                  string
	CategoryName        string
	Source              string
	Body                string
	Answers             []string
	Explanations        []string
	IncludeExplanations bool
}

type answerView struct {
	Label string
	Text  template.HTML
}

type explanationView struct {
	Number int
	Text   template.HTML
}

type documentView struct {
	ID           string
	CategoryName string
	Source       string
	Accent       template.CSS
	Body         template.HTML
	Answers      []answerView
	Explanations []explanationView
}

// Question bodies, answers and explanations come from the content source as
// HTML fragments and are embedded unescaped.
var pageTemplate = template.Must(template.New("question").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>GMAT Question {{.ID}}</title>
<script>
window.MathJax = {
  tex: {inlineMath: [['\\(', '\\)'], ['$', '$']], displayMath: [['\\[', '\\]'], ['$$', '$$']]},
  options: {processHtmlClass: 'tex2jax_process', processEscapes: true}
};
</script>
<script id="MathJax-script" async src="https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-mml-chtml.js"></script>
<style>
body { font-family: Georgia, 'Times New Roman', Times, serif; max-width: 1000px; margin: 0 auto; padding: 30px; line-height: 1.6; background: #fff; color: #333; }
.question-header { background: {{.Accent}}; color: #fff; padding: 25px; border-radius: 8px; margin-bottom: 30px; }
.question-id { font-size: 1.1em; font-weight: 600; opacity: 0.9; margin-bottom: 5px; }
.question-type { font-size: 1.8em; font-weight: 700; margin: 0; }
.question-content { padding: 30px; margin-bottom: 25px; }
.question-text { font-size: 1.2em; line-height: 1.7; margin-bottom: 25px; color: #2c3e50; }
.answers-section, .explanation, .source-link { background: #f9f9f9; padding: 20px 25px; margin-bottom: 25px; }
.answers-section h3, .explanations-section h3, .explanation h4 { color: {{.Accent}}; margin-top: 0; }
.answer-option { padding: 12px 15px; margin: 8px 0; background: #fff; font-size: 1.1em; }
.source-link { font-size: 0.9em; }
.source-link a { color: {{.Accent}}; text-decoration: none; }
table { border-collapse: collapse; width: 100%; margin: 15px 0; }
th, td { padding: 12px; text-align: left; border-bottom: 1px solid #eee; }
th { background: #f9f9f9; }
</style>
</head>
<body>
<div class="question-header">
  <div class="question-id">Question ID: {{.ID}}</div>
  <h1 class="question-type">{{.CategoryName}}</h1>
</div>
<div class="question-content">
  <div class="question-text tex2jax_process">{{.Body}}</div>
{{- if .Answers}}
  <div class="answers-section">
    <h3>Answer Choices:</h3>
{{- range .Answers}}
    <div class="answer-option"><strong>{{.Label}})</strong> {{.Text}}</div>
{{- end}}
  </div>
{{- end}}
{{- if .Explanations}}
  <div class="explanations-section">
    <h3>Explanations:</h3>
{{- range .Explanations}}
    <div class="explanation"><h4>Explanation {{.Number}}:</h4>{{.Text}}</div>
{{- end}}
  </div>
{{- end}}
</div>
<div class="source-link"><strong>Source:</strong> <a href="{{.Source}}" target="_blank">{{.Source}}</a></div>
</body>
</html>
`))

func BuildHTML(doc Document) (string, error) {
	view := documentView{
		ID:           doc.ID,
		CategoryName: doc.CategoryName,
		Source:       doc.Source,
		Accent:       template.CSS(accentColor),
		Body:         template.HTML(doc.Body),
	}
	for i, a := range doc.Answers {
		view.Answers = append(view.Answers, answerView{Label: answerLabel(i), Text: template.HTML(a)})
	}
	if doc.IncludeExplanations {
		for i, e := range doc.Explanations {
			view.Explanations = append(view.Explanations, explanationView{Number: i + 1, Text: template.HTML(e)})
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("execute question template: %w", err)
	}
	return buf.String(), nil
}

func answerLabel(i int) string {
	if i >= 0 && i < 5 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("%d", i+1)
}
