package notifications

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	templateNameContactConfirmation = "contact_confirmation"
	templateNameCareerApplication   = "career_application"

	subjectContactConfirmation = "Thank You for Contacting %s"
	subjectCareerApplication   = "Career Application Received - %s"

	emailLayoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #1a365d; color: white; padding: 20px; text-align: center; }
    .content { background: #f7fafc; padding: 20px; }
    .footer { background: #2d3748; color: white; padding: 15px; text-align: center; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>{{.Company}}</h1></div>
    <div class="content">{{template "content" .}}</div>
    <div class="footer"><p>{{.Company}} &copy; {{.Year}}</p></div>
  </div>
</body>
</html>{{end}}`

	contactConfirmationTemplate = `{{define "content"}}
      <h2>Thank You for Your Inquiry, {{.Name}}!</h2>
      <p>We have received your message and will get back to you within 24 hours.</p>
      {{if .Subject}}<p><strong>Subject:</strong> {{.Subject}}</p>{{end}}
      <p><strong>Your Message:</strong></p>
      <p>{{.Message}}</p>
{{end}}`

	careerApplicationTemplate = `{{define "content"}}
      <h2>Application Received, {{.Name}}!</h2>
      <p>Thank you for your interest in joining the {{.Company}} team.</p>
      <p><strong>Position Applied:</strong> {{.Position}}</p>
{{end}}`
)

type emailView struct {
	Company  string
	Year     int
	Name     string
	Subject  string
	Message  string
	Position string
}

var emailTemplates = map[string]*template.Template{
	templateNameContactConfirmation: mustParseEmail(templateNameContactConfirmation, contactConfirmationTemplate),
	templateNameCareerApplication:   mustParseEmail(templateNameCareerApplication, careerApplicationTemplate),
}

func mustParseEmail(name string, content string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(emailLayoutTemplate)).Parse(content))
}

func renderEmail(name string, view emailView) (string, error) {
	emailTemplate, ok := emailTemplates[name]
	if !ok {
		return "", fmt.Errorf("notifications: unknown template %s", name)
	}
	var buffer bytes.Buffer
	if err := emailTemplate.ExecuteTemplate(&buffer, "layout", view); err != nil {
		return "", fmt.Errorf("notifications: render %s: %w", name, err)
	}
	return buffer.String(), nil
}
