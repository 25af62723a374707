package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = map[Template]*template.Template{
	TemplateEmailVerification: mustParse("templates/email_verification.html"),
	TemplatePasswordReset:     mustParse("templates/password_reset.html"),
	TemplateInvitation:        mustParse("templates/invitation.html"),
}

func mustParse(name string) *template.Template {
	return template.Must(template.New("").Option("missingkey=zero").ParseFS(templateFS, name))
}

// Rendered is a message ready for a transport.
type Rendered struct {
	Subject string
	HTML    string
}

// Render executes the message template. Unknown templates are an error.
func Render(msg Message) (Rendered, error) {
	tmpl, ok := templates[msg.Template]
	if !ok {
		return Rendered{}, fmt.Errorf("mail: unknown template %q", msg.Template)
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", msg.Data); err != nil {
		return Rendered{}, fmt.Errorf("mail: render subject: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", msg.Data); err != nil {
		return Rendered{}, fmt.Errorf("mail: render body: %w", err)
	}

	return Rendered{
		Subject: html.UnescapeString(strings.TrimSpace(subject.String())),
		HTML:    body.String(),
	}, nil
}
