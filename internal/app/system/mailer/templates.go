// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"html/template"
)

// WelcomeEmailData contains the data for the email sent after registration.
type WelcomeEmailData struct {
	AppName string
	Email   string
}

// WelcomeEmail generates both plain text and HTML versions of a welcome email.
func WelcomeEmail(data WelcomeEmailData) (textBody, htmlBody string) {
	textBody = "Welcome to " + data.AppName + ", " + data.Email + "!\n\n" +
		"Your account has been created. Sign in with GET /connect using your\n" +
		"email and password to obtain an access token."

	var buf bytes.Buffer
	if err := welcomeHTMLTmpl.Execute(&buf, data); err == nil {
		htmlBody = buf.String()
	}
	return textBody, htmlBody
}

var welcomeHTMLTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333;">
  <h2>Welcome to {{.AppName}}</h2>
  <p>An account has been created for <strong>{{.Email}}</strong>.</p>
  <p>Sign in with your email and password to obtain an access token.</p>
</body>
</html>`))
