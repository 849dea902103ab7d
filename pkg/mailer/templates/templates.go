package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

var welcomeHTML = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family:Arial,Helvetica,sans-serif;color:#222">
    <h2>Welcome to PlayTube, {{.FullName}}!</h2>
    <p>Your account <b>@{{.Username}}</b> is ready. Sign in and start watching.</p>
    <p style="color:#888;font-size:12px">If you did not create this account, please ignore this email.</p>
  </body>
</html>`))

var welcomeText = template.Must(template.New("welcome_text").Parse(
	"Welcome to PlayTube, {{.FullName}}!\n\nYour account @{{.Username}} is ready.\n"))

// Render renders the named template with data and returns subject, text and html bodies.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	switch name {
	case "welcome":
		var tb, hb bytes.Buffer
		if err = welcomeText.Execute(&tb, data); err != nil {
			return
		}
		if err = welcomeHTML.Execute(&hb, data); err != nil {
			return
		}
		return "Welcome to PlayTube", tb.String(), hb.String(), nil
	default:
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}
}
