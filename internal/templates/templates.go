// Package templates holds the server-rendered pages.
package templates

import (
	"embed"
	"html/template"
)

//go:embed html/*.html
var files embed.FS

// LoginPage is the template name of the login form.
const LoginPage = "login.html"

// LoginPageProps contains properties for the login page
type LoginPageProps struct {
	CSRFToken string
	ReturnURL string
	Username  string
	Error     string
}

// Load parses every embedded page.
func Load() (*template.Template, error) {
	return template.ParseFS(files, "html/*.html")
}

// Must is Load for use at startup.
func Must() *template.Template {
	return template.Must(Load())
}
