package api

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates for gin's HTML renderer
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

// landingPage is the data rendered by index.html
type landingPage struct {
	Title        string
	Heading      string
	CallToAction string
}

// LandingPage renders the static welcome page
func LandingPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", landingPage{
		Title:        "Companion SaaS",
		Heading:      "Welcome to my Saas App",
		CallToAction: "Let's get started",
	})
}
