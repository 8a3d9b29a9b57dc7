// Package assets renders the placeholder page shown while the application starts.
// The HTML template is embedded via go:embed; the operator banner is markdown
// rendered with goldmark. Rendering happens once, so every request receives
// the same bytes.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultTitle is used when no page title is configured.
const DefaultTitle = "Starting up"

// DefaultMessage is the banner shown above the component list.
const DefaultMessage = "The application is **starting**. This page follows its progress and reloads once it is ready."

var loadingTemplate = template.Must(template.ParseFS(templateFS, "templates/loading.html"))

// PageConfig describes the placeholder page.
type PageConfig struct {
	Title string

	// Message is markdown.
	Message string

	// StreamPath is the progress stream endpoint the page subscribes to.
	StreamPath string
}

type pageData struct {
	Title      string
	Message    template.HTML
	StreamPath string
}

// RenderMarkdown converts markdown to HTML.
func RenderMarkdown(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// LoadingPage renders the placeholder page.
func LoadingPage(cfg PageConfig) ([]byte, error) {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Message == "" {
		cfg.Message = DefaultMessage
	}
	if cfg.StreamPath == "" {
		return nil, fmt.Errorf("stream path is required")
	}

	msg, err := RenderMarkdown(cfg.Message)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = loadingTemplate.Execute(&buf, pageData{
		Title:      cfg.Title,
		Message:    msg,
		StreamPath: cfg.StreamPath,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering loading page: %w", err)
	}
	return buf.Bytes(), nil
}
