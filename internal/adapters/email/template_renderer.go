package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"confreg/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

// templateRenderer loads subject/html/text triplets from the embedded
// templates directory. Template names map to files: <name>_subject.txt,
// <name>.html, <name>.txt.
type templateRenderer struct{}

func NewTemplateRenderer() domain.EmailTemplateRenderer {
	return &templateRenderer{}
}

func (r *templateRenderer) Render(name string, data any) (subject, htmlBody, textBody string, err error) {
	for _, part := range []struct {
		file string
		html bool
		out  *string
	}{
		{name + "_subject.txt", false, &subject},
		{name + ".html", true, &htmlBody},
		{name + ".txt", false, &textBody},
	} {
		*part.out, err = renderEmbedded(part.file, data, part.html)
		if err != nil {
			return "", "", "", fmt.Errorf("render %s: %w", part.file, err)
		}
	}
	return strings.TrimSpace(subject), htmlBody, textBody, nil
}

func renderEmbedded(file string, data any, asHTML bool) (string, error) {
	raw, err := templateFS.ReadFile("templates/" + file)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if asHTML {
		t, err := template.New(file).Parse(string(raw))
		if err != nil {
			return "", err
		}
		err = t.Execute(&buf, data)
		return buf.String(), err
	}
	t, err := texttemplate.New(file).Parse(string(raw))
	if err != nil {
		return "", err
	}
	err = t.Execute(&buf, data)
	return buf.String(), err
}
