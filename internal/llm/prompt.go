// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package llm streams completions from Bedrock and OpenAI-compatible
// models and renders the edit prompt that teaches a model the block
// format the edit parser understands.
package llm

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/petar-djukic/go-editfiles/internal/editformat"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TemplateData holds the values injected into the edit prompt template.
type TemplateData struct {
	Search     string
	Divider    string
	Replace    string
	WriteOpen  string
	WriteClose string
}

// RenderEditPrompt renders the edit prompt with the block markers the
// parser recognizes.
func RenderEditPrompt() (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/edit_prompt.tmpl")
	if err != nil {
		return "", fmt.Errorf("parsing edit prompt template: %w", err)
	}

	data := TemplateData{
		Search:     editformat.MarkerSearch,
		Divider:    editformat.MarkerDivider,
		Replace:    editformat.MarkerReplace,
		WriteOpen:  editformat.MarkerWriteOpen,
		WriteClose: editformat.MarkerWriteClose,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing edit prompt template: %w", err)
	}
	return buf.String(), nil
}
