package core

import "strings"

// EmbeddingText builds the text handed to an external embedding model for a
// page: name, description, then each update message on its own line.
func EmbeddingText(page Page) string {
	var b strings.Builder

	switch p := page.(type) {
	case *Summer2025Page:
		b.WriteString(p.Name)
		b.WriteString("\n")
		b.WriteString(p.Description)
		b.WriteString("\n")
		for _, u := range p.Updates {
			b.WriteString(u.Message)
			b.WriteString("\n")
		}
	case *Journey2025Page:
		b.WriteString(p.Name)
		b.WriteString("\n")
		b.WriteString(p.Description)
		b.WriteString("\n")
		for _, u := range p.Updates {
			b.WriteString(u.Message)
			b.WriteString("\n")
		}
	}

	return b.String()
}
