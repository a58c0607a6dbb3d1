package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GenerateDoc renders markdown documentation for one template.
func (s *Store) GenerateDoc(name string) (string, error) {
	meta, err := s.GetMetadata(name)
	if err != nil {
		return "", err
	}
	content, err := s.Load(name)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", name)
	fmt.Fprintf(&b, "%s\n\n", meta.Description)
	if meta.Parent != "" {
		fmt.Fprintf(&b, "Inherits from: `%s`\n\n", meta.Parent)
	}
	if len(meta.Variables) > 0 {
		b.WriteString("### Variables\n\n")
		for _, v := range meta.Variables {
			fmt.Fprintf(&b, "- `${%s}`\n", v)
		}
		b.WriteString("\n")
	}
	if meta.Example != "No example available" {
		b.WriteString("### Example\n\n")
		b.WriteString("```\n")
		b.WriteString(meta.Example)
		b.WriteString("\n```\n\n")
	}
	b.WriteString("### Content\n\n")
	b.WriteString("```\n")
	b.WriteString(strings.TrimRight(content, "\n"))
	b.WriteString("\n```\n")
	return b.String(), nil
}

// GenerateAllDocs renders documentation for the whole store: a
// category index with anchors followed by per-template sections and a
// generation timestamp.
func (s *Store) GenerateAllDocs() (string, error) {
	names, err := s.List()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# CQL Template Documentation\n\n")

	byCategory := map[string][]string{}
	var categories []string
	for _, name := range names {
		category := "other"
		if idx := strings.Index(name, "/"); idx >= 0 {
			category = name[:idx]
		}
		if _, seen := byCategory[category]; !seen {
			categories = append(categories, category)
		}
		byCategory[category] = append(byCategory[category], name)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categoryRank(categories[i]+"/") < categoryRank(categories[j]+"/")
	})

	b.WriteString("## Index\n\n")
	for _, category := range categories {
		fmt.Fprintf(&b, "### %s\n\n", category)
		for _, name := range byCategory[category] {
			fmt.Fprintf(&b, "- [%s](#%s)\n", name, anchor(name))
		}
		b.WriteString("\n")
	}

	for _, name := range names {
		doc, err := s.GenerateDoc(name)
		if err != nil {
			return "", err
		}
		b.WriteString(doc)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\nGenerated on %s\n", time.Now().Format("2006-01-02 15:04:05"))
	return b.String(), nil
}

// anchor converts a template reference to a markdown heading anchor.
func anchor(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "/", "-"))
}

// ExportDocs writes store documentation to a file. The format follows
// the file extension: .md, .html, or anything else as plain text.
func (s *Store) ExportDocs(path string) error {
	docs, err := s.GenerateAllDocs()
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		// Markdown as-is.
	case ".html", ".htm":
		docs = renderHTML(docs)
	default:
		docs = stripMarkdown(docs)
	}
	if err := os.WriteFile(path, []byte(docs), 0644); err != nil {
		return fmt.Errorf("failed to export documentation: %w", err)
	}
	return nil
}

func renderHTML(markdown string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><title>CQL Template Documentation</title></head>\n<body>\n<pre>\n")
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	b.WriteString(replacer.Replace(markdown))
	b.WriteString("</pre>\n</body>\n</html>\n")
	return b.String()
}

func stripMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		line = strings.TrimLeft(line, "#")
		line = strings.ReplaceAll(line, "`", "")
		out = append(out, strings.TrimPrefix(line, " "))
	}
	return strings.Join(out, "\n")
}
