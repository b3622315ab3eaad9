// ABOUTME: Markdown extraction: YAML front matter into metadata, markup stripped to plain text
// ABOUTME: Paragraph breaks survive so the paragraph and semantic chunkers still see them
package loader

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/harper/ragcore/internal/models"
	"gopkg.in/yaml.v3"
)

var (
	frontMatter = regexp.MustCompile(`(?s)\A---[ \t]*\n(.*?)\n---[ \t]*(?:\n|\z)`)

	fencedCode   = regexp.MustCompile("(?s)```[^\\n]*\\n(.*?)```")
	atxHeading   = regexp.MustCompile(`(?m)^#{1,6}[ \t]*(.*?)[ \t#]*$`)
	setextH1     = regexp.MustCompile(`(?m)^(.+)\n=+[ \t]*$`)
	setextH2     = regexp.MustCompile(`(?m)^([^\s-].*)\n-+[ \t]*$`)
	horizontal   = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)
	blockquote   = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	image        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	link         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	autolink     = regexp.MustCompile(`<(https?://[^>]+)>`)
	htmlTag      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	bulletItem   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	orderedItem  = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	strongStars  = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	strongUnders = regexp.MustCompile(`\b__([^_]+)__\b`)
	emStars      = regexp.MustCompile(`\*([^*\n]+)\*`)
	emUnders     = regexp.MustCompile(`\b_([^_\n]+)_\b`)
	strike       = regexp.MustCompile(`~~([^~]+)~~`)
	inlineCode   = regexp.MustCompile("`([^`\\n]+)`")
	headingLine  = regexp.MustCompile(`(?m)^#{1,6}[ \t]`)
)

func loadMarkdown(path string) (string, map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text, meta, err := parseMarkdown(string(data))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	return text, meta, nil
}

// parseMarkdown splits off front matter and strips markup
func parseMarkdown(raw string) (string, map[string]any, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	meta := map[string]any{"parser": "markdown", "has_frontmatter": false}

	if m := frontMatter.FindStringSubmatchIndex(raw); m != nil {
		var fm map[string]any
		if err := yaml.Unmarshal([]byte(raw[m[2]:m[3]]), &fm); err != nil {
			return "", nil, models.Validationf("invalid front matter: %v", err)
		}
		for k, v := range fm {
			meta[strings.ToLower(strings.TrimSpace(k))] = v
		}
		meta["has_frontmatter"] = true
		raw = raw[m[1]:]
	}

	meta["header_count"] = len(headingLine.FindAllStringIndex(raw, -1))
	return cleanText(stripMarkdown(raw)), meta, nil
}

func stripMarkdown(s string) string {
	s = fencedCode.ReplaceAllString(s, "$1")
	s = atxHeading.ReplaceAllString(s, "$1")
	s = setextH1.ReplaceAllString(s, "$1")
	s = setextH2.ReplaceAllString(s, "$1")
	s = horizontal.ReplaceAllString(s, "")
	s = blockquote.ReplaceAllString(s, "")
	s = image.ReplaceAllString(s, "$1")
	s = link.ReplaceAllString(s, "$1")
	s = autolink.ReplaceAllString(s, "$1")
	s = htmlTag.ReplaceAllString(s, "")
	s = bulletItem.ReplaceAllString(s, "")
	s = orderedItem.ReplaceAllString(s, "")
	s = strongStars.ReplaceAllString(s, "$1")
	s = strongUnders.ReplaceAllString(s, "$1")
	s = emStars.ReplaceAllString(s, "$1")
	s = emUnders.ReplaceAllString(s, "$1")
	s = strike.ReplaceAllString(s, "$1")
	s = inlineCode.ReplaceAllString(s, "$1")
	return s
}
