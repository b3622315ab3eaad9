// ABOUTME: Document loader turning text, Markdown and PDF files into plain text plus metadata
// ABOUTME: Extraction is dispatched on the file extension; unsupported types are rejected
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/harper/ragcore/internal/chunker"
	"github.com/harper/ragcore/internal/models"
)

// Metadata keys set on every loaded document
const (
	MetaFilePath        = "file_path"
	MetaFileSize        = "file_size"
	MetaFileExtension   = "file_extension"
	MetaModifiedTime    = "modified_time"
	MetaContentLength   = "content_length"
	MetaContentHash     = "content_hash"
	MetaEstimatedTokens = "estimated_tokens"
)

// Document is the extracted text of one file
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type extractor func(path string) (string, map[string]any, error)

var extractors = map[string]extractor{
	".txt":      loadText,
	".text":     loadText,
	".md":       loadMarkdown,
	".markdown": loadMarkdown,
	".pdf":      loadPDF,
}

// Supported reports whether path has an extension the loader can read
func Supported(path string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions lists the supported file extensions in sorted order
func Extensions() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Load reads path and returns its plain text with file metadata. Front
// matter keys from Markdown files are merged into the metadata, but never
// override the file keys.
func Load(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, models.NotFoundf("file %s", path)
		}
		return Document{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Document{}, models.Validationf("%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	extract, ok := extractors[ext]
	if !ok {
		return Document{}, models.Validationf("unsupported file type %q (supported: %s)", ext, strings.Join(Extensions(), ", "))
	}

	text, extra, err := extract(path)
	if err != nil {
		return Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, models.Validationf("no text extracted from %s", path)
	}

	metadata := make(map[string]any, len(extra)+9)
	for k, v := range extra {
		metadata[k] = v
	}
	sum := sha256.Sum256([]byte(text))
	tokens, _ := chunker.EstimateTokens(text)
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	metadata[MetaFilePath] = abs
	metadata[models.MetaFileName] = filepath.Base(path)
	metadata[MetaFileSize] = info.Size()
	metadata[MetaFileExtension] = strings.TrimPrefix(ext, ".")
	metadata[MetaModifiedTime] = info.ModTime().UTC().Format(time.RFC3339)
	metadata[MetaContentLength] = len([]rune(text))
	metadata[MetaContentHash] = hex.EncodeToString(sum[:])
	metadata[MetaEstimatedTokens] = tokens

	return Document{Text: text, Metadata: metadata}, nil
}

// Walk returns every supported file under root in lexical order. A file
// root is returned as is when supported.
func Walk(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.NotFoundf("path %s", root)
		}
		return nil, err
	}
	if !info.IsDir() {
		if !Supported(root) {
			return nil, models.Validationf("unsupported file type %q", filepath.Ext(root))
		}
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return paths, nil
}

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	trailingSpace  = regexp.MustCompile(`[ \t]+\n`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

// cleanText normalises line endings, drops control characters and
// collapses runs of blank lines to one
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = controlChars.ReplaceAllString(s, "")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = excessNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func loadText(path string) (string, map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := cleanText(string(data))
	return text, map[string]any{
		"parser":     "text",
		"line_count": strings.Count(text, "\n") + 1,
		"word_count": len(strings.Fields(text)),
	}, nil
}
