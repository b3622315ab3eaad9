// ABOUTME: Tests for the Chunker strategies, packing rule, merge and overlap passes
// ABOUTME: Verifies single-chunk inputs, coverage without gaps, and size bounds
package chunker

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/harper/ragcore/internal/models"
)

// words builds n distinct Latin words (one token each) starting at offset
func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func newChunker(t *testing.T, mutate func(*models.ChunkConfig)) *Chunker {
	t.Helper()
	cfg := models.DefaultChunkConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// stripOverlap removes the prefix borrowed from the previous chunk
func stripOverlap(c models.Chunk) string {
	if n, ok := c.Metadata[models.MetaOverlapLen].(int); ok {
		return c.Content[n:]
	}
	return c.Content
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := models.DefaultChunkConfig()
	cfg.ChunkSize = 0
	if _, err := New(cfg); !errors.Is(err, models.ErrValidation) {
		t.Errorf("New() error = %v, want ErrValidation", err)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c := newChunker(t, nil)

	tests := []struct {
		name string
		text string
	}{
		{"empty string", ""},
		{"whitespace only", "   "},
		{"tabs and newlines", "\t\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := c.Chunk(tt.text, nil)
			if !errors.Is(err, models.ErrEmptyInput) {
				t.Errorf("Chunk() error = %v, want ErrEmptyInput", err)
			}
			if len(chunks) != 0 {
				t.Errorf("expected no chunks, got %d", len(chunks))
			}
		})
	}
}

func TestChunk_ShortTextIsOneChunk(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. It was not amused!\n\nA second short paragraph."
	strategies := []models.ChunkStrategy{
		models.StrategyFixedSize,
		models.StrategyParagraph,
		models.StrategySentence,
		models.StrategySemantic,
	}

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			c := newChunker(t, func(cfg *models.ChunkConfig) { cfg.Strategy = s })
			chunks, err := c.Chunk(text, nil)
			if err != nil {
				t.Fatalf("Chunk() error = %v", err)
			}
			if len(chunks) != 1 {
				t.Fatalf("expected 1 chunk, got %d", len(chunks))
			}
			if chunks[0].Content != text {
				t.Errorf("Content = %q, want %q", chunks[0].Content, text)
			}
			if chunks[0].TokenCount < 1 {
				t.Errorf("TokenCount = %d, want >= 1", chunks[0].TokenCount)
			}
		})
	}
}

func TestChunk_TwoParagraphsFitInOneChunk(t *testing.T) {
	c := newChunker(t, nil) // chunk_size 500
	text := words("alpha", 80) + ".\n\n" + words("beta", 80) + "."

	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "alpha0") || !strings.Contains(chunks[0].Content, "beta79") {
		t.Error("chunk should contain both paragraphs")
	}
	if !strings.Contains(chunks[0].Content, "\n\n") {
		t.Error("paragraphs should stay separated by a blank line")
	}
	if chunks[0].TokenCount != 160 {
		t.Errorf("TokenCount = %d, want 160", chunks[0].TokenCount)
	}
}

func TestChunk_ParagraphsFlushWhenFull(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.Strategy = models.StrategyParagraph
		cfg.OverlapSize = 0
	})
	text := words("a", 300) + "\n\n" + words("b", 300) + "\n\n" + words("c", 300)

	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.SequenceIndex != i {
			t.Errorf("chunk %d SequenceIndex = %d", i, ch.SequenceIndex)
		}
		if ch.TokenCount != 300 {
			t.Errorf("chunk %d TokenCount = %d, want 300", i, ch.TokenCount)
		}
	}
}

func TestChunk_OversizedParagraphSplitsBySentence(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.Strategy = models.StrategyParagraph
		cfg.OverlapSize = 0
		cfg.MinChunkSize = 0
	})

	var sentences []string
	for i := 0; i < 20; i++ {
		sentences = append(sentences, words(fmt.Sprintf("s%dw", i), 50)+".")
	}
	text := strings.Join(sentences, " ")

	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.TokenCount > 500 {
			t.Errorf("chunk %d has %d tokens, above chunk_size", i, ch.TokenCount)
		}
	}
	if !strings.HasSuffix(chunks[0].Content, "s9w49.") {
		t.Errorf("first chunk should end at a sentence boundary, ends with %q", chunks[0].Content[len(chunks[0].Content)-10:])
	}
}

func TestChunk_OversizedSentenceSplitsByWords(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.Strategy = models.StrategySentence
		cfg.ChunkSize = 100
		cfg.OverlapSize = 0
		cfg.MinChunkSize = 0
		cfg.MaxChunkSize = 100
	})

	chunks, err := c.Chunk(words("w", 250), nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := []int{100, 100, 50}
	for i, ch := range chunks {
		if ch.TokenCount != want[i] {
			t.Errorf("chunk %d TokenCount = %d, want %d", i, ch.TokenCount, want[i])
		}
	}
}

func TestChunk_CJKSentences(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.Strategy = models.StrategySentence
		cfg.ChunkSize = 3
		cfg.OverlapSize = 0
		cfg.MinChunkSize = 0
		cfg.MaxChunkSize = 3
	})

	chunks, err := c.Chunk("第一句。第二句！第三句？", nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	want := []string{"第一句。", "第二句！", "第三句？"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, ch := range chunks {
		if ch.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, ch.Content, want[i])
		}
	}
}

func TestChunk_DecimalPointIsNotASentenceEnd(t *testing.T) {
	spans := sentenceSpans("Pi is 3.14 exactly. Next one.", 0, len("Pi is 3.14 exactly. Next one."))
	if len(spans) != 2 {
		t.Fatalf("expected 2 sentences, got %d", len(spans))
	}
}

func TestChunk_SemanticFallsBackToSentences(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.ChunkSize = 120
		cfg.OverlapSize = 0
		cfg.MinChunkSize = 0
		cfg.MaxChunkSize = 200
	})

	// One paragraph of four 50-token sentences: two per chunk
	var sentences []string
	for i := 0; i < 4; i++ {
		sentences = append(sentences, words(fmt.Sprintf("x%d_", i), 50)+".")
	}
	chunks, err := c.Chunk(strings.Join(sentences, " "), nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].MetaString(models.MetaChunkMethod) != string(models.StrategySemantic) {
		t.Errorf("chunk_method = %q", chunks[0].MetaString(models.MetaChunkMethod))
	}
}

func TestChunk_CoversInputWithoutGaps(t *testing.T) {
	var b strings.Builder
	for p := 0; p < 6; p++ {
		for s := 0; s < 7; s++ {
			b.WriteString(words(fmt.Sprintf("p%ds%d_", p, s), 17+s*3))
			b.WriteString(". ")
		}
		b.WriteString("数据检索增强生成。\n\n")
	}
	text := b.String()

	strategies := []models.ChunkStrategy{
		models.StrategyFixedSize,
		models.StrategyParagraph,
		models.StrategySentence,
		models.StrategySemantic,
	}
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			c := newChunker(t, func(cfg *models.ChunkConfig) {
				cfg.Strategy = s
				cfg.ChunkSize = 90
				cfg.OverlapSize = 20
				cfg.MinChunkSize = 30
				cfg.MaxChunkSize = 200
			})
			chunks, err := c.Chunk(text, nil)
			if err != nil {
				t.Fatalf("Chunk() error = %v", err)
			}
			if len(chunks) < 2 {
				t.Fatalf("expected several chunks, got %d", len(chunks))
			}

			var rebuilt []string
			for _, ch := range chunks {
				rebuilt = append(rebuilt, stripOverlap(ch))
			}
			// Chunk boundaries may fall between CJK runes, so compare without whitespace
			got := strings.Join(strings.Fields(strings.Join(rebuilt, "")), "")
			want := strings.Join(strings.Fields(text), "")
			if got != want {
				t.Error("chunks without overlap should reconstruct the input")
			}
		})
	}
}

func TestChunk_OverlapBoundedByHalfChunkSize(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.Strategy = models.StrategyFixedSize
		cfg.ChunkSize = 10
		cfg.OverlapSize = 9
		cfg.MinChunkSize = 0
		cfg.MaxChunkSize = 20
	})

	chunks, err := c.Chunk(words("w", 30), nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if _, ok := chunks[0].Metadata[models.MetaOverlap]; ok {
		t.Error("first chunk should not carry overlap")
	}
	for _, ch := range chunks[1:] {
		if got := ch.Metadata[models.MetaOverlap]; got != 5 {
			t.Errorf("chunk %d overlap_tokens = %v, want 5", ch.SequenceIndex, got)
		}
		if ch.TokenCount != 15 {
			t.Errorf("chunk %d TokenCount = %d, want 15", ch.SequenceIndex, ch.TokenCount)
		}
	}
	if !strings.HasPrefix(chunks[1].Content, "w5 w6 w7 w8 w9 w10") {
		t.Errorf("second chunk should start with the tail of the first, got %q", chunks[1].Content)
	}
}

func TestChunk_OverlapRespectsMaxChunkSize(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.Strategy = models.StrategyFixedSize
		cfg.ChunkSize = 10
		cfg.OverlapSize = 5
		cfg.MinChunkSize = 0
		cfg.MaxChunkSize = 12
	})

	chunks, err := c.Chunk(words("w", 20), nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	for _, ch := range chunks {
		if ch.TokenCount > 12 {
			t.Errorf("chunk %d has %d tokens, above max_chunk_size", ch.SequenceIndex, ch.TokenCount)
		}
	}
}

func TestMergeSmall(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.MinChunkSize = 100
	})

	text := strings.Join([]string{words("a", 50), words("b", 60), words("c", 400), words("d", 30)}, "\n\n")
	got := c.mergeSmall(text, paragraphSpans(text, 0, len(text)))

	wantTokens := []int{110, 430}
	if len(got) != len(wantTokens) {
		t.Fatalf("mergeSmall() returned %d spans, want %d", len(got), len(wantTokens))
	}
	for i, sp := range got {
		if sp.tokens != wantTokens[i] {
			t.Errorf("span %d tokens = %d, want %d", i, sp.tokens, wantTokens[i])
		}
		if sp.tokens != estimate(text[sp.start:sp.end]) {
			t.Errorf("span %d tokens = %d, content estimates %d", i, sp.tokens, estimate(text[sp.start:sp.end]))
		}
	}
	if !strings.HasPrefix(text[got[1].start:got[1].end], "c0 ") {
		t.Errorf("second span should start at the third paragraph")
	}
}

// mixedText builds punctuation-heavy text mixing Latin words, CJK runs and
// punctuation-only fields, where per-unit estimates round differently from
// the estimate of the joined text
func mixedText(r *rand.Rand, n int) string {
	pieces := []string{"alpha", "gamma", "delta", "中文", "检索", "——", "???", "!", "…", "--", "...", "“”", "；", "。", "a1", "x.y"}
	seps := []string{" ", " ", " ", "", "\n", "\n\n", ". ", "? "}
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(pieces[r.Intn(len(pieces))])
		b.WriteString(seps[r.Intn(len(seps))])
	}
	return b.String()
}

func TestChunk_SizeBoundsHoldForMixedText(t *testing.T) {
	strategies := []models.ChunkStrategy{
		models.StrategyFixedSize,
		models.StrategyParagraph,
		models.StrategySentence,
		models.StrategySemantic,
	}
	tests := []struct {
		name    string
		overlap int
		max     int
	}{
		{"no overlap", 0, 20},
		{"overlap", 6, 24},
	}

	r := rand.New(rand.NewSource(42))
	inputs := make([]string, 60)
	for i := range inputs {
		inputs[i] = mixedText(r, 20+r.Intn(200))
	}

	for _, s := range strategies {
		for _, tt := range tests {
			t.Run(string(s)+"/"+tt.name, func(t *testing.T) {
				c := newChunker(t, func(cfg *models.ChunkConfig) {
					cfg.Strategy = s
					cfg.ChunkSize = 20
					cfg.OverlapSize = tt.overlap
					cfg.MinChunkSize = 5
					cfg.MaxChunkSize = tt.max
				})
				for _, in := range inputs {
					chunks, err := c.Chunk(in, nil)
					if err != nil {
						t.Fatalf("Chunk() error = %v", err)
					}
					for _, ch := range chunks {
						if ch.TokenCount != estimate(ch.Content) {
							t.Fatalf("TokenCount = %d, content estimates %d", ch.TokenCount, estimate(ch.Content))
						}
						if ch.TokenCount > tt.max {
							t.Fatalf("chunk %q has %d tokens, above max_chunk_size %d", ch.Content, ch.TokenCount, tt.max)
						}
						if tt.overlap == 0 && ch.TokenCount > 20 {
							t.Fatalf("chunk %q has %d tokens, above chunk_size", ch.Content, ch.TokenCount)
						}
					}
				}
			})
		}
	}
}

func TestChunk_FullWidthSemicolonEndsSentence(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.Strategy = models.StrategySentence
		cfg.ChunkSize = 4
		cfg.OverlapSize = 0
		cfg.MinChunkSize = 0
		cfg.MaxChunkSize = 4
	})

	chunks, err := c.Chunk("一二三；四五六；七八九。", nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	want := []string{"一二三；", "四五六；", "七八九。"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, ch := range chunks {
		if ch.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, ch.Content, want[i])
		}
	}
}

func TestChunk_MetadataCopiedPerChunk(t *testing.T) {
	c := newChunker(t, func(cfg *models.ChunkConfig) {
		cfg.Strategy = models.StrategyParagraph
		cfg.ChunkSize = 50
		cfg.OverlapSize = 0
		cfg.MinChunkSize = 0
	})
	meta := map[string]any{"source": "notes.md"}

	chunks, err := c.Chunk(words("a", 40)+"\n\n"+words("b", 40), meta)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	seen := map[string]bool{}
	for _, ch := range chunks {
		if !strings.HasPrefix(ch.ID, "chunk_") {
			t.Errorf("ID = %q, want chunk_ prefix", ch.ID)
		}
		if seen[ch.ID] {
			t.Errorf("duplicate chunk ID %q", ch.ID)
		}
		seen[ch.ID] = true

		if ch.MetaString("source") != "notes.md" {
			t.Errorf("source metadata not copied: %v", ch.Metadata)
		}
		if ch.Metadata[models.MetaChunkSize] != 50 {
			t.Errorf("chunk_size metadata = %v, want 50", ch.Metadata[models.MetaChunkSize])
		}
		if ch.MetaString(models.MetaCreatedTime) == "" {
			t.Error("created_time metadata missing")
		}
	}

	chunks[0].Metadata["source"] = "changed"
	if meta["source"] != "notes.md" || chunks[1].MetaString("source") != "notes.md" {
		t.Error("chunk metadata must not alias the caller's map or other chunks")
	}
}

func TestClean_KeepsParagraphBreaks(t *testing.T) {
	got := clean("  first \t line  \r\n\r\n\r\n\r\nsecond\tline  ")
	want := "first line\n\nsecond line"
	if got != want {
		t.Errorf("clean() = %q, want %q", got, want)
	}
}
