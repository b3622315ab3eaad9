// ABOUTME: Chunker splits cleaned document text into token-bounded, overlapping chunks
// ABOUTME: Paragraph, sentence, fixed-size and semantic strategies share one greedy packing rule
package chunker

import (
	"time"

	"github.com/google/uuid"
	"github.com/harper/ragcore/internal/models"
)

// Chunker turns raw text into ordered chunks according to its configuration.
// It holds no state besides the configuration and is safe for concurrent use.
type Chunker struct {
	cfg models.ChunkConfig
	now func() time.Time
}

// New creates a Chunker after validating cfg
func New(cfg models.ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg, now: time.Now}, nil
}

// Config returns the chunker's configuration
func (c *Chunker) Config() models.ChunkConfig {
	return c.cfg
}

// Chunk splits text into chunks. Every chunk carries a copy of metadata plus
// the chunking parameters. Blank input returns models.ErrEmptyInput.
func (c *Chunker) Chunk(text string, metadata map[string]any) ([]models.Chunk, error) {
	cleaned := clean(text)
	if cleaned == "" {
		return nil, models.ErrEmptyInput
	}

	spans := c.pack(cleaned)
	spans = c.splitOversized(cleaned, spans)
	spans = c.mergeSmall(cleaned, spans)
	return c.build(cleaned, spans, metadata), nil
}

// pack runs the strategy-specific greedy accumulation over the whole text
func (c *Chunker) pack(text string) []span {
	all := len(text)
	switch c.cfg.Strategy {
	case models.StrategyFixedSize:
		return c.accumulate(text, wordSpans(text, 0, all, c.cfg.ChunkSize), nil)
	case models.StrategySentence:
		var sentences []span
		for _, p := range paragraphSpans(text, 0, all) {
			sentences = append(sentences, sentenceSpans(text, p.start, p.end)...)
		}
		return c.accumulate(text, sentences, c.byWords(text))
	case models.StrategySemantic:
		paragraphs := paragraphSpans(text, 0, all)
		if len(paragraphs) < 2 {
			return c.accumulate(text, sentenceSpans(text, 0, all), c.byWords(text))
		}
		return c.accumulate(text, paragraphs, c.bySentences(text))
	default:
		return c.accumulate(text, paragraphSpans(text, 0, all), c.bySentences(text))
	}
}

// accumulate greedily packs units: a unit joins the running chunk while the
// joined text stays within ChunkSize. A unit that alone exceeds ChunkSize is
// handed to finer, which splits it at the next granularity.
//
// The joined text is re-estimated instead of summing unit counts: the
// estimate rounds punctuation runs per field, so sums drift from the
// count of the final content.
func (c *Chunker) accumulate(text string, units []span, finer func(span) []span) []span {
	var out []span
	var cur span
	open := false

	for _, u := range units {
		if open {
			if joined := estimate(text[cur.start:u.end]); joined <= c.cfg.ChunkSize {
				cur.end = u.end
				cur.tokens = joined
				continue
			}
		}
		if open {
			out = append(out, cur)
			open = false
		}
		if u.tokens > c.cfg.ChunkSize && finer != nil {
			out = append(out, finer(u)...)
			continue
		}
		cur = u
		open = true
	}
	if open {
		out = append(out, cur)
	}
	return out
}

func (c *Chunker) bySentences(text string) func(span) []span {
	return func(p span) []span {
		return c.accumulate(text, sentenceSpans(text, p.start, p.end), c.byWords(text))
	}
}

func (c *Chunker) byWords(text string) func(span) []span {
	return func(s span) []span {
		return c.accumulate(text, wordSpans(text, s.start, s.end, c.cfg.ChunkSize), nil)
	}
}

// splitOversized re-splits by words any span above MaxChunkSize
func (c *Chunker) splitOversized(text string, spans []span) []span {
	out := make([]span, 0, len(spans))
	for _, sp := range spans {
		if sp.tokens <= c.cfg.MaxChunkSize {
			out = append(out, sp)
			continue
		}
		out = append(out, c.byWords(text)(sp)...)
	}
	return out
}

// mergeSmall coalesces neighbours when one of them is below MinChunkSize and
// the combined text still fits in ChunkSize
func (c *Chunker) mergeSmall(text string, spans []span) []span {
	if c.cfg.MinChunkSize <= 0 || len(spans) < 2 {
		return spans
	}

	out := []span{spans[0]}
	for _, next := range spans[1:] {
		last := &out[len(out)-1]
		small := last.tokens < c.cfg.MinChunkSize || next.tokens < c.cfg.MinChunkSize
		if small {
			if joined := estimate(text[last.start:next.end]); joined <= c.cfg.ChunkSize {
				last.end = next.end
				last.tokens = joined
				continue
			}
		}
		out = append(out, next)
	}
	return out
}

// overlapBudget is the most tokens one chunk may borrow from its predecessor
func (c *Chunker) overlapBudget() int {
	return min(c.cfg.OverlapSize, c.cfg.ChunkSize/2)
}

// build materialises chunks and applies the overlap pass
func (c *Chunker) build(text string, spans []span, metadata map[string]any) []models.Chunk {
	created := c.now().Format(time.RFC3339)
	budget := c.overlapBudget()

	chunks := make([]models.Chunk, 0, len(spans))
	for i, sp := range spans {
		content := text[sp.start:sp.end]
		meta := models.CloneMetadata(metadata)
		if meta == nil {
			meta = map[string]any{}
		}
		meta[models.MetaChunkMethod] = string(c.cfg.Strategy)
		meta[models.MetaChunkSize] = c.cfg.ChunkSize
		meta[models.MetaChunkOverlap] = c.cfg.OverlapSize
		meta[models.MetaCreatedTime] = created

		if i > 0 && budget > 0 {
			limit := min(budget, c.cfg.MaxChunkSize-sp.tokens)
			for limit > 0 {
				prefix, tokens := c.tail(text, spans[i-1], limit)
				if prefix == "" {
					break
				}
				joined := prefix + " " + content
				if estimate(joined) > c.cfg.MaxChunkSize {
					limit = tokens - 1
					continue
				}
				content = joined
				meta[models.MetaOverlap] = tokens
				meta[models.MetaOverlapLen] = len(prefix) + 1
				break
			}
		}

		chunks = append(chunks, models.Chunk{
			ID:            generateChunkID(),
			Content:       content,
			SequenceIndex: i,
			TokenCount:    estimate(content),
			Metadata:      meta,
		})
	}
	return chunks
}

// tail returns the trailing words of prev worth at most limit tokens.
// The first word of prev is never taken, so overlap never duplicates a whole chunk.
func (c *Chunker) tail(text string, prev span, limit int) (string, int) {
	if limit <= 0 {
		return "", 0
	}
	words := wordSpans(text, prev.start, prev.end, c.cfg.ChunkSize)
	k, taken := len(words), 0
	for k > 1 && taken+words[k-1].tokens <= limit {
		k--
		taken += words[k].tokens
	}
	if taken == 0 {
		return "", 0
	}
	return text[words[k].start:prev.end], taken
}

// generateChunkID generates a unique chunk ID
func generateChunkID() string {
	return "chunk_" + uuid.New().String()
}
