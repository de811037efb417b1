package services

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"eebc-advisor/models"
)

// ChunkingService turns cleaned page text into overlapping retrieval chunks.
type ChunkingService struct {
	maxChunkSize   int
	overlap        int
	hyphenRegex    *regexp.Regexp
	spaceRegex     *regexp.Regexp
	blankLineRegex *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

// NewChunkingService creates a chunking service. maxChunkSize is the
// character budget per chunk; overlap is the tail carried into the next
// chunk for paragraph continuity.
func NewChunkingService(maxChunkSize, overlap int) *ChunkingService {
	return &ChunkingService{
		maxChunkSize:   maxChunkSize,
		overlap:        overlap,
		hyphenRegex:    regexp.MustCompile(`(\w)-\n(\w)`),
		spaceRegex:     regexp.MustCompile(`[ \t]+`),
		blankLineRegex: regexp.MustCompile(`\n{3,}`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// CleanText normalizes raw extracted text before chunking: rejoins words
// hyphenated across line breaks, normalizes line endings, collapses runs of
// spaces and blank lines.
func (cs *ChunkingService) CleanText(text string) string {
	text = cs.hyphenRegex.ReplaceAllString(text, "$1$2")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = cs.spaceRegex.ReplaceAllString(text, " ")
	text = cs.blankLineRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ChunkPages splits each page into paragraph segments and greedily packs
// them into chunks under the size budget. When a paragraph would overflow
// the running buffer, the chunk is closed and the next one is seeded with
// the trailing overlap of the previous buffer, so a clause split across a
// boundary stays readable in at least one chunk.
func (cs *ChunkingService) ChunkPages(pages []Page, origin string) []models.Chunk {
	type rawChunk struct {
		page int
		text string
	}
	var raw []rawChunk

	for _, pg := range pages {
		text := cs.CleanText(pg.Text)
		if text == "" {
			continue
		}

		paragraphs := cs.paragraphRegex.Split(text, -1)
		buff := ""
		for _, para := range paragraphs {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			if len(buff)+len(para)+2 <= cs.maxChunkSize {
				if buff != "" {
					buff += "\n\n"
				}
				buff += para
				continue
			}

			if buff != "" {
				raw = append(raw, rawChunk{page: pg.Number, text: buff})
			}
			tail := ""
			if cs.overlap > 0 && len(buff) > cs.overlap {
				// Advance to the next rune boundary so the overlap never
				// opens with a broken multi-byte character.
				cut := len(buff) - cs.overlap
				for cut < len(buff) && !utf8.RuneStart(buff[cut]) {
					cut++
				}
				tail = buff[cut:]
			} else if cs.overlap > 0 {
				tail = buff
			}
			buff = strings.TrimSpace(tail + "\n\n" + para)
		}
		if buff != "" {
			raw = append(raw, rawChunk{page: pg.Number, text: buff})
		}
	}

	chunks := make([]models.Chunk, 0, len(raw))
	for idx, c := range raw {
		chunks = append(chunks, models.Chunk{
			ChunkID: chunkID(c.page, idx, c.text),
			Page:    c.page,
			Text:    c.text,
			Origin:  origin,
		})
	}
	return chunks
}

// chunkID derives a stable identifier from the page, the chunk ordinal and a
// fingerprint of the leading content. Rebuilding an unchanged document
// reproduces the same ids; changing any fingerprinted character changes them.
func chunkID(page, ordinal int, text string) string {
	prefix := text
	if len(prefix) > 200 {
		prefix = prefix[:200]
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%d|%s", page, prefix)))
	return fmt.Sprintf("p%d_c%d_%s", page, ordinal, hex.EncodeToString(sum[:])[:10])
}
