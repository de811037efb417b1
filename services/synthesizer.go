package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"eebc-advisor/internal/ai"
	"eebc-advisor/models"
)

const (
	maxExcerptChars = 260
	defaultSources  = 6
)

// Phrases indicating a first-time question; these route to the simplified
// explanatory mode instead of the compliance-officer mode.
var beginnerPhrases = []string{
	"what is", "explain", "i'm new", "im new", "beginner", "simple", "overview",
}

const beginnerSystemPrompt = "You explain the EEBC to a beginner in short bullet points using ONLY the provided sources. Include (p.X) citations."

const officerSystemPrompt = "You are an EEBC compliance assistant. Answer clearly, step-by-step, using ONLY the provided sources. Every rule must have (p.X) citations."

const answerPromptTemplate = `User question:
%s

Parsed context:
%s

Applicability:
applies=%s
reason=%s

Sources (you must cite pages like (p.39)):
%s

Write:
- 5-10 bullet points max
- If info is missing, ask 2-3 short questions
- Do NOT invent`

// Synthesizer builds the citation-constrained prompt and packages the final
// answer. Faithfulness of the generated text to the sources is enforced by
// instruction; verifying it is outside this component.
type Synthesizer struct {
	llm        TextGenerator
	maxSources int
}

// NewSynthesizer creates an answer synthesizer emitting at most maxSources
// compact citations.
func NewSynthesizer(llm TextGenerator, maxSources int) *Synthesizer {
	if maxSources <= 0 {
		maxSources = defaultSources
	}
	return &Synthesizer{llm: llm, maxSources: maxSources}
}

// Synthesize generates the final answer from the retrieved sources, the
// parsed profile and the applicability verdict. A failed generation call is
// a pipeline-level error: unlike extraction, the answer IS the requested
// output and cannot be silently downgraded.
func (s *Synthesizer) Synthesize(ctx context.Context, message string, profile *models.BuildingProfile, retrieved []models.RetrievalResult, verdict models.Verdict) (string, []models.Source, error) {
	sources := s.CompactSources(retrieved)

	system := officerSystemPrompt
	if isBeginnerQuery(message) {
		system = beginnerSystemPrompt
	}

	ctxJSON, err := json.Marshal(profile)
	if err != nil {
		ctxJSON = []byte("{}")
	}

	prompt := fmt.Sprintf(answerPromptTemplate,
		message, ctxJSON, verdict.Applies, verdict.Reason, sourcesBlock(sources))

	answer, err := s.llm.Complete(ctx, ai.ModeReason, system, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("answer generation failed: %w", err)
	}
	return answer, sources, nil
}

// CompactSources converts the top retrieval results into the short citation
// records returned to the caller.
func (s *Synthesizer) CompactSources(retrieved []models.RetrievalResult) []models.Source {
	n := len(retrieved)
	if n > s.maxSources {
		n = s.maxSources
	}
	sources := make([]models.Source, 0, n)
	for _, r := range retrieved[:n] {
		excerpt := truncateOnRune(r.Chunk.Text, maxExcerptChars)
		excerpt = strings.ReplaceAll(excerpt, "\n", " ")
		sources = append(sources, models.Source{
			Page:    r.Chunk.Page,
			ChunkID: r.Chunk.ChunkID,
			Score:   r.Score,
			Excerpt: excerpt,
		})
	}
	return sources
}

func sourcesBlock(sources []models.Source) string {
	if len(sources) == 0 {
		return "(no sources available)"
	}
	lines := make([]string, 0, len(sources))
	for i, src := range sources {
		lines = append(lines, fmt.Sprintf("[S%d] p.%d %s: %s", i+1, src.Page, src.ChunkID, src.Excerpt))
	}
	return strings.Join(lines, "\n")
}

// truncateOnRune cuts s to at most max bytes, backing off to the previous
// rune boundary so the excerpt never ends in a broken multi-byte character.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isBeginnerQuery(message string) bool {
	low := strings.ToLower(message)
	for _, phrase := range beginnerPhrases {
		if strings.Contains(low, phrase) {
			return true
		}
	}
	return false
}
