package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"eebc-advisor/internal/ai"
	"eebc-advisor/internal/logger"
	"eebc-advisor/models"
	"eebc-advisor/utils"
)

// TextGenerator is the generation capability the pipeline depends on. The
// Gemini client satisfies it; tests substitute fakes.
type TextGenerator interface {
	Complete(ctx context.Context, mode ai.GenerationMode, system, user string) (string, error)
}

// Lexical patterns for fields with legally load-bearing values. These always
// run, so a binary applicability determination never depends solely on the
// model call.
var (
	areaRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:m²|m2|sqm|sq\s*m|square\s*meters?)`)
	kvaRegex  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*kva\b`)
	wwrRegex  = regexp.MustCompile(`(?i)\bwwr\b[^0-9]{0,20}(\d+(?:\.\d+)?)\s*%`)
)

const extractSystemPrompt = "Extract building context fields as strict JSON only. No extra text."

const extractPromptTemplate = `Return JSON for these fields (use null if unknown):
district, building_type, is_new_building, floor_area_m2, electrical_demand_kva,
cooling_capacity_kwth, heating_capacity_kwth, wwr_percent, skylight_percent,
glazing_vlt, hvac_type, operating_hours

User text:
%s`

// ContextExtractor merges a best-effort model extraction with deterministic
// pattern matching to update a building profile.
type ContextExtractor struct {
	llm TextGenerator
}

// NewContextExtractor creates a new context extractor
func NewContextExtractor(llm TextGenerator) *ContextExtractor {
	return &ContextExtractor{llm: llm}
}

// Extract runs both passes, model first then patterns, and returns the
// updated profile. The prior profile is never mutated, and a known field is
// never erased by a pass that learned nothing about it.
func (e *ContextExtractor) Extract(ctx context.Context, message string, prior *models.BuildingProfile) *models.BuildingProfile {
	profile := prior.Clone()

	if extracted, ok := e.modelPass(ctx, message); ok {
		profile.Merge(extracted)
	}

	e.patternPass(profile, message)
	return profile
}

// modelPass asks the extraction model for JSON-shaped fields. Any failure —
// call error, malformed output — degrades to "no new fields"; the pipeline
// stays usable without the model.
func (e *ContextExtractor) modelPass(ctx context.Context, message string) (*models.BuildingProfile, bool) {
	if e.llm == nil {
		return nil, false
	}

	raw, err := e.llm.Complete(ctx, ai.ModeExtract, extractSystemPrompt,
		fmt.Sprintf(extractPromptTemplate, message))
	if err != nil {
		logger.Debug("Model extraction unavailable", "error", err)
		return nil, false
	}

	var extracted models.BuildingProfile
	if err := utils.ParseModelJSON(raw, &extracted); err != nil {
		logger.Debug("Model extraction returned unparseable output", "error", err)
		return nil, false
	}
	return &extracted, true
}

// patternPass fills still-unknown fields from fixed lexical patterns.
func (e *ContextExtractor) patternPass(profile *models.BuildingProfile, message string) {
	if profile.FloorAreaM2 == nil {
		if v, ok := matchNumber(areaRegex, message); ok {
			profile.FloorAreaM2 = &v
		}
	}
	if profile.ElectricalDemandKVA == nil {
		if v, ok := matchNumber(kvaRegex, message); ok {
			profile.ElectricalDemandKVA = &v
		}
	}
	if profile.WWRPercent == nil {
		if v, ok := matchNumber(wwrRegex, message); ok {
			profile.WWRPercent = &v
		}
	}

	low := strings.ToLower(message)
	if profile.District == nil && strings.Contains(low, "colombo") {
		district := "Colombo"
		profile.District = &district
	}
	if profile.IsNewBuilding == nil {
		if strings.Contains(low, "new ") || strings.Contains(low, "brand new") ||
			strings.HasSuffix(low, "new") {
			isNew := true
			profile.IsNewBuilding = &isNew
		}
	}
}

func matchNumber(re *regexp.Regexp, message string) (float64, bool) {
	m := re.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
