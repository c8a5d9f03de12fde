// Package classify produces the verified category and severity for an issue
// by fusing a keyword-based text estimate with the oracle's image estimate.
package classify

import (
	"strings"

	"civicpulse/internal/domain"
)

var categoryKeywords = map[string][]string{
	"pothole":     {"pothole", "pot hole", "crater", "asphalt", "road surface", "pavement broken"},
	"garbage":     {"garbage", "trash", "waste", "litter", "dump", "bin overflowing", "rubbish"},
	"water_leak":  {"water leak", "pipe burst", "leaking", "pipeline", "tap broken", "water supply"},
	"streetlight": {"streetlight", "street light", "lamp post", "light not working", "bulb", "dark street"},
	"sewage":      {"sewage", "sewer", "drain blocked", "drainage", "manhole", "gutter"},
	"tree_fall":   {"tree fallen", "fallen tree", "branch", "uprooted", "tree blocking"},
}

// Indicator words ordered by the severity they imply. First hit per class
// is recorded; the highest class wins.
var severityIndicators = map[domain.Severity][]string{
	domain.SeverityCritical: {"danger", "accident", "injur", "burst", "flood", "collaps", "spark", "fire", "shock"},
	domain.SeverityHigh:     {"major", "severe", "huge", "blocked", "overflow", "urgent", "entire"},
	domain.SeverityLow:      {"minor", "small", "slight", "cosmetic"},
}

// ClassifyText estimates category and severity from the description alone.
// With no keyword signal it falls back to the citizen-chosen category at a
// confidence low enough to flag for review.
func ClassifyText(description, originalCategory string) domain.TextEstimate {
	text := strings.ToLower(description)

	bestCategory := ""
	bestHits := 0
	for _, category := range domain.Categories {
		hits := 0
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestCategory = category
		}
	}

	estimate := domain.TextEstimate{Severity: domain.SeverityMedium}
	if bestHits > 0 {
		estimate.Category = bestCategory
		estimate.Confidence = 0.5 + 0.1*float64(bestHits)
		if estimate.Confidence > 0.9 {
			estimate.Confidence = 0.9
		}
	} else {
		estimate.Category = originalCategory
		if !domain.KnownCategory(estimate.Category) {
			estimate.Category = "other"
		}
		estimate.Confidence = 0.45
	}

	hit := map[domain.Severity]bool{}
	for _, level := range []domain.Severity{domain.SeverityCritical, domain.SeverityHigh, domain.SeverityLow} {
		for _, word := range severityIndicators[level] {
			if strings.Contains(text, word) {
				estimate.SeverityIndicators = append(estimate.SeverityIndicators, word)
				hit[level] = true
			}
		}
	}
	switch {
	case hit[domain.SeverityCritical]:
		estimate.Severity = domain.SeverityCritical
	case hit[domain.SeverityHigh]:
		estimate.Severity = domain.SeverityHigh
	case hit[domain.SeverityLow]:
		estimate.Severity = domain.SeverityLow
	default:
		estimate.Severity = domain.SeverityMedium
	}
	return estimate
}
