package classify

import (
	"errors"
	"strings"
	"testing"

	"civicpulse/internal/domain"
)

func TestFuseTextOnly(t *testing.T) {
	text := domain.TextEstimate{Category: "garbage", Confidence: 0.7, Severity: domain.SeverityMedium}
	got := Fuse(text, nil, nil, "garbage")

	if got.Kind != domain.ClassifiedTextOnly {
		t.Fatalf("expected text-only kind, got %v", got.Kind)
	}
	if got.Category != "garbage" || got.Confidence != 0.7 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.NeedsReview {
		t.Fatal("confidence 0.7 must not need review")
	}
	if got.WasReclassified {
		t.Fatal("text-only path never reclassifies")
	}
}

func TestFuseTextOnlyLowConfidenceNeedsReview(t *testing.T) {
	text := domain.TextEstimate{Category: "other", Confidence: 0.45, Severity: domain.SeverityMedium}
	got := Fuse(text, nil, nil, "other")
	if !got.NeedsReview {
		t.Fatal("confidence below 0.6 must need review")
	}
}

func TestFuseImageCategoryWins(t *testing.T) {
	text := domain.TextEstimate{Category: "garbage", Confidence: 0.6, Severity: domain.SeverityMedium}
	image := &domain.ImageEstimate{Category: "pothole", Confidence: 0.92, Explanation: "asphalt crater"}
	got := Fuse(text, image, nil, "garbage")

	if got.Kind != domain.ClassifiedTextPlusImage {
		t.Fatalf("expected text+image kind, got %v", got.Kind)
	}
	if got.Category != "pothole" {
		t.Fatalf("image category must win, got %q", got.Category)
	}
	if !got.WasReclassified {
		t.Fatal("expected reclassification flag")
	}
	if got.Confidence != 0.92 {
		t.Fatalf("expected max of both confidences, got %f", got.Confidence)
	}
	if got.Image == nil || got.Text.Category != "garbage" {
		t.Fatal("both signals must be kept for audit")
	}
}

func TestFuseNoReclassifyWhenOriginalIsOther(t *testing.T) {
	text := domain.TextEstimate{Category: "other", Confidence: 0.45, Severity: domain.SeverityMedium}
	image := &domain.ImageEstimate{Category: "streetlight", Confidence: 0.8}
	got := Fuse(text, image, nil, "other")
	if got.WasReclassified {
		t.Fatal("citizen category 'other' must not count as reclassified")
	}
	if got.Category != "streetlight" {
		t.Fatalf("unexpected category %q", got.Category)
	}
}

func TestFuseNoReclassifyWhenOriginalUnrecognized(t *testing.T) {
	text := domain.TextEstimate{Category: "other", Confidence: 0.45, Severity: domain.SeverityMedium}
	image := &domain.ImageEstimate{Category: "pothole", Confidence: 0.9}
	got := Fuse(text, image, nil, "misc")
	if got.WasReclassified {
		t.Fatal("an unrecognized citizen label must not count as reclassified")
	}
	if got.Category != "pothole" {
		t.Fatalf("unexpected category %q", got.Category)
	}
}

func TestFuseConfidenceClamped(t *testing.T) {
	text := domain.TextEstimate{Category: "pothole", Confidence: 0.9, Severity: domain.SeverityMedium}
	image := &domain.ImageEstimate{Category: "pothole", Confidence: 0.99}
	got := Fuse(text, image, nil, "pothole")
	if got.Confidence != 0.95 {
		t.Fatalf("confidence must clamp at 0.95, got %f", got.Confidence)
	}
}

func TestFuseOracleFailureDegrades(t *testing.T) {
	text := domain.TextEstimate{Category: "water_leak", Confidence: 0.8, Severity: domain.SeverityHigh}
	got := Fuse(text, nil, errors.New("oracle: service unavailable"), "water_leak")

	if got.Kind != domain.ClassifiedFallbackFailure {
		t.Fatalf("expected fallback kind, got %v", got.Kind)
	}
	if got.Category != "water_leak" || got.Confidence != 0.8 {
		t.Fatalf("fallback must keep text estimate: %+v", got)
	}
	if got.AIStatus() != "partial_failure" {
		t.Fatalf("expected partial_failure, got %q", got.AIStatus())
	}
	if got.FailureReason == "" {
		t.Fatal("failure reason must be recorded")
	}
}

func TestFuseUnknownImageCategoryMapsToOther(t *testing.T) {
	text := domain.TextEstimate{Category: "garbage", Confidence: 0.6, Severity: domain.SeverityMedium}
	image := &domain.ImageEstimate{Category: "graffiti", Confidence: 0.9}
	got := Fuse(text, image, nil, "garbage")
	if got.Category != "other" {
		t.Fatalf("unknown oracle category must map to other, got %q", got.Category)
	}
}

func TestClassifyTextKeywordMatch(t *testing.T) {
	got := ClassifyText("There is a huge pothole with a deep crater on the road surface", "garbage")
	if got.Category != "pothole" {
		t.Fatalf("expected pothole, got %q", got.Category)
	}
	if got.Confidence < 0.6 {
		t.Fatalf("multiple keyword hits should be confident, got %f", got.Confidence)
	}
	if got.Severity != domain.SeverityHigh {
		t.Fatalf("'huge' should push severity high, got %s", got.Severity)
	}
}

func TestClassifyTextNoSignalFallsBack(t *testing.T) {
	got := ClassifyText("something is wrong here", "streetlight")
	if got.Category != "streetlight" {
		t.Fatalf("expected citizen category fallback, got %q", got.Category)
	}
	if got.Confidence >= 0.6 {
		t.Fatalf("fallback must stay below review threshold, got %f", got.Confidence)
	}
}

func TestClassifyTextSeverityIndicators(t *testing.T) {
	got := ClassifyText("water pipe burst flooding the entire street", "water_leak")
	if got.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", got.Severity)
	}
	if len(got.SeverityIndicators) == 0 {
		t.Fatal("expected recorded indicators")
	}
	for _, ind := range got.SeverityIndicators {
		if !strings.Contains("burst flood entire", ind) {
			t.Fatalf("unexpected indicator %q", ind)
		}
	}
}

func TestClassifyTextUnknownCitizenCategory(t *testing.T) {
	got := ClassifyText("strange smell around", "ufo_sighting")
	if got.Category != "other" {
		t.Fatalf("unknown citizen category must map to other, got %q", got.Category)
	}
}
