package classify

import (
	"civicpulse/internal/domain"
)

// maxConfidence caps every fused score; the system never claims certainty.
const maxConfidence = 0.95

// reviewThreshold flags low-confidence classifications for a human look.
const reviewThreshold = 0.6

// Fuse merges the text estimate with an optional image estimate into the
// verified classification. The image category wins when present; an oracle
// failure degrades to text-only and is recorded, never surfaced.
func Fuse(text domain.TextEstimate, image *domain.ImageEstimate, imageErr error, originalCategory string) domain.ClassificationResult {
	result := domain.ClassificationResult{
		Category:   text.Category,
		Confidence: text.Confidence,
		Severity:   text.Severity,
		Text:       text,
	}

	switch {
	case imageErr != nil:
		result.Kind = domain.ClassifiedFallbackFailure
		result.FailureReason = imageErr.Error()
	case image == nil:
		result.Kind = domain.ClassifiedTextOnly
	default:
		result.Kind = domain.ClassifiedTextPlusImage
		result.Image = image
		result.Category = image.Category
		if !domain.KnownCategory(result.Category) {
			result.Category = "other"
		}
		if image.Confidence > result.Confidence {
			result.Confidence = image.Confidence
		}
		// Only a real citizen choice can be overridden; "other" and
		// unrecognized labels carry no signal to disagree with.
		result.WasReclassified = originalCategory != "" &&
			originalCategory != "other" &&
			domain.KnownCategory(originalCategory) &&
			result.Category != originalCategory
	}

	if result.Confidence > maxConfidence {
		result.Confidence = maxConfidence
	}
	result.NeedsReview = result.Confidence < reviewThreshold
	return result
}
