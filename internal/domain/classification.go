package domain

// ClassificationKind tags a ClassificationResult so fusion is exhaustive
// instead of probing optional fields.
type ClassificationKind int

const (
	ClassifiedTextOnly ClassificationKind = iota
	ClassifiedTextPlusImage
	ClassifiedFallbackFailure
)

// TextEstimate is the keyword-based category/severity signal.
type TextEstimate struct {
	Category           string
	Confidence         float64
	SeverityIndicators []string
	Severity           Severity
}

// ImageEstimate is the oracle's verdict on a submitted image.
type ImageEstimate struct {
	Category    string
	Confidence  float64
	Explanation string
}

// ClassificationResult is the fused output recorded on the issue. Both
// signals are kept for audit.
type ClassificationResult struct {
	Kind            ClassificationKind
	Category        string
	Confidence      float64
	Severity        Severity
	NeedsReview     bool
	WasReclassified bool
	Text            TextEstimate
	Image           *ImageEstimate // nil unless Kind == ClassifiedTextPlusImage
	FailureReason   string         // set when Kind == ClassifiedFallbackFailure
}

// AIStatus maps the classification outcome to the issue's ai_processing_status.
func (r ClassificationResult) AIStatus() string {
	if r.Kind == ClassifiedFallbackFailure {
		return "partial_failure"
	}
	return "ok"
}
