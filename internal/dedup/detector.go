// Package dedup decides whether a newly created issue duplicates a nearby
// open one, combining text similarity, geodesic distance and an oracle
// image comparison.
package dedup

import (
	"context"
	"log"

	"civicpulse/internal/domain"
	"civicpulse/internal/oracle"
	"civicpulse/internal/similarity"
)

// Config holds the detection thresholds.
type Config struct {
	TextThreshold      float64 // minimum Jaccard similarity
	RadiusMeters       float64 // geo gate for all candidates
	ImageThreshold     float64 // minimum "same issue" confidence
	MaxImageCandidates int     // bounds external-call cost
}

func DefaultConfig() Config {
	return Config{
		TextThreshold:      0.4,
		RadiusMeters:       100,
		ImageThreshold:     0.70,
		MaxImageCandidates: 5,
	}
}

// Comparer is the oracle surface the detector needs.
type Comparer interface {
	CompareImages(ctx context.Context, a, b oracle.Image) (oracle.Comparison, error)
}

// MediaLoader resolves a stored image reference to its payload.
type MediaLoader interface {
	Load(ref string) (oracle.Image, error)
}

// Verdict is the duplicate decision for one new issue.
type Verdict struct {
	IsDuplicate bool
	DuplicateOf int64
	Confidence  float64
	Method      string // "text" or "image"
	Compared    int
	Degraded    bool // image path failed, text-only verdict
}

type Detector struct {
	comparer Comparer
	media    MediaLoader
	cfg      Config
}

func NewDetector(comparer Comparer, media MediaLoader, cfg Config) *Detector {
	return &Detector{comparer: comparer, media: media, cfg: cfg}
}

// Check scores the new issue against candidates the caller pre-filtered to
// the same category within a time window. Oracle failures never propagate;
// the worst outcome is a text-only verdict.
func (d *Detector) Check(ctx context.Context, issue *domain.Issue, newImage *oracle.Image, candidates []domain.Issue) Verdict {
	verdict := Verdict{}

	var nearby []domain.Issue
	for _, c := range candidates {
		if c.ID == issue.ID {
			continue
		}
		dist := similarity.HaversineMeters(issue.Latitude, issue.Longitude, c.Latitude, c.Longitude)
		if dist <= d.cfg.RadiusMeters {
			nearby = append(nearby, c)
		}
	}
	verdict.Compared = len(nearby)
	if len(nearby) == 0 {
		return verdict
	}

	// Text path: best Jaccard score above the gate.
	var textBest *domain.Issue
	textScore := 0.0
	for i := range nearby {
		score := similarity.Jaccard(issue.Description, nearby[i].Description)
		if score >= d.cfg.TextThreshold && score > textScore {
			textScore = score
			textBest = &nearby[i]
		}
	}

	// Image path: bounded number of oracle comparisons against each
	// candidate's first image.
	var imageBest *domain.Issue
	imageScore := 0.0
	if newImage != nil && d.comparer != nil {
		compared := 0
		for i := range nearby {
			if compared >= d.cfg.MaxImageCandidates {
				break
			}
			if len(nearby[i].Images) == 0 {
				continue
			}
			candidateImage, err := d.media.Load(nearby[i].Images[0])
			if err != nil {
				log.Printf("dedup image load failed issue=%d ref=%s err=%v", nearby[i].ID, nearby[i].Images[0], err)
				continue
			}
			compared++
			comparison, err := d.comparer.CompareImages(ctx, *newImage, candidateImage)
			if err != nil {
				log.Printf("dedup image compare degraded err=%v", err)
				verdict.Degraded = true
				break
			}
			if comparison.SameIssue && comparison.Confidence >= d.cfg.ImageThreshold && comparison.Confidence > imageScore {
				imageScore = comparison.Confidence
				imageBest = &nearby[i]
			}
		}
	}

	// Either path fires the verdict; the higher confidence picks the link.
	switch {
	case textBest != nil && imageBest != nil:
		verdict.IsDuplicate = true
		if imageScore > textScore {
			verdict.DuplicateOf = imageBest.ID
			verdict.Confidence = imageScore
			verdict.Method = "image"
		} else {
			verdict.DuplicateOf = textBest.ID
			verdict.Confidence = textScore
			verdict.Method = "text"
		}
	case textBest != nil:
		verdict.IsDuplicate = true
		verdict.DuplicateOf = textBest.ID
		verdict.Confidence = textScore
		verdict.Method = "text"
	case imageBest != nil:
		verdict.IsDuplicate = true
		verdict.DuplicateOf = imageBest.ID
		verdict.Confidence = imageScore
		verdict.Method = "image"
	}
	return verdict
}
