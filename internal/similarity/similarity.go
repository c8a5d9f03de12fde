// Package similarity provides the pure scoring primitives used by duplicate
// detection: great-circle distance and text-token Jaccard similarity.
package similarity

import (
	"math"
	"strings"
)

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Tokenize lowercases, strips punctuation and drops tokens shorter than
// three characters. Short tokens carry no signal for duplicate scoring.
func Tokenize(text string) map[string]bool {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(b.String()) {
		if len(t) >= 3 {
			tokens[t] = true
		}
	}
	return tokens
}

// Jaccard returns |A∩B| / |A∪B| over the token sets of the two texts.
// Two empty token sets score zero, not one.
func Jaccard(a, b string) float64 {
	setA := Tokenize(a)
	setB := Tokenize(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
