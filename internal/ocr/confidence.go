package ocr

import (
	"strings"
	"unicode"
)

// heuristicConfidence scores OCR output on text shape alone, no ML.
// Base 0.5; word count, letters and digits push the score up; a high ratio of
// symbol noise pulls it down. Blank text is always exactly 0.
func heuristicConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0.0
	}

	score := 0.5

	words := len(strings.Fields(text))
	if words > 10 {
		score += 0.1
	}
	if words > 50 {
		score += 0.1
	}

	var hasLetter, hasDigit bool
	var total, noise int
	for _, r := range text {
		total++
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsSpace(r):
			noise++
		}
	}
	if hasLetter {
		score += 0.1
	}
	if hasDigit {
		score += 0.1
	}
	if total > 0 && float64(noise)/float64(total) > 0.3 {
		score -= 0.2
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
