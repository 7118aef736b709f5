package ocr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicConfidence_Blank(t *testing.T) {
	assert.Equal(t, 0.0, heuristicConfidence(""))
	assert.Equal(t, 0.0, heuristicConfidence("   \n\t  "))
}

func TestHeuristicConfidence_Range(t *testing.T) {
	inputs := []string{
		"a",
		"42",
		"Invoice #1001 Total: $250.00",
		strings.Repeat("lorem ipsum dolor sit amet ", 40),
		"@@@ ### $$$ %%% ^^^ &&&",
		"!!!",
	}
	for _, in := range inputs {
		c := heuristicConfidence(in)
		assert.GreaterOrEqual(t, c, 0.0, "input %q", in)
		assert.LessOrEqual(t, c, 1.0, "input %q", in)
	}
}

func TestHeuristicConfidence_Components(t *testing.T) {
	// letters only, few words: 0.5 + 0.1
	assert.InDelta(t, 0.6, heuristicConfidence("hello world"), 1e-9)

	// letters and digits: 0.5 + 0.1 + 0.1
	assert.InDelta(t, 0.7, heuristicConfidence("invoice 42"), 1e-9)

	// more than 10 words with letters and digits: + word bonus
	text := "invoice 42 from acme corp for services rendered in march of 2024"
	assert.InDelta(t, 0.8, heuristicConfidence(text), 1e-9)

	// long well-formed text earns both word bonuses but never exceeds 1
	long := strings.Repeat("line item 12 widgets at 3 dollars each ", 30)
	assert.InDelta(t, 0.9, heuristicConfidence(long), 1e-9)
}

func TestHeuristicConfidence_SymbolNoisePenalty(t *testing.T) {
	// mostly symbols: over 30% noise triggers the penalty
	noisy := "a1 @@@@####$$$$%%%%"
	clean := "a1 some regular text"
	assert.Less(t, heuristicConfidence(noisy), heuristicConfidence(clean))
}
