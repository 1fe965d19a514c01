// Package suspicion scores how strongly a sequence's occurrences concentrate
// in the erroneous corpus.
package suspicion

import "math"

// DefaultAlpha is the decay rate of the expansion factor.
const DefaultAlpha = 0.5

// Score returns err/(ok+err), or 0 when the sequence was never observed.
func Score(okCount, errCount int) float64 {
	if okCount+errCount == 0 {
		return 0.0
	}
	return float64(errCount) / float64(okCount+errCount)
}

// ExpansionFactor returns 1 + exp(-alpha*errCount): the multiplier a
// candidate's suspicion must beat the current suspicion by. It is 2 with no
// error evidence and tends to 1 as evidence grows. An alpha of zero disables
// the factor.
func ExpansionFactor(alpha float64, errCount int) float64 {
	if alpha == 0 {
		return 1.0
	}
	return 1.0 + math.Exp(-alpha*float64(errCount))
}
