package analyzer

import "math"

// Confidence Combination
//
// A /compare result carries several partially-correlated signals: the raw
// MinHash Jaccard estimate, the identical-rule overlap ratio, and the
// depth-weighted structural score. Averaging them treats every signal as
// independent, which overstates confidence when two signals are really
// measuring the same underlying copy (an identical CSS rule set and a high
// structural score both follow from literally reusing the same template
// file). Converting each signal to a log-likelihood ratio and discounting
// ratios that share a dependency group before summing avoids that
// double-count, the same technique this engine has always used to combine
// correlated evidence.

// DependencyGroup tags which signals are likely to co-occur for the same
// underlying reason, so their combined contribution can be discounted.
type DependencyGroup int

const (
	DepGroupNone DependencyGroup = iota
	DepGroupMarkupReuse                 // structural score and identical rules both flow from reusing the same file
)

// Signal is one piece of evidence going into the combiner.
type Signal struct {
	Probability float64 // in [0,1]; caller's estimate that this signal indicates copying
	Group       DependencyGroup
}

// ProbToLLR converts a probability into a log-likelihood ratio in favor of
// the "this is a copy" hypothesis. Probabilities at the boundary are
// clamped rather than producing +/-Inf, since a combined score of infinity
// is not a useful signal to return from an API.
func ProbToLLR(probability float64) float64 {
	switch {
	case probability >= 1.0:
		return 12.0
	case probability <= 0.0:
		return -12.0
	default:
		return math.Log10(probability / (1.0 - probability))
	}
}

// llrToProb is ProbToLLR's inverse, used to turn the combined LLR total
// back into a [0,1] confidence the API can return.
func llrToProb(llr float64) float64 {
	odds := math.Pow(10, llr)
	return odds / (1 + odds)
}

// CombineSignals sums each signal's LLR, halving the contribution of every
// signal beyond the first within a shared dependency group (other than
// DepGroupNone, which is never discounted since those signals are assumed
// independent), then converts the total back to a [0,1] confidence.
func CombineSignals(signals []Signal) float64 {
	seenInGroup := make(map[DependencyGroup]int)
	total := 0.0

	for _, s := range signals {
		llr := ProbToLLR(s.Probability)
		if s.Group != DepGroupNone {
			occurrence := seenInGroup[s.Group]
			seenInGroup[s.Group] = occurrence + 1
			for i := 0; i < occurrence; i++ {
				llr /= 2
			}
		}
		total += llr
	}

	return llrToProb(total)
}
