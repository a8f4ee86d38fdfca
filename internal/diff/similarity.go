package diff

import (
	"math"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/audd/internal/ir"
)

// ComparatorVersion names the comparator set below. It moves with
// ir.ComparatorVersion whenever a comparator changes.
const ComparatorVersion = "audd-similarity/" + ir.ComparatorVersion

// Similarity scores how alike two values are, from 0 (different) to 1
// (identical):
//
//	string    1 - levenshtein(a, b) / max(len(a), len(b)), after NFC, in runes
//	numeric   1 - |a - b| / max(|a|, |b|), clamped to [0, 1]
//	boolean   exact
//	date      exact by instant: a calendar date equals a timestamp at its
//	          midnight UTC
//	object    canonical equality
//	array     canonical equality
//	null      1 against null, 0 against anything else
//
// Values of incompatible types score 0.
func Similarity(a, b ir.IRValue) float64 {
	ta, tb := ir.TypeOf(a), ir.TypeOf(b)
	switch {
	case ta == ir.TypeNull && tb == ir.TypeNull:
		return 1
	case ta == ir.TypeNull || tb == ir.TypeNull:
		return 0
	case ta.IsNumeric() && tb.IsNumeric():
		x, _ := ir.AsFloat(a)
		y, _ := ir.AsFloat(b)
		return numericSimilarity(x, y)
	case ta != tb:
		return 0
	}

	switch ta {
	case ir.TypeString:
		return stringSimilarity(string(a.(ir.IRString)), string(b.(ir.IRString)))
	case ir.TypeDate:
		if a.(ir.IRDate).Time().Equal(b.(ir.IRDate).Time()) {
			return 1
		}
		return 0
	default:
		if ir.Equal(a, b) {
			return 1
		}
		return 0
	}
}

func stringSimilarity(a, b string) float64 {
	a, b = norm.NFC.String(a), norm.NFC.String(b)
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.Distance(a, b, nil)
	return clamp(1 - float64(d)/float64(longest))
}

func numericSimilarity(a, b float64) float64 {
	if a == b {
		return 1
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return clamp(1 - math.Abs(a-b)/scale)
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
