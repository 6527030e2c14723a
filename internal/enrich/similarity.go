package enrich

import (
	"math"
	"strings"
)

// stopwords excluded from similarity tokens.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "for": true, "on": true, "with": true, "is": true,
	"are": true, "your": true, "our": true, "we": true, "you": true, "that": true,
	"this": true, "it": true, "as": true, "at": true, "by": true, "from": true,
}

// TextSimilarity computes cosine similarity between the token frequency
// vectors of two texts, in [0,1]. Empty inputs score 0.
func TextSimilarity(a, b string) float64 {
	va := tokenVector(a)
	vb := tokenVector(b)
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}

	var dot, na, nb float64
	for tok, ca := range va {
		if cb, ok := vb[tok]; ok {
			dot += float64(ca) * float64(cb)
		}
		na += float64(ca) * float64(ca)
	}
	for _, cb := range vb {
		nb += float64(cb) * float64(cb)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenVector(s string) map[string]int {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	v := make(map[string]int, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		v[f]++
	}
	return v
}
