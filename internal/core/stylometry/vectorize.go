// Package stylometry builds per-user text profiles and groups users whose
// writing is similar enough to suggest a shared operator
//
// The metric is TF-IDF over word tokens with cosine similarity; grouping is
// union-find over above-threshold pairs, subject to an exclusion predicate
// supplied by the temporal co-presence analyzer
package stylometry

import "math"

// Vector is a sparse term-weight vector over the channel vocabulary
type Vector map[string]float64

// Vectorize builds one TF-IDF vector per user from tokenized corpora
// Users with no tokens are excluded from the result
//
// idf uses the smoothed form ln((1+N)/(1+df)) + 1 so terms shared by every
// user still carry weight; with the raw ln(N/df) form two users with
// near-identical text would collapse to zero vectors
func Vectorize(tokens map[string][]string) map[string]Vector {
	// document frequency per term
	df := make(map[string]int)
	counts := make(map[string]map[string]int, len(tokens))
	totals := make(map[string]int, len(tokens))

	for user, toks := range tokens {
		if len(toks) == 0 {
			continue
		}
		tf := make(map[string]int)
		for _, t := range toks {
			tf[t]++
		}
		counts[user] = tf
		totals[user] = len(toks)
		for term := range tf {
			df[term]++
		}
	}

	n := float64(len(counts))
	out := make(map[string]Vector, len(counts))
	for user, tf := range counts {
		v := make(Vector, len(tf))
		total := float64(totals[user])
		for term, c := range tf {
			idf := math.Log((1+n)/(1+float64(df[term]))) + 1
			v[term] = float64(c) / total * idf
		}
		out[user] = v
	}
	return out
}

// Cosine returns the cosine similarity of two sparse vectors, in [0, 1]
// for the non-negative weights produced by Vectorize
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// iterate the smaller map
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, av := range a {
		if bv, ok := b[term]; ok {
			dot += av * bv
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (normOf(a) * normOf(b))
}

func normOf(v Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
