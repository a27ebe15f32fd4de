// Package textkit provides the deterministic text normalizer and tokenizer
// feeding the stylometry engine
//
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization
// 3 Case folding
// 4 Remove zero-width and combining marks
// 5 Width fold fullwidth to ASCII
// 6 Collapse whitespace to single spaces and trim
package textkit

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalizer is concurrency safe when used with the pool below
type Normalizer struct{}

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),                       // unicode case folding
			runes.Remove(runes.In(unicode.Mn)), // strip combining marks
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			width.Fold,                         // map fullwidth forms to ASCII
		)
	},
}

// New constructs a Normalizer
func New() *Normalizer { return &Normalizer{} }

// Normalize returns the normalized form of s following the pipeline above
func (n *Normalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	// 1 repair UTF-8 drop invalid bytes
	s = strings.ToValidUTF8(s, "")

	// 2-5 transform via pooled chain then reset and return it
	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		ns = s
	}

	// 6 collapse whitespace
	return strings.Join(strings.Fields(ns), " ")
}

// minTokenLen drops particles too short to carry authorship signal
const minTokenLen = 3

var wordRe = regexp.MustCompile(`[a-z']+`)

// Tokenize normalizes s and returns its word tokens of minTokenLen or longer
func (n *Normalizer) Tokenize(s string) []string {
	ns := n.Normalize(s)
	if ns == "" {
		return nil
	}
	var out []string
	for _, w := range wordRe.FindAllString(ns, -1) {
		w = strings.Trim(w, "'")
		if len(w) >= minTokenLen {
			out = append(out, w)
		}
	}
	return out
}
