package product

import "strings"

const (
	// minTokenLen is the exclusive lower bound on token length for the
	// shared-token rule.
	minTokenLen = 3
	// maxSharedTokens caps how many shared tokens are ever required.
	maxSharedTokens = 3
)

// Normalize lowercases name and keeps only ASCII letters and digits, so
// "Nike Air-Max 270" becomes "nikeairmax270" and "Café" becomes "caf".
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens splits the normalized form of name on whitespace and keeps tokens
// longer than three characters. Normalization removes whitespace, so the
// result is either the whole normalized name or empty.
func Tokens(name string) []string {
	var out []string
	for _, t := range strings.Fields(Normalize(name)) {
		if len(t) > minTokenLen {
			out = append(out, t)
		}
	}
	return out
}

// Similar reports whether two listing names probably describe the same
// product. Names match when one normalized form contains the other, or when
// they share at least min(3, shorter token count) tokens.
//
// The heuristic trades precision for recall. A name that normalizes to three
// characters or fewer has no tokens and matches everything, and reordered
// words ("Galaxy Buds Samsung" vs "Samsung Galaxy Buds") do not match. It is
// symmetric in its arguments.
func Similar(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return sharesTokens(Tokens(a), Tokens(b))
}

func sharesTokens(ta, tb []string) bool {
	need := min(maxSharedTokens, len(ta), len(tb))
	set := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		set[t] = struct{}{}
	}
	common := 0
	for _, t := range ta {
		if _, ok := set[t]; ok {
			common++
		}
	}
	return common >= need
}
