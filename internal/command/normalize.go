package command

import (
	"strconv"
	"strings"
)

// fillerWords are dropped during normalization. They carry no grammatical
// role in any pattern and recognizers insert them inconsistently.
var fillerWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "some": {}, "please": {},
}

// diacriticFolds maps common accented Latin runes to their base letter.
// Speech recognizers localized for European languages emit these in
// otherwise-English command vocabulary.
var diacriticFolds = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n', 'ý': 'y',
}

// FoldToken lowercases a token, folds diacritics, and strips surrounding
// punctuation. It is the shared token canonicalization used by the compiler
// and by retry-similarity comparison, so both see the same word identity.
func FoldToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.Trim(token, ".,!?;:\"'")
	return strings.Map(func(r rune) rune {
		if folded, ok := diacriticFolds[r]; ok {
			return folded
		}
		return r
	}, token)
}

// Normalize canonicalizes a raw token sequence for grammar matching:
// case/diacritic folding, punctuation stripping, filler removal, number
// words to digits, and unit/target synonym folding. The input is not
// modified.
func Normalize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = FoldToken(t)
		if t == "" {
			continue
		}
		if _, filler := fillerWords[t]; filler {
			continue
		}
		if n, ok := numberWords[t]; ok {
			out = append(out, strconv.Itoa(n))
			continue
		}
		if u, ok := unitSynonyms[t]; ok {
			out = append(out, u)
			continue
		}
		if s, ok := targetSynonyms[t]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, t)
	}
	return out
}
