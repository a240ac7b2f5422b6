package narrate

import (
	"strings"
	"unicode"
)

// wordMatcher maps words reported by the speech engine back onto tokens of
// the displayed sentence. Comparison is normalized (lowercase, diacritics
// and punctuation stripped). When the same normalized word appears several
// times in a sentence, the Nth report maps to the Nth matching token -
// engines are assumed to report boundaries left to right. A report that
// matches no token leaves the cursor where it was; if the engine's
// normalized text diverges from the display text (number expansion, SSML
// artifacts) highlighting simply skips those words.
type wordMatcher struct {
	norm []string
	seen map[string]int
}

func newWordMatcher(sentence string) *wordMatcher {
	tokens := strings.Fields(sentence)
	m := &wordMatcher{
		norm: make([]string, len(tokens)),
		seen: make(map[string]int),
	}
	for i, t := range tokens {
		m.norm[i] = normalizeWord(t)
	}
	return m
}

// match returns the token index for a reported word, or -1.
func (m *wordMatcher) match(reported string) int {
	norm := normalizeWord(reported)
	if norm == "" {
		return -1
	}
	nth := m.seen[norm]
	m.seen[norm] = nth + 1

	count := 0
	for i, t := range m.norm {
		if t != norm {
			continue
		}
		if count == nth {
			return i
		}
		count++
	}
	return -1
}

// normalizeWord lowercases, folds accented Latin letters to their base
// letter, and drops everything that is not a letter or digit.
func normalizeWord(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		r = foldAccent(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func foldAccent(r rune) rune {
	switch r {
	case 'á', 'à', 'â', 'ä', 'ã':
		return 'a'
	case 'é', 'è', 'ê', 'ë':
		return 'e'
	case 'í', 'ì', 'î', 'ï':
		return 'i'
	case 'ó', 'ò', 'ô', 'ö', 'õ':
		return 'o'
	case 'ú', 'ù', 'û', 'ü':
		return 'u'
	case 'ñ':
		return 'n'
	case 'ç':
		return 'c'
	}
	return r
}
