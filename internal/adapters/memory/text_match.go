package memory

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

func tokenize(s string) []string {
	return strings.FieldsFunc(folder.String(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// fuzziness допустимое расстояние правки по длине терма: 0-2 -> 0, 3-5 -> 1, дальше 2
func fuzziness(term string) int {
	n := len([]rune(term))
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	}
	return 2
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func termMatches(term, token string, fuzzy bool) bool {
	if token == term {
		return true
	}
	if !fuzzy {
		return false
	}
	return levenshtein(term, token) <= fuzziness(term)
}

// textField поле для полнотекстового поиска с весом
type textField struct {
	name   string
	text   string
	weight float64
}

// matchKeyword каждый терм запроса должен найтись хотя бы в одном поле.
// Возвращает оценку релевантности и найденные токены по полям.
func matchKeyword(keyword string, fuzzy bool, fields []textField) (float64, map[string][]string, bool) {
	terms := tokenize(keyword)
	if len(terms) == 0 {
		return 0, nil, true
	}

	tokens := make([][]string, len(fields))
	for i, f := range fields {
		tokens[i] = tokenize(f.text)
	}

	var score float64
	hits := map[string][]string{}
	for _, term := range terms {
		found := false
		for i, f := range fields {
			for _, tok := range tokens[i] {
				if termMatches(term, tok, fuzzy) {
					found = true
					score += f.weight
					hits[f.name] = appendUnique(hits[f.name], tok)
				}
			}
		}
		if !found {
			return 0, nil, false
		}
	}
	return score, hits, true
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// highlight оборачивает совпавшие слова текста в <em>
func highlight(text string, matched []string) string {
	if len(matched) == 0 {
		return ""
	}
	set := make(map[string]struct{}, len(matched))
	for _, m := range matched {
		set[m] = struct{}{}
	}

	var b strings.Builder
	word := []rune{}
	flush := func() {
		if len(word) == 0 {
			return
		}
		w := string(word)
		if _, ok := set[folder.String(w)]; ok {
			b.WriteString("<em>" + w + "</em>")
		} else {
			b.WriteString(w)
		}
		word = word[:0]
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word = append(word, r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return b.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
