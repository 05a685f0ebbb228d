package scene

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
)

// Classification is the canonical identity of a scene description
type Classification struct {
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
	Hash     string   `json:"hash"`
}

// ExtractKeywords normalizes a description into a sorted, de-duplicated keyword set
func ExtractKeywords(description string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(description) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	seen := make(map[string]bool)
	keywords := make([]string, 0)
	for _, word := range strings.Fields(b.String()) {
		if len(word) <= 2 || stopWords[word] {
			continue
		}
		if canonical, ok := synonymIndex[word]; ok {
			word = canonical
		}
		if !seen[word] {
			seen[word] = true
			keywords = append(keywords, word)
		}
	}
	sort.Strings(keywords)
	return keywords
}

// CategoryOf picks the best matching category for a keyword set
func CategoryOf(keywords []string) string {
	best := GenericCategory
	bestScore := 0
	for _, c := range categories {
		score := 0
		for _, k := range keywords {
			for _, ck := range c.keywords {
				if k == ck {
					score++
					break
				}
			}
		}
		// strictly greater keeps the first declared category on ties
		if score > bestScore {
			best = c.name
			bestScore = score
		}
	}

	if best == GenericCategory {
		return best
	}
	for _, k := range keywords {
		if atmospheres[k] {
			return best + "_" + k
		}
	}
	return best
}

// HashCategory returns the cache key for a category
func HashCategory(category string) string {
	sum := md5.Sum([]byte(category))
	return hex.EncodeToString(sum[:])
}

// Classify derives keywords, category and hash for a description
func Classify(description string) Classification {
	keywords := ExtractKeywords(description)
	category := CategoryOf(keywords)
	return Classification{
		Keywords: keywords,
		Category: category,
		Hash:     HashCategory(category),
	}
}

// Hash is shorthand for Classify(description).Hash
func Hash(description string) string {
	return Classify(description).Hash
}
