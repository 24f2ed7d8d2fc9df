package services

import (
	"math"
	"regexp"
	"strings"
)

var (
	wordPattern     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+(?:[.,]\p{N}+)*`)
	sentencePattern = regexp.MustCompile(`(?:[^.!?\n]|[.!?][^\s.!?])+(?:[.!?]+|\n|$)`)
	stopwords       = defaultStopwords()
)

// tokens lowercases text and returns its word tokens.
func tokens(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// contentTokens drops stopwords.
func contentTokens(text string) []string {
	raw := tokens(text)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func tokenSet(text string) map[string]struct{} {
	toks := contentTokens(text)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// sentences splits text on terminal punctuation and line breaks.
func sentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// overlapScore is the Ochiai coefficient |A∩B| / sqrt(|A||B|) between the
// query tokens and the distinct content tokens of text.
func overlapScore(query map[string]struct{}, text string) float64 {
	if len(query) == 0 {
		return 0
	}
	seen := tokenSet(text)
	if len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := query[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(query))*float64(len(seen)))
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "when", "where", "why", "how", "do", "does", "did", "i", "me", "my", "you", "your", "we", "our", "they", "their", "he", "she", "his", "her", "there", "here", "please", "tell", "explain", "describe", "detail", "details", "detailed", "more", "document",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
