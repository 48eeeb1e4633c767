// Package summarize produces short extractive synopses of document text.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ErrSummarizationFailed is returned when no synopsis can be produced.
var ErrSummarizationFailed = errors.New("summarization failed")

const (
	// DefaultRatio is the share of sentences kept in a synopsis.
	DefaultRatio = 0.2
	// DefaultMaxSentences caps the synopsis of very long documents.
	DefaultMaxSentences = 10
)

var (
	sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// FrequencySummarizer keeps the sentences whose non-stopword terms occur most
// often in the document, in their original order.
type FrequencySummarizer struct {
	ratio        float64
	maxSentences int
	stopwords    map[string]struct{}
}

// NewFrequencySummarizer creates a summarizer keeping ratio of the sentences,
// at least one and at most maxSentences. Out-of-range values fall back to
// DefaultRatio and DefaultMaxSentences.
func NewFrequencySummarizer(ratio float64, maxSentences int) *FrequencySummarizer {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultRatio
	}
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &FrequencySummarizer{
		ratio:        ratio,
		maxSentences: maxSentences,
		stopwords:    defaultStopwords(),
	}
}

// Summarize returns the synopsis of text. Blank text has an empty synopsis.
func (s *FrequencySummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarizationFailed, err)
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", nil
	}
	if len(sentences) == 1 {
		return sentences[0], nil
	}

	tokenized := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokenized[i] = s.tokens(sent)
		for _, tok := range tokenized[i] {
			if _, ok := s.stopwords[tok]; !ok {
				freq[tok]++
			}
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, toks := range tokenized {
		var score float64
		for _, tok := range toks {
			score += freq[tok]
		}
		// Long sentences would otherwise always win.
		if len(toks) > 0 {
			score /= math.Sqrt(float64(len(toks)))
		}
		scores[i] = scored{idx: i, score: score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	keep := s.keepCount(len(sentences))
	selected := make([]int, keep)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, keep)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

func (s *FrequencySummarizer) keepCount(n int) int {
	keep := int(math.Ceil(s.ratio * float64(n)))
	if keep < 1 {
		keep = 1
	}
	if keep > s.maxSentences {
		keep = s.maxSentences
	}
	if keep > n {
		keep = n
	}
	return keep
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func splitSentences(text string) []string {
	var out []string
	for _, m := range sentencePattern.FindAllString(text, -1) {
		if sent := strings.Join(strings.Fields(m), " "); sent != "" && tokenPattern.MatchString(sent) {
			out = append(out, sent)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into",
		"about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "should", "now", "we", "you", "he", "she", "they",
		"i", "not", "no", "do", "does", "did", "has", "have", "had",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
