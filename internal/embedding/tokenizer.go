package embedding

import (
	"strings"
	"unicode"
)

const (
	clsTokenID = 101
	sepTokenID = 102
	vocabSize  = 30000
	// firstWordID keeps hashed word IDs clear of BERT's special tokens.
	firstWordID = 1000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer lowercases text, splits it on anything that is not a letter or
// digit and maps each word to a hashed token ID. Output is padded to maxTokens.
type SimpleTokenizer struct{}

// Tokenize returns [CLS] words... [SEP] followed by padding. Words beyond
// maxTokens-2 are dropped.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1

	pos := 1
	for _, word := range SplitWords(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(firstWordID + HashString(word)%(vocabSize-firstWordID))
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepTokenID
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text into runs of letters and digits.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash for use as a simple token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 {
		return 0
	}
	return h
}
