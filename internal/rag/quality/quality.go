// Package quality contains the heuristic checks that decide whether a
// generated answer is acceptable to return. The checks guard against the
// failure modes of small autoregressive models: looping output, degenerate
// word repetition, and answers unsupported by their contexts.
package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/KOO-96/chatbot-study/internal/rag/schema"
)

// minRepeatLength is the minimum sentence length, in characters, that the
// adjacent-sentence repetition check considers.
const minRepeatLength = 20

// negativePhrases mark an answer as a refusal, i.e. a claim that the
// requested information is absent from the contexts.
var negativePhrases = []string{
	"없",
	"찾을 수 없",
	"포함되어 있지 않",
	"설명이 없다",
	"정보가 없다",
	"관련 정보가 없다",
}

// stopwords are Korean function words excluded from the answer/context
// overlap measurement.
var stopwords = map[string]struct{}{
	"제공": {}, "문서": {}, "에서": {}, "질문": {}, "에": {}, "대한": {},
	"정보": {}, "를": {}, "을": {}, "이": {}, "가": {}, "는": {}, "은": {},
	"의": {}, "와": {}, "과": {}, "도": {}, "로": {}, "으로": {}, "수": {},
	"있": {}, "없": {}, "것": {}, "등": {}, "및": {}, "또는": {}, "그리고": {},
}

// wordRegex extracts word tokens. \p{L}\p{N} keeps it unicode-aware so
// Korean text tokenizes the same way as Latin text.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// sentenceSepRegex matches a sentence terminator followed by whitespace.
var sentenceSepRegex = regexp.MustCompile(`[.!?]\s+`)

// Thresholds holds the tunable constants of the quality heuristics. They
// are calibrated against a particular embedding and generation model pair;
// treat them as configuration.
type Thresholds struct {
	// SentenceSimilarity is the shared-word ratio between two adjacent
	// sentences above which the text counts as repetitive.
	SentenceSimilarity float64
	// DuplicateRatio is the word-set Jaccard similarity above which a
	// sentence counts as a duplicate of an earlier one.
	DuplicateRatio float64
	// WordDominance is the share of all words a single word may account
	// for before the text counts as degenerate.
	WordDominance float64
	// ContextOverlap is the minimum ratio of the answer's meaningful words
	// that must appear in the contexts.
	ContextOverlap float64
}

// DefaultThresholds returns the tuned default constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SentenceSimilarity: 0.7,
		DuplicateRatio:     0.8,
		WordDominance:      0.3,
		ContextOverlap:     0.2,
	}
}

// Validator applies the quality heuristics. All methods are total functions
// over well-formed string input; they never fail on empty strings.
type Validator struct {
	t Thresholds
}

// NewValidator creates a Validator with the given thresholds.
func NewValidator(t Thresholds) *Validator {
	return &Validator{t: t}
}

// DetectRepetition reports whether text looks like degenerate generator
// output: two adjacent sentences sharing most of their words, or a single
// word dominating the text.
func (v *Validator) DetectRepetition(text string) bool {
	if text == "" || utf8.RuneCountInString(text) < minRepeatLength*2 {
		return false
	}

	sentences := sentenceSepRegex.Split(text, -1)
	for i := 0; i < len(sentences)-1; i++ {
		if utf8.RuneCountInString(sentences[i]) < minRepeatLength {
			continue
		}
		current := strings.TrimSpace(sentences[i])
		next := strings.TrimSpace(sentences[i+1])
		if current == next {
			return true
		}
		if current == "" || next == "" {
			continue
		}

		currentWords := wordSet(current)
		nextWords := wordSet(next)
		common := intersectionSize(currentWords, nextWords)
		total := len(currentWords)
		if len(nextWords) > total {
			total = len(nextWords)
		}
		if total > 0 && float64(common)/float64(total) > v.t.SentenceSimilarity {
			return true
		}
	}

	words := strings.Fields(text)
	if len(words) > 10 {
		counts := make(map[string]int, len(words))
		maxCount := 0
		for _, w := range words {
			counts[w]++
			if counts[w] > maxCount {
				maxCount = counts[w]
			}
		}
		if float64(maxCount) > float64(len(words))*v.t.WordDominance {
			return true
		}
	}

	return false
}

// CleanRepetitiveText removes near-duplicate sentences, keeping each
// sentence only if its word-set Jaccard similarity to every previously kept
// sentence stays below the duplicate threshold. Kept sentences are
// reassembled with their original trailing punctuation, and a truncated
// tail is normalized to end in a period.
func (v *Validator) CleanRepetitiveText(text string) string {
	if text == "" {
		return text
	}

	var kept []string
	var seen []map[string]struct{}
	for _, s := range splitSentences(text) {
		trimmed := strings.TrimSpace(s.text)
		if trimmed == "" {
			continue
		}

		words := wordSet(trimmed)
		duplicate := false
		for _, prev := range seen {
			if jaccard(words, prev) > v.t.DuplicateRatio {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		kept = append(kept, s.text, s.sep)
		seen = append(seen, words)
	}

	result := strings.TrimSpace(strings.Join(kept, ""))
	if result == "" {
		return result
	}

	// A missing terminator means the generator was cut off mid-sentence.
	if !isTerminator(lastRune(result)) {
		lastSentence := result
		if idx := strings.LastIndex(result, "."); idx >= 0 {
			lastSentence = result[idx+1:]
		}
		if utf8.RuneCountInString(strings.TrimSpace(lastSentence)) > 10 {
			result = strings.TrimRight(result, ".")
			result = strings.TrimRight(result, " \t\n")
			if result != "" && !isTerminator(lastRune(result)) {
				result += "."
			}
		}
	}

	return result
}

// ValidateAnswer decides whether an answer may be returned to the caller.
// When contexts are supplied it also requires the answer's meaningful words
// (stop words removed) to overlap the contexts' words by at least the
// configured ratio. A refusal is held to the same overlap bar: the refusal
// itself should still reference the topic.
func (v *Validator) ValidateAnswer(answer string, minLength, maxLength int, contexts []string) schema.QualityVerdict {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return schema.QualityVerdict{Reason: "answer is empty"}
	}

	length := utf8.RuneCountInString(trimmed)
	if length < minLength {
		return schema.QualityVerdict{Reason: fmt.Sprintf("answer is too short (minimum %d characters)", minLength)}
	}
	if length > maxLength {
		return schema.QualityVerdict{Reason: fmt.Sprintf("answer is too long (maximum %d characters)", maxLength)}
	}

	if v.DetectRepetition(trimmed) {
		return schema.QualityVerdict{Reason: "answer contains repetitive content"}
	}

	if len(contexts) > 0 {
		answerWords := meaningfulWords(strings.ToLower(trimmed))
		contextWords := meaningfulWords(strings.ToLower(strings.Join(contexts, " ")))

		if len(answerWords) > 0 {
			overlap := float64(intersectionSize(answerWords, contextWords)) / float64(len(answerWords))
			if overlap < v.t.ContextOverlap {
				if ContainsNegativePhrase(trimmed) {
					return schema.QualityVerdict{Reason: fmt.Sprintf(
						"answer claims information not found but has very low context overlap (overlap: %.2f)", overlap)}
				}
				return schema.QualityVerdict{Reason: fmt.Sprintf(
					"answer contains too many words not found in context (overlap: %.2f)", overlap)}
			}
		}
	}

	return schema.QualityVerdict{IsValid: true}
}

// PostProcessAnswer cleans repetitive content and, if the result exceeds
// maxLength, truncates at the last complete sentence boundary that fits.
func (v *Validator) PostProcessAnswer(answer string, maxLength int) string {
	if answer == "" {
		return answer
	}

	cleaned := v.CleanRepetitiveText(answer)
	if utf8.RuneCountInString(cleaned) <= maxLength {
		return cleaned
	}

	var kept []string
	currentLength := 0
	for _, s := range splitSentences(cleaned) {
		sentenceLength := utf8.RuneCountInString(s.text)
		if currentLength+sentenceLength > maxLength {
			break
		}
		kept = append(kept, s.text, s.sep)
		currentLength += sentenceLength
	}
	return strings.TrimSpace(strings.Join(kept, ""))
}

// ContainsNegativePhrase reports whether text contains one of the fixed
// "not found" phrases, i.e. whether it reads as a refusal.
func ContainsNegativePhrase(text string) bool {
	for _, phrase := range negativePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// ExtractWords returns the word tokens of text, unicode-aware.
func ExtractWords(text string) []string {
	return wordRegex.FindAllString(text, -1)
}

// sentencePart is one sentence together with the terminator-and-whitespace
// separator that followed it in the source text.
type sentencePart struct {
	text string
	sep  string
}

// splitSentences splits text into sentences, preserving each sentence's
// trailing separator so the text can be reassembled byte-for-byte.
func splitSentences(text string) []sentencePart {
	var parts []sentencePart
	last := 0
	for _, loc := range sentenceSepRegex.FindAllStringIndex(text, -1) {
		parts = append(parts, sentencePart{text: text[last:loc[0]], sep: text[loc[0]:loc[1]]})
		last = loc[1]
	}
	if last < len(text) {
		parts = append(parts, sentencePart{text: text[last:]})
	}
	return parts
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		set[w] = struct{}{}
	}
	return set
}

func meaningfulWords(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range ExtractWords(text) {
		if _, stop := stopwords[w]; !stop {
			set[w] = struct{}{}
		}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := intersectionSize(a, b)
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
