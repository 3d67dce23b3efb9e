package scoring

import (
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
)

// Stop words longer than the three-character floor that the length filter
// already removes, plus boilerplate that appears in nearly every
// research-paper extract and carries no signal.
var stopWords = map[string]bool{
	"that": true, "this": true, "these": true, "those": true,
	"with": true, "from": true, "have": true, "been": true,
	"were": true, "their": true, "there": true, "where": true,
	"which": true, "would": true, "could": true, "should": true,
	"about": true, "while": true, "when": true, "then": true,
	"them": true, "they": true, "than": true, "such": true,
	"also": true, "very": true, "each": true, "other": true,
	"others": true, "both": true, "many": true, "much": true,
	"more": true, "most": true, "some": true, "only": true,
	"into": true, "onto": true, "upon": true,
	"what": true, "will": true, "does": true, "used": true,
	"uses": true, "using": true, "based": true, "between": true,
	"through": true, "during": true, "under": true, "over": true,
	"paper": true, "study": true, "studies": true, "research": true,
	"authors": true, "article": true, "findings": true, "literature": true,
}

// tokenize lowercases and splits text into word tokens via prose. Results
// are insensitive to case and whitespace of the input.
func tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return fallbackTokenize(text)
	}

	tokens := doc.Tokens()
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		word := strings.ToLower(tok.Text)
		if hasLetter(word) {
			out = append(out, word)
		}
	}
	return out
}

func fallbackTokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if hasLetter(f) {
			out = append(out, f)
		}
	}
	return out
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// contentTokens filters tokens down to stop-word-free words longer than
// three characters, preserving order for n-gram construction.
func contentTokens(text string) []string {
	tokens := tokenize(text)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 3 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for item := range a {
		if _, ok := b[item]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// keywordSimilarity is the Jaccard similarity of the content-word sets of
// two text spans.
func keywordSimilarity(a, b string) float64 {
	return jaccard(toSet(contentTokens(a)), toSet(contentTokens(b)))
}

func ngramSet(tokens []string, n int) map[string]struct{} {
	set := make(map[string]struct{})
	for i := 0; i+n <= len(tokens); i++ {
		set[strings.Join(tokens[i:i+n], " ")] = struct{}{}
	}
	return set
}

// lexicalSimilarity approximates semantic closeness without a model: a
// weighted blend of bigram and trigram overlap over content words.
func lexicalSimilarity(a, b string) float64 {
	tokensA := contentTokens(a)
	tokensB := contentTokens(b)

	bigram := jaccard(ngramSet(tokensA, 2), ngramSet(tokensB, 2))
	trigram := jaccard(ngramSet(tokensA, 3), ngramSet(tokensB, 3))

	return 0.6*bigram + 0.4*trigram
}
