// Package analyzer provides language-aware tokenization and keyword
// extraction for mixed CJK and ASCII construction text.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-ego/gse"

	"buildrag/internal/config"
)

// Mode selects the segmentation strategy.
type Mode string

const (
	// ModeDefault segments into the most likely word sequence.
	ModeDefault Mode = "default"
	// ModeSearch additionally emits overlapping subwords for recall.
	ModeSearch Mode = "search"
	// ModeAll emits every dictionary word found in the text.
	ModeAll Mode = "all"
)

// Method selects the keyword extraction algorithm.
type Method string

const (
	MethodTFIDF    Method = "tfidf"
	MethodTextRank Method = "textrank"
)

var (
	urlRe       = regexp.MustCompile(`https?://[^\s]+|www\.[^\s]+`)
	emailRe     = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	zeroWidthRe = regexp.MustCompile("[\u200B\u200C\u200D\uFEFF]")
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Analyzer tokenizes and extracts keywords. It is configured once at
// construction; the segmenter dictionary is not reloadable.
type Analyzer struct {
	seg       gse.Segmenter
	stopwords map[string]struct{}
}

// New builds an analyzer from config, loading the default dictionary plus an
// optional user dictionary.
func New(cfg *config.AnalyzerConfig) (*Analyzer, error) {
	a := &Analyzer{stopwords: defaultStopwords()}

	var err error
	if cfg != nil && cfg.UserDictPath != "" {
		err = a.seg.LoadDict(cfg.UserDictPath)
	} else {
		err = a.seg.LoadDict()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load segmenter dictionary: %w", err)
	}

	if cfg != nil {
		for _, w := range cfg.ExtraStopwords {
			a.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
	return a, nil
}

// Tokenize normalizes text, segments it in the given mode and filters out
// stopwords, bare single characters and punctuation-only tokens.
func (a *Analyzer) Tokenize(text string, mode Mode) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var raw []string
	switch mode {
	case ModeSearch:
		raw = a.seg.CutSearch(normalized, true)
	case ModeAll:
		raw = a.seg.CutAll(normalized)
	default:
		raw = a.seg.Cut(normalized, true)
	}

	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, stop := a.stopwords[tok]; stop {
			continue
		}
		if !keepToken(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Normalize applies the fixed pre-tokenization pipeline: lowercase, strip
// URLs/emails/zero-width characters, full-width to half-width punctuation,
// collapse whitespace.
func Normalize(text string) string {
	s := strings.ToLower(text)
	s = urlRe.ReplaceAllString(s, " ")
	s = emailRe.ReplaceAllString(s, " ")
	s = zeroWidthRe.ReplaceAllString(s, "")
	s = strings.Map(halfWidthPunct, s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// halfWidthPunct folds full-width punctuation into its ASCII form. Ideographic
// space becomes a regular space; CJK text itself is untouched.
func halfWidthPunct(r rune) rune {
	if r == 0x3000 {
		return ' '
	}
	if r >= 0xFF01 && r <= 0xFF5E {
		half := r - 0xFEE0
		if unicode.IsPunct(half) || unicode.IsSymbol(half) {
			return half
		}
	}
	switch r {
	case '，':
		return ','
	case '。':
		return '.'
	case '、':
		return ','
	}
	return r
}

// keepToken drops single characters unless CJK or an ASCII letter, and drops
// pure-punctuation tokens.
func keepToken(tok string) bool {
	runes := []rune(tok)
	if len(runes) == 1 {
		r := runes[0]
		if unicode.Is(unicode.Han, r) {
			return true
		}
		if r < 128 && unicode.IsLetter(r) {
			return true
		}
		if unicode.IsDigit(r) {
			return false
		}
		return false
	}
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
