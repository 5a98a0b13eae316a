package analyzer

import (
	"math"
	"sort"
	"strings"
)

// ExtractKeywords returns the topK keywords of text ranked by the given
// method. Sentence boundaries act as the document boundary for tf-idf.
func (a *Analyzer) ExtractKeywords(text string, topK int, method Method) []string {
	if topK <= 0 {
		return nil
	}
	switch method {
	case MethodTextRank:
		return a.textRank(text, topK)
	default:
		return a.tfidf(text, topK)
	}
}

var sentenceSplitter = strings.NewReplacer("。", "\n", "！", "\n", "？", "\n", ".", "\n", "!", "\n", "?", "\n", ";", "\n", "；", "\n")

// tfidf scores tokens by term frequency weighted with inverse sentence
// frequency, so terms concentrated in few sentences outrank ubiquitous ones.
func (a *Analyzer) tfidf(text string, topK int) []string {
	sentences := strings.Split(sentenceSplitter.Replace(text), "\n")

	tf := make(map[string]int)
	sf := make(map[string]int)
	total := 0
	nSentences := 0
	for _, sentence := range sentences {
		tokens := a.Tokenize(sentence, ModeDefault)
		if len(tokens) == 0 {
			continue
		}
		nSentences++
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
			total++
			if _, ok := seen[tok]; !ok {
				sf[tok]++
				seen[tok] = struct{}{}
			}
		}
	}
	if total == 0 {
		return nil
	}

	ranked := make([]scoredToken, 0, len(tf))
	for tok, freq := range tf {
		idf := math.Log(float64(nSentences+1) / float64(sf[tok]+1))
		ranked = append(ranked, scoredToken{tok, float64(freq) / float64(total) * (idf + 1)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].token < ranked[j].token
	})

	return topTokens(ranked, topK)
}

const (
	textRankWindow     = 5
	textRankDamping    = 0.85
	textRankIterations = 10
)

// textRank builds a co-occurrence graph over a sliding window and runs the
// PageRank iteration on it.
func (a *Analyzer) textRank(text string, topK int) []string {
	tokens := a.Tokenize(text, ModeDefault)
	if len(tokens) == 0 {
		return nil
	}

	edges := make(map[string]map[string]float64)
	addEdge := func(u, v string) {
		if u == v {
			return
		}
		if edges[u] == nil {
			edges[u] = make(map[string]float64)
		}
		edges[u][v]++
	}
	for i, tok := range tokens {
		for j := i + 1; j < len(tokens) && j < i+textRankWindow; j++ {
			addEdge(tok, tokens[j])
			addEdge(tokens[j], tok)
		}
	}

	rank := make(map[string]float64, len(edges))
	outWeight := make(map[string]float64, len(edges))
	for node, nbrs := range edges {
		rank[node] = 1.0
		for _, w := range nbrs {
			outWeight[node] += w
		}
	}

	for iter := 0; iter < textRankIterations; iter++ {
		next := make(map[string]float64, len(rank))
		for node := range rank {
			sum := 0.0
			for other, nbrs := range edges {
				if w, ok := nbrs[node]; ok && outWeight[other] > 0 {
					sum += w / outWeight[other] * rank[other]
				}
			}
			next[node] = (1 - textRankDamping) + textRankDamping*sum
		}
		rank = next
	}

	ranked := make([]scoredToken, 0, len(rank))
	for tok, score := range rank {
		ranked = append(ranked, scoredToken{tok, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].token < ranked[j].token
	})

	return topTokens(ranked, topK)
}

type scoredToken struct {
	token string
	score float64
}

func topTokens(ranked []scoredToken, topK int) []string {
	if topK > len(ranked) {
		topK = len(ranked)
	}
	out := make([]string, topK)
	for i := 0; i < topK; i++ {
		out[i] = ranked[i].token
	}
	return out
}
