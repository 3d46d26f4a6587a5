package usecase

import (
	"math"
	"regexp"
	"strings"
)

// French procurement text keeps apostrophes inside tokens (l'offre, d'appui).
var tokenRx = regexp.MustCompile(`[A-Za-zÀ-ÿ0-9']{2,}`)

func tokenize(text string) []string {
	return tokenRx.FindAllString(strings.ToLower(text), -1)
}

// bm25Okapi scores a query against a small in-memory corpus. Negative IDF
// values are floored to epsilon times the mean IDF so very common terms keep
// a small positive weight instead of penalizing documents.
type bm25Okapi struct {
	k1      float64
	b       float64
	epsilon float64

	avgDocLen float64
	docLens   []int
	termFreqs []map[string]int
	idf       map[string]float64
}

func newBM25Okapi(corpus [][]string) *bm25Okapi {
	m := &bm25Okapi{
		k1:      1.5,
		b:       0.75,
		epsilon: 0.25,
		idf:     make(map[string]float64),
	}

	docFreq := make(map[string]int)
	totalLen := 0
	for _, doc := range corpus {
		freqs := make(map[string]int, len(doc))
		for _, term := range doc {
			freqs[term]++
		}
		for term := range freqs {
			docFreq[term]++
		}
		m.termFreqs = append(m.termFreqs, freqs)
		m.docLens = append(m.docLens, len(doc))
		totalLen += len(doc)
	}
	if len(corpus) > 0 {
		m.avgDocLen = float64(totalLen) / float64(len(corpus))
	}

	n := float64(len(corpus))
	idfSum := 0.0
	var negative []string
	for term, freq := range docFreq {
		idf := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		m.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	if len(docFreq) > 0 {
		floor := m.epsilon * idfSum / float64(len(docFreq))
		for _, term := range negative {
			m.idf[term] = floor
		}
	}
	return m
}

func (m *bm25Okapi) Scores(query []string) []float64 {
	scores := make([]float64, len(m.termFreqs))
	for i, freqs := range m.termFreqs {
		norm := m.k1 * (1 - m.b + m.b*float64(m.docLens[i])/math.Max(m.avgDocLen, 1))
		for _, term := range query {
			f := float64(freqs[term])
			if f == 0 {
				continue
			}
			scores[i] += m.idf[term] * (f * (m.k1 + 1)) / (f + norm)
		}
	}
	return scores
}

// minMaxNormalize maps scores onto [0,1]. A flat distribution collapses to
// 0.0 for every entry: a signal that cannot discriminate contributes nothing
// to the fused score.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	if hi-lo < 1e-9 {
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}
