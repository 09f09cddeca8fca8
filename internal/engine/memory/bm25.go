package memory

import "math"

const (
	k1 = 1.2
	b  = 0.75
)

// rankParams are the collection statistics of one field.
type rankParams struct {
	TotalDocs    int
	AvgDocLength float64
}

// bm25 scores a term occurring termFreq times in a field of docLength terms,
// where docFreq documents contain the term.
func bm25(termFreq float64, docFreq int, docLength int, p rankParams) float64 {
	return computeIDF(p.TotalDocs, docFreq) * computeTFNorm(termFreq, float64(docLength), p.AvgDocLength)
}

func computeIDF(totalDocs int, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return termFreq / denominator
}
