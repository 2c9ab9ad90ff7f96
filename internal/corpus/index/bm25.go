package index

import "math"

const (
	k1 = 1.2
	b  = 0.75
)

// computeIDF uses the +1 smoothed form so common terms never go negative and
// a term present in every chunk still scores slightly above zero.
func computeIDF(totalChunks int, docFreq int) float64 {
	numerator := float64(totalChunks) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, chunkLength float64, avgChunkLength float64) float64 {
	if avgChunkLength == 0 {
		return 0
	}
	lengthRatio := chunkLength / avgChunkLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
