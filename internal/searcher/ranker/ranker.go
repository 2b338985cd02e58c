// Package ranker holds the tf-idf weighting and the bounded top-k selection
// used by ranked retrieval.
package ranker

import (
	"encoding/json"
	"math"
)

// DisplayPrecision is the number of decimal digits kept when a score is
// serialised. Internal comparisons always use the raw score.
const DisplayPrecision = 4

// ScoredDoc is a document and its accumulated relevance score.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

func (d ScoredDoc) MarshalJSON() ([]byte, error) {
	type plain ScoredDoc
	return json.Marshal(plain{DocID: d.DocID, Score: Round(d.Score)})
}

// Round rounds a score to DisplayPrecision digits.
func Round(score float64) float64 {
	scale := math.Pow10(DisplayPrecision)
	return math.Round(score*scale) / scale
}

// TfIdf returns (1 + log10 tf) * log10(n / df). It returns 0 when tf or df
// is not positive.
func TfIdf(tf, df, n int) float64 {
	if tf <= 0 || df <= 0 || n <= 0 {
		return 0
	}
	return (1 + math.Log10(float64(tf))) * math.Log10(float64(n)/float64(df))
}
