package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// RankByQuery scores each document against query using TF-IDF weighted
// cosine similarity over the documents themselves. IDF weights are shifted by
// one so terms shared by every document still count. Scores align with docs.
func RankByQuery(query string, docs []string) []float64 {
	corpus := NewCorpus()
	prints := make([]*Fingerprint, len(docs))
	for i, doc := range docs {
		prints[i] = NewFingerprint(doc)
		corpus.Add(prints[i])
	}
	idf := corpus.IDF()
	for term := range idf {
		idf[term]++
	}
	q := NewFingerprint(query).WithIDF(idf)
	scores := make([]float64, len(docs))
	for i, fp := range prints {
		scores[i] = CosineSimilarity(q, fp.WithIDF(idf))
	}
	return scores
}
