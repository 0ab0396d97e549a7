package matching

import (
	"math"
	"sort"
)

// Cosine 计算余弦相似度，范围 [-1,1]。
// 维度不一致或任一向量范数为 0 时返回 0。
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ScoredChunk 分块及其与查询向量的相似度
type ScoredChunk struct {
	Chunk      EmbeddedChunk
	Similarity float64
}

// TopK 按相似度降序返回前 k 个分块，相同相似度保持输入顺序
func TopK(query []float64, candidates []EmbeddedChunk, k int) []ScoredChunk {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	scored := make([]ScoredChunk, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredChunk{Chunk: c, Similarity: Cosine(query, c.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// BestChunk 返回相似度严格大于 0 的最佳分块；没有则 ok 为 false
func BestChunk(query []float64, candidates []EmbeddedChunk) (best ScoredChunk, ok bool) {
	for _, c := range candidates {
		if sim := Cosine(query, c.Vector); sim > best.Similarity {
			best = ScoredChunk{Chunk: c, Similarity: sim}
			ok = true
		}
	}
	return best, ok
}

// Normalize 原地归一化为单位向量，零向量保持不变
func Normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] /= norm
	}
	return v
}
