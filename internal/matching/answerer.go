package matching

import "sort"

const (
	// DefaultAskK ask 默认返回条数
	DefaultAskK = 5
	// DefaultSearchLimit search 默认分页大小
	DefaultSearchLimit = 10
	// SnippetLength 摘要截取长度（rune）
	SnippetLength = 200
)

// ChunkEvidence ask 结果中的一条分块证据
type ChunkEvidence struct {
	Text        string `json:"text"`
	Similarity  int    `json:"similarity"`
	StartOffset int    `json:"startIndex"`
	EndOffset   int    `json:"endIndex"`
}

// AskResult 某份简历对查询的聚合结果
type AskResult struct {
	ResumeID      string          `json:"resumeId"`
	ResumeName    string          `json:"resumeName"`
	CandidateName string          `json:"candidateName"`
	Score         int             `json:"score"`
	Evidence      []ChunkEvidence `json:"evidence"`
}

// SearchHit search 的单条结果，只取最佳分块
type SearchHit struct {
	ResumeID      string   `json:"resumeId"`
	ResumeName    string   `json:"resumeName"`
	CandidateName string   `json:"candidateName"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Skills        []string `json:"skills"`
	Experience    int      `json:"experience"`
	Score         int      `json:"score"`
	Snippet       string   `json:"snippet"`
	MatchType     string   `json:"matchType"`
}

// Ask 对每份简历取与查询最相近的 k 个分块，分数为这 k 个相似度的平均值。
// 结果按分数降序取前 k 份，totalFound 为截断前的数量。
func Ask(query []float64, resumes []Document, k int) (results []AskResult, totalFound int) {
	if k <= 0 {
		k = DefaultAskK
	}
	results = make([]AskResult, 0, len(resumes))
	for _, r := range resumes {
		top := TopK(query, r.Chunks, k)
		if len(top) == 0 {
			continue
		}
		var sum float64
		evidence := make([]ChunkEvidence, len(top))
		for i, sc := range top {
			sum += sc.Similarity
			evidence[i] = ChunkEvidence{
				Text:        sc.Chunk.Text,
				Similarity:  ToPercent(sc.Similarity),
				StartOffset: sc.Chunk.StartOffset,
				EndOffset:   sc.Chunk.EndOffset,
			}
		}
		results = append(results, AskResult{
			ResumeID:      r.ID,
			ResumeName:    r.Title,
			CandidateName: r.Metadata.Name,
			Score:         ToPercent(sum / float64(len(top))),
			Evidence:      evidence,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	totalFound = len(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, totalFound
}

// Search 对每份简历只取单个最佳分块，分数为 round(最佳相似度×100)，低于 minScore 的丢弃。
// 分页由调用方在简历枚举上完成。
func Search(query []float64, resumes []Document, minScore int) []SearchHit {
	hits := make([]SearchHit, 0, len(resumes))
	for _, r := range resumes {
		best, ok := BestChunk(query, r.Chunks)
		score := ToPercent(best.Similarity)
		if score < minScore {
			continue
		}
		snippet := ""
		if ok {
			snippet = Snippet(best.Chunk.Text, SnippetLength)
		}
		skills := r.Metadata.Skills
		if skills == nil {
			skills = []string{}
		}
		hits = append(hits, SearchHit{
			ResumeID:      r.ID,
			ResumeName:    r.Title,
			CandidateName: r.Metadata.Name,
			Email:         r.Metadata.Email,
			Phone:         r.Metadata.Phone,
			Skills:        skills,
			Experience:    r.Metadata.Experience,
			Score:         score,
			Snippet:       snippet,
			MatchType:     "semantic",
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits
}

// Snippet 截取前 n 个字符并追加省略号
func Snippet(text string, n int) string {
	rs := []rune(text)
	if len(rs) > n {
		rs = rs[:n]
	}
	return string(rs) + "..."
}
