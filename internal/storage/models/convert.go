package models

import (
	"fmt"
	"time"

	"github.com/12222526/Rag-Resume/internal/matching"
)

// ToDocument 将简历行及其分块还原为匹配用的文档
func (r *Resume) ToDocument() (matching.Document, error) {
	doc := matching.Document{
		ID:    r.ResumeID,
		Title: r.OriginalName,
		Text:  r.ParsedText,
	}
	if err := FromJSON(r.MetadataJSON, &doc.Metadata); err != nil {
		return doc, fmt.Errorf("解析简历 %s 元数据失败: %w", r.ResumeID, err)
	}
	chunks, err := embeddedFromRows(len(r.Chunks), func(i int) (int, string, int, int, []byte) {
		c := r.Chunks[i]
		return c.ChunkIndex, c.ChunkText, c.StartOffset, c.EndOffset, c.VectorJSON
	})
	if err != nil {
		return doc, fmt.Errorf("解析简历 %s 分块向量失败: %w", r.ResumeID, err)
	}
	doc.Chunks = chunks
	return doc, nil
}

// Metadata 仅解析元数据，列表查询不加载分块时使用
func (r *Resume) Metadata() matching.Metadata {
	var meta matching.Metadata
	_ = FromJSON(r.MetadataJSON, &meta)
	return meta
}

// NewResumeChunks 将带向量的分块转换为数据库行，ChunkIndex 保持文档顺序
func NewResumeChunks(resumeID string, chunks []matching.EmbeddedChunk) ([]ResumeChunk, error) {
	rows := make([]ResumeChunk, 0, len(chunks))
	for i, c := range chunks {
		vec, err := ToJSON(c.Vector)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ResumeChunk{
			ResumeID:    resumeID,
			ChunkIndex:  i,
			ChunkText:   c.Text,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			VectorJSON:  vec,
		})
	}
	return rows, nil
}

// ToJobDocument 将岗位行及其分块还原为评分用的岗位文档
func (j *Job) ToJobDocument() (matching.JobDocument, error) {
	doc := matching.JobDocument{
		Document: matching.Document{
			ID:    j.JobID,
			Title: j.Title,
			Text:  j.FullText(),
		},
		Description: j.Description,
		Experience:  j.Experience,
	}
	if err := FromJSON(j.SkillsJSON, &doc.Skills); err != nil {
		return doc, fmt.Errorf("解析岗位 %s 技能失败: %w", j.JobID, err)
	}
	chunks, err := embeddedFromRows(len(j.Chunks), func(i int) (int, string, int, int, []byte) {
		c := j.Chunks[i]
		return c.ChunkIndex, c.ChunkText, c.StartOffset, c.EndOffset, c.VectorJSON
	})
	if err != nil {
		return doc, fmt.Errorf("解析岗位 %s 分块向量失败: %w", j.JobID, err)
	}
	doc.Chunks = chunks
	return doc, nil
}

// FullText 参与分块与向量化的岗位全文
func (j *Job) FullText() string {
	return JobFullText(j.Description, j.Requirements)
}

// JobFullText 拼接描述与任职要求
func JobFullText(description, requirements string) string {
	return description + "\n\nRequirements:\n" + requirements
}

// NewJobChunks 将带向量的岗位分块转换为数据库行
func NewJobChunks(jobID string, chunks []matching.EmbeddedChunk) ([]JobChunk, error) {
	rows := make([]JobChunk, 0, len(chunks))
	for i, c := range chunks {
		vec, err := ToJSON(c.Vector)
		if err != nil {
			return nil, err
		}
		rows = append(rows, JobChunk{
			JobID:       jobID,
			ChunkIndex:  i,
			ChunkText:   c.Text,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			VectorJSON:  vec,
		})
	}
	return rows, nil
}

// NewJobMatch 将评分结果转换为匹配记录
func NewJobMatch(jobID string, r matching.MatchResult, matchedAt time.Time) (JobMatch, error) {
	m := JobMatch{JobID: jobID, ResumeID: r.ResumeID, Score: r.Score, MatchedAt: matchedAt}
	var err error
	if m.EvidenceJSON, err = ToJSON(r.Evidence); err != nil {
		return m, err
	}
	if m.MissingRequirementsJSON, err = ToJSON(r.MissingRequirements); err != nil {
		return m, err
	}
	if m.StrengthsJSON, err = ToJSON(r.Strengths); err != nil {
		return m, err
	}
	if m.WeaknessesJSON, err = ToJSON(r.Weaknesses); err != nil {
		return m, err
	}
	if m.MatchDetailsJSON, err = ToJSON(r.MatchDetails); err != nil {
		return m, err
	}
	return m, nil
}

// ToMatchResult 将匹配记录还原为评分结果
func (m *JobMatch) ToMatchResult() (matching.MatchResult, error) {
	r := matching.MatchResult{
		ResumeID:            m.ResumeID,
		Score:               m.Score,
		Evidence:            []matching.EvidenceItem{},
		MissingRequirements: []string{},
		Strengths:           []string{},
		Weaknesses:          []string{},
	}
	for _, f := range []struct {
		data []byte
		dest interface{}
	}{
		{m.EvidenceJSON, &r.Evidence},
		{m.MissingRequirementsJSON, &r.MissingRequirements},
		{m.StrengthsJSON, &r.Strengths},
		{m.WeaknessesJSON, &r.Weaknesses},
		{m.MatchDetailsJSON, &r.MatchDetails},
	} {
		if err := FromJSON(f.data, f.dest); err != nil {
			return r, fmt.Errorf("解析匹配记录 %d 失败: %w", m.MatchID, err)
		}
	}
	return r, nil
}

// embeddedFromRows 按 chunk_index 将分块放回文档顺序
func embeddedFromRows(n int, row func(i int) (idx int, text string, start, end int, vec []byte)) ([]matching.EmbeddedChunk, error) {
	out := make([]matching.EmbeddedChunk, n)
	for i := 0; i < n; i++ {
		idx, text, start, end, raw := row(i)
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("分块序号 %d 越界(共 %d 块)", idx, n)
		}
		var vec []float64
		if err := FromJSON(raw, &vec); err != nil {
			return nil, err
		}
		out[idx] = matching.EmbeddedChunk{
			TextChunk: matching.TextChunk{Text: text, StartOffset: start, EndOffset: end},
			Vector:    vec,
		}
	}
	return out, nil
}
