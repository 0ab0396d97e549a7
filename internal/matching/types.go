package matching

// TextChunk 文档中的一个带偏移量的文本片段
// StartOffset/EndOffset 为未裁剪窗口在原文中的 rune 偏移
type TextChunk struct {
	Text        string `json:"text"`
	StartOffset int    `json:"startIndex"`
	EndOffset   int    `json:"endIndex"`
}

// EmbeddedChunk 带向量的文本片段
type EmbeddedChunk struct {
	TextChunk
	Vector []float64 `json:"embedding,omitempty"`
}

// Metadata 上游抽取出的结构化信息
type Metadata struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Skills     []string `json:"skills"`
	Experience int      `json:"experience"`
	Education  []string `json:"education"`
	Summary    string   `json:"summary,omitempty"`
}

// Document 简历或岗位，按文档顺序持有分块
type Document struct {
	ID       string          `json:"id"`
	Title    string          `json:"title,omitempty"`
	Text     string          `json:"text,omitempty"`
	Chunks   []EmbeddedChunk `json:"chunks"`
	Metadata Metadata        `json:"metadata"`
}

// JobDocument 岗位文档，附带参与评分的岗位要求
type JobDocument struct {
	Document
	Description string   `json:"description"`
	Experience  string   `json:"experience"` // 自由文本，如 "3+ years"
	Skills      []string `json:"skills"`
}

// Relevance 证据相关度
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// EvidenceType 证据类别
type EvidenceType string

const (
	EvidenceSkill       EvidenceType = "skill"
	EvidenceExperience  EvidenceType = "experience"
	EvidenceEducation   EvidenceType = "education"
	EvidenceRequirement EvidenceType = "requirement"
)

// EvidenceItem 支撑匹配分数的一条分块级证据
type EvidenceItem struct {
	Text       string       `json:"text"`
	Relevance  Relevance    `json:"relevance"`
	Type       EvidenceType `json:"type"`
	Similarity int          `json:"similarity"`
}

// MatchDetails 各维度子分数
type MatchDetails struct {
	SkillsMatch     int `json:"skillsMatch"`
	ExperienceMatch int `json:"experienceMatch"`
	EducationMatch  int `json:"educationMatch"`
	OverallMatch    int `json:"overallMatch"`
}

// MatchResult 一个 (岗位, 简历) 对的评分结果
type MatchResult struct {
	ResumeID            string         `json:"resumeId"`
	Score               int            `json:"score"`
	Evidence            []EvidenceItem `json:"evidence"`
	MissingRequirements []string       `json:"missingRequirements"`
	Strengths           []string       `json:"strengths"`
	Weaknesses          []string       `json:"weaknesses"`
	MatchDetails        MatchDetails   `json:"matchDetails"`
}
