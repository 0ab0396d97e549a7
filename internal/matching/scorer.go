package matching

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRelevanceThreshold 最佳相似度不超过该值的岗位分块不计入
	DefaultRelevanceThreshold = 0.3
	// DefaultMaxEvidence 每个匹配最多保留的证据条数
	DefaultMaxEvidence = 5
	// DefaultTopN 默认返回的匹配数量
	DefaultTopN = 10
)

var (
	yearsPattern = regexp.MustCompile(`(?i)(\d+)\+?\s*years?`)

	educationMatchKeywords = []string{"bachelor", "master", "phd", "degree", "university", "college"}
)

// Scorer 岗位与简历之间的多维匹配评分器
type Scorer struct {
	threshold   float64
	maxEvidence int
	concurrency int
}

// ScorerOption 定义评分器的配置选项
type ScorerOption func(*Scorer)

// WithRelevanceThreshold 设置相关度阈值
func WithRelevanceThreshold(t float64) ScorerOption {
	return func(s *Scorer) {
		s.threshold = t
	}
}

// WithMaxEvidence 设置保留证据条数
func WithMaxEvidence(n int) ScorerOption {
	return func(s *Scorer) {
		if n > 0 {
			s.maxEvidence = n
		}
	}
}

// WithScoreConcurrency 设置跨简历并行评分的并发度
func WithScoreConcurrency(n int) ScorerOption {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewScorer 创建评分器
func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{
		threshold:   DefaultRelevanceThreshold,
		maxEvidence: DefaultMaxEvidence,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score 计算单个 (岗位, 简历) 对的匹配结果。
// 对每个岗位分块取相似度最高的简历分块，仅保留超过阈值的配对参与平均。
func (s *Scorer) Score(job JobDocument, resume Document) MatchResult {
	var total float64
	var count int
	evidence := make([]EvidenceItem, 0, len(job.Chunks))

	for _, jc := range job.Chunks {
		best, ok := BestChunk(jc.Vector, resume.Chunks)
		if !ok || best.Similarity <= s.threshold {
			continue
		}
		total += best.Similarity
		count++
		evidence = append(evidence, EvidenceItem{
			Text:       best.Chunk.Text,
			Relevance:  relevanceOf(best.Similarity),
			Type:       ClassifyEvidence(best.Chunk.Text),
			Similarity: ToPercent(best.Similarity),
		})
	}

	var avg float64
	if count > 0 {
		avg = total / float64(count)
	}
	score := ToPercent(avg)

	// 按岗位分块顺序截取前几条，而不是相似度最高的几条
	if len(evidence) > s.maxEvidence {
		evidence = evidence[:s.maxEvidence]
	}

	return MatchResult{
		ResumeID:            resume.ID,
		Score:               score,
		Evidence:            evidence,
		MissingRequirements: MissingRequirements(job, resume.Metadata),
		Strengths:           Strengths(resume.Metadata),
		Weaknesses:          Weaknesses(job, resume.Metadata),
		MatchDetails: MatchDetails{
			SkillsMatch:     SkillsMatch(job.Skills, resume.Metadata.Skills),
			ExperienceMatch: ExperienceMatch(job.Experience, resume.Metadata.Experience),
			EducationMatch:  EducationMatch(job.Description, resume.Metadata.Education),
			OverallMatch:    score,
		},
	}
}

// ScoreAll 并行地对所有简历评分，结果顺序与输入一致
func (s *Scorer) ScoreAll(ctx context.Context, job JobDocument, resumes []Document) ([]MatchResult, error) {
	results := make([]MatchResult, len(resumes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range resumes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.Score(job, resumes[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RankMatches 仅保留 score > 0 的结果，按分数降序、简历ID升序排序后截取前 topN。
// matched 为截断前的数量。
func RankMatches(results []MatchResult, topN int) (top []MatchResult, matched int) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	kept := make([]MatchResult, 0, len(results))
	for _, r := range results {
		if r.Score > 0 {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].ResumeID < kept[j].ResumeID
	})
	matched = len(kept)
	if len(kept) > topN {
		kept = kept[:topN]
	}
	return kept, matched
}

func relevanceOf(sim float64) Relevance {
	switch {
	case sim > 0.7:
		return RelevanceHigh
	case sim > 0.5:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// ClassifyEvidence 按固定顺序嗅探关键词判断证据类别
func ClassifyEvidence(text string) EvidenceType {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "skill", "technology", "programming"):
		return EvidenceSkill
	case containsAny(lower, "experience", "worked", "years"):
		return EvidenceExperience
	case containsAny(lower, "education", "degree", "university"):
		return EvidenceEducation
	default:
		return EvidenceRequirement
	}
}

// ExtractYears 从 "3+ years" 之类的文本中提取年限，未找到返回 0
func ExtractYears(text string) int {
	m := yearsPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// MissingRequirements 列出简历技能中未覆盖的岗位技能（小写），以及经验年限缺口
func MissingRequirements(job JobDocument, resume Metadata) []string {
	missing := make([]string, 0)
	resumeSkills := lowerAll(resume.Skills)
	for _, skill := range lowerAll(job.Skills) {
		if !skillCovered(skill, resumeSkills) {
			missing = append(missing, skill)
		}
	}
	if jobExp := ExtractYears(job.Experience); jobExp > 0 && resume.Experience < jobExp {
		missing = append(missing, fmt.Sprintf("%d years of experience (candidate has %d)", jobExp, resume.Experience))
	}
	return missing
}

// Strengths 只由简历本身决定
func Strengths(resume Metadata) []string {
	strengths := make([]string, 0)
	if len(resume.Skills) > 5 {
		strengths = append(strengths, "Diverse skill set")
	}
	if resume.Experience > 5 {
		strengths = append(strengths, "Senior-level experience")
	}
	if len(resume.Education) > 0 {
		strengths = append(strengths, "Strong educational background")
	}
	return strengths
}

// Weaknesses 技能重合不足一半或经验低于要求的 70%
func Weaknesses(job JobDocument, resume Metadata) []string {
	weaknesses := make([]string, 0)
	jobSkills := lowerAll(job.Skills)
	if float64(countCovered(jobSkills, lowerAll(resume.Skills))) < float64(len(jobSkills))*0.5 {
		weaknesses = append(weaknesses, "Limited skill overlap with job requirements")
	}
	if jobExp := ExtractYears(job.Experience); jobExp > 0 && float64(resume.Experience) < float64(jobExp)*0.7 {
		weaknesses = append(weaknesses, "Below required experience level")
	}
	return weaknesses
}

// SkillsMatch 岗位技能在简历技能中被覆盖（双向子串）的百分比
func SkillsMatch(jobSkills, resumeSkills []string) int {
	if len(jobSkills) == 0 || len(resumeSkills) == 0 {
		return 0
	}
	matched := countCovered(lowerAll(jobSkills), lowerAll(resumeSkills))
	return roundScore(float64(matched) / float64(len(jobSkills)) * 100)
}

// ExperienceMatch min(100, 简历年限/岗位年限×100)，岗位年限无法提取时为 0
func ExperienceMatch(jobExperience string, resumeYears int) int {
	if resumeYears == 0 {
		return 0
	}
	jobYears := ExtractYears(jobExperience)
	if jobYears == 0 {
		return 0
	}
	return roundScore(min(float64(resumeYears)/float64(jobYears)*100, 100))
}

// EducationMatch 每条教育经历中与岗位描述共有的学历关键词各加 25，封顶 100
func EducationMatch(jobDescription string, education []string) int {
	if jobDescription == "" || len(education) == 0 {
		return 0
	}
	jobLower := strings.ToLower(jobDescription)
	score := 0
	for _, edu := range education {
		eduLower := strings.ToLower(edu)
		for _, kw := range educationMatchKeywords {
			if strings.Contains(eduLower, kw) && strings.Contains(jobLower, kw) {
				score += 25
			}
		}
	}
	return min(score, 100)
}

func skillCovered(skill string, resumeSkills []string) bool {
	for _, rs := range resumeSkills {
		if strings.Contains(rs, skill) || strings.Contains(skill, rs) {
			return true
		}
	}
	return false
}

func countCovered(jobSkills, resumeSkills []string) int {
	n := 0
	for _, s := range jobSkills {
		if skillCovered(s, resumeSkills) {
			n++
		}
	}
	return n
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
