package matching_test

import (
	"context"
	"testing"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorer_EndToEndSkillsAndExperience(t *testing.T) {
	job := matching.JobDocument{
		Document:    matching.Document{ID: "job-1", Chunks: []matching.EmbeddedChunk{chunk("need python", unitAt(1))}},
		Description: "Backend role",
		Experience:  "3+ years",
		Skills:      []string{"Python", "SQL"},
	}
	resume := matching.Document{
		ID:       "resume-1",
		Chunks:   []matching.EmbeddedChunk{chunk("python services", unitAt(0.9))},
		Metadata: matching.Metadata{Skills: []string{"Python", "Java"}, Experience: 5},
	}

	result := matching.NewScorer().Score(job, resume)

	assert.Equal(t, 50, result.MatchDetails.SkillsMatch)
	assert.Equal(t, 100, result.MatchDetails.ExperienceMatch)
	assert.Contains(t, result.MissingRequirements, "sql", "缺失技能应为小写")
	assert.Empty(t, result.Strengths, "技能不超过5项且无教育经历时没有优势项")
	assert.Empty(t, result.Weaknesses)
	assert.Equal(t, 90, result.Score)
	assert.Equal(t, result.Score, result.MatchDetails.OverallMatch)
}

func TestScorer_EvidenceKeepsJobChunkOrder(t *testing.T) {
	sims := []float64{0.4, 0.9, 0.6, 0.95, 0.35, 0.99, 0.8, 0.2}
	jobChunks := make([]matching.EmbeddedChunk, len(sims))
	for i, s := range sims {
		jobChunks[i] = chunk("job", unitAt(s))
	}
	job := matching.JobDocument{Document: matching.Document{ID: "job", Chunks: jobChunks}}
	resume := matching.Document{ID: "r", Chunks: []matching.EmbeddedChunk{
		chunk("Worked 5 years on payments", []float64{1, 0}),
	}}

	result := matching.NewScorer().Score(job, resume)

	require.Len(t, result.Evidence, 5, "证据最多保留5条")
	got := make([]int, len(result.Evidence))
	for i, e := range result.Evidence {
		got[i] = e.Similarity
	}
	assert.Equal(t, []int{40, 90, 60, 95, 35}, got, "证据按岗位分块顺序截取而不是按相似度")
	assert.Equal(t, matching.RelevanceLow, result.Evidence[0].Relevance)
	assert.Equal(t, matching.RelevanceHigh, result.Evidence[1].Relevance)
	assert.Equal(t, matching.RelevanceMedium, result.Evidence[2].Relevance)
	assert.Equal(t, matching.EvidenceExperience, result.Evidence[0].Type)

	// 0.2 低于阈值不计入平均
	assert.Equal(t, 71, result.Score)
}

func TestScorer_NoOverlapScoresZero(t *testing.T) {
	job := matching.JobDocument{
		Document: matching.Document{ID: "job", Chunks: []matching.EmbeddedChunk{chunk("job", []float64{1, 0})}},
		Skills:   []string{"Rust"},
	}
	resume := matching.Document{
		ID:       "r",
		Chunks:   []matching.EmbeddedChunk{chunk("resume", []float64{0, 1})},
		Metadata: matching.Metadata{Skills: []string{"Cooking"}},
	}
	result := matching.NewScorer().Score(job, resume)
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Evidence)
	assert.Contains(t, result.Weaknesses, "Limited skill overlap with job requirements")

	top, matched := matching.RankMatches([]matching.MatchResult{result}, 10)
	assert.Empty(t, top, "score为0的简历不进入结果集")
	assert.Equal(t, 0, matched)
}

func TestRankMatches_SortTieBreakAndTruncate(t *testing.T) {
	results := []matching.MatchResult{
		{ResumeID: "c", Score: 80},
		{ResumeID: "a", Score: 0},
		{ResumeID: "b", Score: 80},
		{ResumeID: "d", Score: 95},
		{ResumeID: "e", Score: 40},
	}
	top, matched := matching.RankMatches(results, 3)
	assert.Equal(t, 4, matched, "matched 统计截断前 score>0 的数量")
	require.Len(t, top, 3)
	assert.Equal(t, "d", top[0].ResumeID)
	assert.Equal(t, "b", top[1].ResumeID, "同分按简历ID升序")
	assert.Equal(t, "c", top[2].ResumeID)

	all, _ := matching.RankMatches(results, 0)
	assert.Len(t, all, 4, "topN<=0 时使用默认值")
}

func TestScorer_ScoreAllPreservesInputOrder(t *testing.T) {
	job := matching.JobDocument{Document: matching.Document{Chunks: []matching.EmbeddedChunk{chunk("j", []float64{1, 0})}}}
	resumes := []matching.Document{
		{ID: "r1", Chunks: []matching.EmbeddedChunk{chunk("x", unitAt(0.5))}},
		{ID: "r2", Chunks: []matching.EmbeddedChunk{chunk("x", unitAt(0.9))}},
		{ID: "r3"},
	}
	results, err := matching.NewScorer(matching.WithScoreConcurrency(2)).ScoreAll(context.Background(), job, resumes)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "r1", results[0].ResumeID)
	assert.Equal(t, 50, results[0].Score)
	assert.Equal(t, 90, results[1].Score)
	assert.Equal(t, 0, results[2].Score)
}

func TestClassifyEvidence(t *testing.T) {
	cases := map[string]matching.EvidenceType{
		"Programming in Go and Python":            matching.EvidenceSkill,
		"Skills and 5 years experience":           matching.EvidenceSkill,
		"Worked at Acme for 3 years":              matching.EvidenceExperience,
		"Master degree from Tsinghua University":  matching.EvidenceEducation,
		"Remote friendly, fast paced environment": matching.EvidenceRequirement,
	}
	for text, want := range cases {
		assert.Equal(t, want, matching.ClassifyEvidence(text), text)
	}
}

func TestSubScores(t *testing.T) {
	assert.Equal(t, 3, matching.ExtractYears("3+ years of Go"))
	assert.Equal(t, 5, matching.ExtractYears("At least 5 Years"))
	assert.Equal(t, 1, matching.ExtractYears("1 year"))
	assert.Equal(t, 0, matching.ExtractYears("senior"))

	assert.Equal(t, 60, matching.ExperienceMatch("5 years", 3))
	assert.Equal(t, 100, matching.ExperienceMatch("2 years", 10))
	assert.Equal(t, 0, matching.ExperienceMatch("", 5))
	assert.Equal(t, 0, matching.ExperienceMatch("3 years", 0))

	assert.Equal(t, 0, matching.SkillsMatch(nil, []string{"go"}))
	assert.Equal(t, 67, matching.SkillsMatch([]string{"Go", "Node.js", "Rust"}, []string{"golang", "node"}))

	desc := "Bachelor degree from a university required"
	assert.Equal(t, 50, matching.EducationMatch(desc, []string{"Bachelor of Science, State University"}))
	assert.Equal(t, 100, matching.EducationMatch(desc, []string{
		"Bachelor, University A", "Bachelor, University B", "Degree from University C",
	}), "教育分数封顶100")
	assert.Equal(t, 0, matching.EducationMatch("", []string{"Bachelor"}))
}

func TestStrengthsAndWeaknesses(t *testing.T) {
	senior := matching.Metadata{
		Skills:     []string{"go", "sql", "redis", "docker", "kubernetes", "aws"},
		Experience: 8,
		Education:  []string{"MSc Computer Science"},
	}
	assert.Equal(t, []string{"Diverse skill set", "Senior-level experience", "Strong educational background"}, matching.Strengths(senior))

	job := matching.JobDocument{Experience: "10 years", Skills: []string{"go", "java", "scala"}}
	junior := matching.Metadata{Skills: []string{"go"}, Experience: 6}
	assert.Equal(t, []string{"Limited skill overlap with job requirements", "Below required experience level"}, matching.Weaknesses(job, junior))

	missing := matching.MissingRequirements(job, junior)
	assert.Equal(t, []string{"java", "scala", "10 years of experience (candidate has 6)"}, missing)
}
