package matching_test

import (
	"errors"
	"testing"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	recSkills         = "Consider gaining experience with required skills through courses or projects"
	recExperience     = "Look for opportunities to gain relevant experience"
	recEducation      = "Consider pursuing the required education level"
	recCertifications = "Obtain the required certifications"
)

func TestEvaluate_PartialSkillsNotEligible(t *testing.T) {
	report := matching.Evaluate("r1", matching.Metadata{Skills: []string{"Python"}}, "", matching.Criteria{
		RequiredSkills: []string{"Python", "Go"},
	})

	skills := report.Criteria[matching.CriterionSkills]
	assert.Equal(t, 50, skills.Score)
	assert.Equal(t, matching.StatusPartial, skills.Status)
	assert.Contains(t, report.MissingRequirements, "Missing skills: Go")
	assert.Equal(t, 50, report.OverallScore, "总分只由已评估项计算")
	assert.False(t, report.IsEligible)
	assert.Equal(t, matching.StatusPending, report.Criteria[matching.CriterionExperience].Status)
	// 未评估的项分数为 0，同样低于门槛
	assert.Equal(t, []string{recSkills, recExperience, recEducation, recCertifications}, report.Recommendations)
}

func TestEvaluate_HighScoreWithGapIsNotEligible(t *testing.T) {
	report := matching.Evaluate("r1", matching.Metadata{Skills: []string{"Python", "Go", "SQL"}, Experience: 5}, "", matching.Criteria{
		RequiredSkills: []string{"Python", "Go", "SQL", "Java"},
		MinExperience:  3,
	})

	assert.Equal(t, 75, report.Criteria[matching.CriterionSkills].Score)
	assert.Equal(t, matching.StatusPass, report.Criteria[matching.CriterionSkills].Status)
	assert.Equal(t, 100, report.Criteria[matching.CriterionExperience].Score)
	assert.Equal(t, 88, report.OverallScore)
	assert.NotEmpty(t, report.MissingRequirements)
	assert.False(t, report.IsEligible, "存在缺失项时即使总分达标也不符合")
	assert.Equal(t, []string{recEducation, recCertifications}, report.Recommendations, "已达到阈值的技能与经验不产生建议")
}

func TestEvaluate_AllCriteriaPass(t *testing.T) {
	resume := matching.Metadata{
		Skills:     []string{"Go", "Kubernetes"},
		Experience: 6,
		Education:  []string{"BSc Computer Science, Zhejiang University"},
	}
	text := "AWS Certified Solutions Architect. Led kubernetes migrations and showed leadership across teams."
	report := matching.Evaluate("r1", resume, text, matching.Criteria{
		RequiredSkills:         []string{"go"},
		MinExperience:          5,
		RequiredEducation:      "bachelor",
		RequiredCertifications: []string{"AWS Certified"},
		AdditionalRequirements: "Kubernetes, leadership, to",
	})

	for name, c := range report.Criteria {
		assert.Equal(t, matching.StatusPass, c.Status, name)
		assert.Equal(t, 100, c.Score, name)
	}
	assert.Equal(t, 100, report.OverallScore)
	assert.True(t, report.IsEligible)
	assert.Empty(t, report.MissingRequirements)
	assert.Empty(t, report.Recommendations)
}

func TestEvaluate_NoCriteria(t *testing.T) {
	report := matching.Evaluate("r1", matching.Metadata{}, "anything", matching.Criteria{})
	assert.Equal(t, 0, report.OverallScore)
	assert.False(t, report.IsEligible)
	assert.Equal(t, []string{recSkills, recExperience, recEducation, recCertifications}, report.Recommendations)
	require.Len(t, report.Criteria, 5)
	for _, c := range report.Criteria {
		assert.Equal(t, matching.StatusPending, c.Status)
	}
}

func TestEvaluate_ExperienceShortfall(t *testing.T) {
	report := matching.Evaluate("r1", matching.Metadata{Experience: 3}, "", matching.Criteria{MinExperience: 4})
	exp := report.Criteria[matching.CriterionExperience]
	assert.Equal(t, 75, exp.Score)
	assert.Equal(t, matching.StatusFail, exp.Status)
	assert.Equal(t, []string{"Insufficient experience: 3 years (required: 4)"}, report.MissingRequirements)
	assert.Equal(t, []string{recSkills, recExperience, recEducation, recCertifications}, report.Recommendations)
}

func TestEvaluate_EducationAndCertifications(t *testing.T) {
	report := matching.Evaluate("r1", matching.Metadata{Education: []string{"Bachelor of Arts"}}, "Holds PMP certificate", matching.Criteria{
		RequiredEducation:      "phd",
		RequiredCertifications: []string{"PMP", "CKA"},
	})

	edu := report.Criteria[matching.CriterionEducation]
	assert.Equal(t, 0, edu.Score)
	assert.Equal(t, matching.StatusFail, edu.Status)
	certs := report.Criteria[matching.CriterionCertifications]
	assert.Equal(t, 50, certs.Score)
	assert.Equal(t, matching.StatusPartial, certs.Status)

	assert.Contains(t, report.MissingRequirements, "Education requirement not met: phd")
	assert.Contains(t, report.MissingRequirements, "Missing certifications: CKA")
	assert.Equal(t, 25, report.OverallScore)
	assert.Equal(t, []string{recSkills, recExperience, recEducation, recCertifications}, report.Recommendations)
}

func TestEvaluate_AdditionalShortWordsStayPending(t *testing.T) {
	report := matching.Evaluate("r1", matching.Metadata{}, "text", matching.Criteria{AdditionalRequirements: "a, of, the"})
	assert.Equal(t, matching.StatusPending, report.Criteria[matching.CriterionAdditional].Status)

	report = matching.Evaluate("r1", matching.Metadata{}, "fluent english", matching.Criteria{AdditionalRequirements: "english mandarin"})
	add := report.Criteria[matching.CriterionAdditional]
	assert.Equal(t, 50, add.Score)
	assert.Contains(t, report.MissingRequirements, "Additional requirements not fully met")
}

func TestCriteria_Validate(t *testing.T) {
	assert.NoError(t, matching.Criteria{RequiredEducation: "master"}.Validate())
	assert.NoError(t, matching.Criteria{RequiredEducation: "none"}.Validate())

	err := matching.Criteria{RequiredEducation: "kindergarten"}.Validate()
	assert.True(t, errors.Is(err, matching.ErrValidation))
	err = matching.Criteria{MinExperience: -1}.Validate()
	assert.True(t, errors.Is(err, matching.ErrValidation))
}
