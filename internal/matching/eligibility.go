package matching

import (
	"fmt"
	"regexp"
	"strings"
)

// CriterionStatus 单项评估结论
type CriterionStatus string

const (
	StatusPending CriterionStatus = "pending"
	StatusPass    CriterionStatus = "pass"
	StatusPartial CriterionStatus = "partial"
	StatusFail    CriterionStatus = "fail"
)

// 评估项名称
const (
	CriterionSkills         = "skills"
	CriterionExperience     = "experience"
	CriterionEducation      = "education"
	CriterionCertifications = "certifications"
	CriterionAdditional     = "additional"
)

// EligibleThreshold 总分达到该值且无缺失项才判定为符合
const EligibleThreshold = 70

var criterionOrder = []string{CriterionSkills, CriterionExperience, CriterionEducation, CriterionCertifications, CriterionAdditional}

// 学历等级对应的关键词
var educationLevelKeywords = map[string][]string{
	"high-school": {"high school", "secondary"},
	"associate":   {"associate", "diploma"},
	"bachelor":    {"bachelor", "degree", "bsc", "ba"},
	"master":      {"master", "msc", "ma", "mba"},
	"phd":         {"phd", "doctorate", "doctor"},
}

var additionalSplitPattern = regexp.MustCompile(`[,\s]+`)

// Criteria 结构化的资格要求，空值表示不评估该项
type Criteria struct {
	RequiredSkills         []string `json:"requiredSkills"`
	MinExperience          int      `json:"minExperience"`
	RequiredEducation      string   `json:"requiredEducation"`
	RequiredCertifications []string `json:"requiredCertifications"`
	AdditionalRequirements string   `json:"additionalRequirements"`
}

// Validate 校验学历枚举与经验年限
func (c Criteria) Validate() error {
	if c.MinExperience < 0 {
		return NewValidationError("eligibility", "minExperience 不能为负数")
	}
	switch c.RequiredEducation {
	case "", "none":
	default:
		if _, ok := educationLevelKeywords[c.RequiredEducation]; !ok {
			return NewValidationError("eligibility", fmt.Sprintf("未知的学历要求: %s", c.RequiredEducation))
		}
	}
	return nil
}

// CriterionResult 单项评估结果
type CriterionResult struct {
	Status  CriterionStatus `json:"status"`
	Score   int             `json:"score"`
	Details any             `json:"details"`
}

// EligibilityReport 资格评估报告，每次请求重新计算，不持久化
type EligibilityReport struct {
	ResumeID            string                     `json:"resumeId"`
	CandidateName       string                     `json:"candidateName,omitempty"`
	ResumeName          string                     `json:"resumeName,omitempty"`
	OverallScore        int                        `json:"overallScore"`
	IsEligible          bool                       `json:"isEligible"`
	Criteria            map[string]CriterionResult `json:"criteria"`
	MissingRequirements []string                   `json:"missingRequirements"`
	Recommendations     []string                   `json:"recommendations"`
}

// Evaluate 按各项要求独立评估简历。未提供的项保持 pending 且不计入总分。
// rawText 为简历全文，用于证书与补充要求的关键词检索。
func Evaluate(resumeID string, resume Metadata, rawText string, criteria Criteria) EligibilityReport {
	report := EligibilityReport{
		ResumeID:            resumeID,
		Criteria:            make(map[string]CriterionResult, len(criterionOrder)),
		MissingRequirements: make([]string, 0),
		Recommendations:     make([]string, 0),
	}
	for _, name := range criterionOrder {
		report.Criteria[name] = CriterionResult{Status: StatusPending, Details: []any{}}
	}
	textLower := strings.ToLower(rawText)

	if len(criteria.RequiredSkills) > 0 {
		resumeSkills := lowerAll(resume.Skills)
		matched, missing := make([]string, 0), make([]string, 0)
		for _, skill := range criteria.RequiredSkills {
			if skillCovered(strings.ToLower(strings.TrimSpace(skill)), resumeSkills) {
				matched = append(matched, skill)
			} else {
				missing = append(missing, skill)
			}
		}
		score := percentOf(len(matched), len(criteria.RequiredSkills))
		report.Criteria[CriterionSkills] = CriterionResult{
			Status:  bandStatus(score),
			Score:   score,
			Details: map[string]any{"matched": matched, "missing": missing, "total": len(criteria.RequiredSkills)},
		}
		if len(missing) > 0 {
			report.MissingRequirements = append(report.MissingRequirements, "Missing skills: "+strings.Join(missing, ", "))
		}
	}

	if criteria.MinExperience > 0 {
		candidate := resume.Experience
		score := 100
		if candidate < criteria.MinExperience {
			score = percentOf(candidate, criteria.MinExperience)
		}
		status := StatusFail
		if score >= 100 {
			status = StatusPass
		}
		report.Criteria[CriterionExperience] = CriterionResult{
			Status: status,
			Score:  score,
			Details: map[string]any{
				"required":   criteria.MinExperience,
				"candidate":  candidate,
				"difference": candidate - criteria.MinExperience,
			},
		}
		if candidate < criteria.MinExperience {
			report.MissingRequirements = append(report.MissingRequirements,
				fmt.Sprintf("Insufficient experience: %d years (required: %d)", candidate, criteria.MinExperience))
		}
	}

	if level := criteria.RequiredEducation; level != "" && level != "none" {
		matched := educationSatisfies(level, resume.Education)
		score, status := 0, StatusFail
		if matched {
			score, status = 100, StatusPass
		}
		education := resume.Education
		if education == nil {
			education = []string{}
		}
		report.Criteria[CriterionEducation] = CriterionResult{
			Status:  status,
			Score:   score,
			Details: map[string]any{"required": level, "candidate": education, "match": matched},
		}
		if !matched {
			report.MissingRequirements = append(report.MissingRequirements, "Education requirement not met: "+level)
		}
	}

	if len(criteria.RequiredCertifications) > 0 {
		matched, missing := make([]string, 0), make([]string, 0)
		for _, cert := range criteria.RequiredCertifications {
			if strings.Contains(textLower, strings.ToLower(strings.TrimSpace(cert))) {
				matched = append(matched, cert)
			} else {
				missing = append(missing, cert)
			}
		}
		score := percentOf(len(matched), len(criteria.RequiredCertifications))
		report.Criteria[CriterionCertifications] = CriterionResult{
			Status:  bandStatus(score),
			Score:   score,
			Details: map[string]any{"matched": matched, "missing": missing, "total": len(criteria.RequiredCertifications)},
		}
		if len(missing) > 0 {
			report.MissingRequirements = append(report.MissingRequirements, "Missing certifications: "+strings.Join(missing, ", "))
		}
	}

	if keywords := additionalKeywords(criteria.AdditionalRequirements); len(keywords) > 0 {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(textLower, kw) {
				hits++
			}
		}
		score := percentOf(hits, len(keywords))
		report.Criteria[CriterionAdditional] = CriterionResult{
			Status: bandStatus(score),
			Score:  score,
			Details: map[string]any{
				"matchedKeywords": hits,
				"totalKeywords":   len(keywords),
				"requirement":     criteria.AdditionalRequirements,
			},
		}
		if score < EligibleThreshold {
			report.MissingRequirements = append(report.MissingRequirements, "Additional requirements not fully met")
		}
	}

	var sum, n int
	for _, name := range criterionOrder {
		if c := report.Criteria[name]; c.Status != StatusPending {
			sum += c.Score
			n++
		}
	}
	if n > 0 {
		report.OverallScore = roundScore(float64(sum) / float64(n))
	}
	report.IsEligible = report.OverallScore >= EligibleThreshold && len(report.MissingRequirements) == 0

	if !report.IsEligible {
		report.Recommendations = recommendations(report.Criteria)
	}
	return report
}

// recommendations 对分数低于各自门槛的项给出建议，pending 项分数为 0 同样计入
func recommendations(criteria map[string]CriterionResult) []string {
	recs := make([]string, 0)
	below := func(name string, threshold int) bool {
		return criteria[name].Score < threshold
	}
	if below(CriterionSkills, 70) {
		recs = append(recs, "Consider gaining experience with required skills through courses or projects")
	}
	if below(CriterionExperience, 100) {
		recs = append(recs, "Look for opportunities to gain relevant experience")
	}
	if below(CriterionEducation, 1) {
		recs = append(recs, "Consider pursuing the required education level")
	}
	if below(CriterionCertifications, 70) {
		recs = append(recs, "Obtain the required certifications")
	}
	return recs
}

func educationSatisfies(level string, education []string) bool {
	keywords := educationLevelKeywords[level]
	for _, edu := range education {
		if containsAny(strings.ToLower(edu), keywords...) {
			return true
		}
	}
	return false
}

// additionalKeywords 按逗号/空白切词，丢弃长度不超过 3 的词
func additionalKeywords(text string) []string {
	var out []string
	for _, w := range additionalSplitPattern.Split(strings.ToLower(text), -1) {
		if len([]rune(w)) > 3 {
			out = append(out, w)
		}
	}
	return out
}

func bandStatus(score int) CriterionStatus {
	switch {
	case score >= 70:
		return StatusPass
	case score >= 40:
		return StatusPartial
	default:
		return StatusFail
	}
}

func percentOf(part, total int) int {
	if total == 0 {
		return 0
	}
	return roundScore(float64(part) / float64(total) * 100)
}
