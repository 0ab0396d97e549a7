package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/12222526/Rag-Resume/internal/matching"
)

// 常见 PII 模式，元数据提取与脱敏共用
var (
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	phonePattern      = regexp.MustCompile(`(\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b\d{4}[-.\s]?\d{4}[-.\s]?\d{4}[-.\s]?\d{4}\b`)
	addressPattern    = regexp.MustCompile(`(?i)\d+\s+[A-Za-z0-9\s,.-]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr)`)

	experiencePattern = regexp.MustCompile(`(?i)(\d+)\+?\s*(?:years?|yrs?)\s*(?:of\s*)?(?:experience|exp)`)
	sentenceSplit     = regexp.MustCompile(`[.!?]+`)
)

// SkillKeywords 技能关键词表，按子串匹配
var SkillKeywords = []string{
	"javascript", "python", "java", "react", "node.js", "mongodb", "sql",
	"aws", "docker", "kubernetes", "git", "html", "css", "typescript",
	"angular", "vue", "express", "django", "flask", "spring", "mysql",
	"postgresql", "redis", "elasticsearch", "machine learning", "ai",
	"data science", "analytics", "project management", "agile", "scrum",
}

var educationKeywords = []string{
	"bachelor", "master", "phd", "degree", "university", "college",
	"certification", "certificate", "diploma",
}

const (
	summarySentences   = 3
	summaryMinLength   = 10
	nameCandidateLines = 5
	nameMaxRunes       = 50
	nameMaxWords       = 4
)

// ExtractMetadata 从简历原文中提取候选人信息
func ExtractMetadata(text string) matching.Metadata {
	lower := strings.ToLower(text)

	meta := matching.Metadata{
		Name:       extractName(text),
		Email:      emailPattern.FindString(text),
		Phone:      phonePattern.FindString(text),
		Skills:     []string{},
		Education:  []string{},
		Experience: ExtractExperienceYears(text),
		Summary:    Summarize(text),
	}

	for _, skill := range SkillKeywords {
		if strings.Contains(lower, skill) {
			meta.Skills = append(meta.Skills, skill)
		}
	}

	sentences := sentenceSplit.Split(text, -1)
	seen := make(map[string]struct{})
	for _, kw := range educationKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		for _, s := range sentences {
			if !strings.Contains(strings.ToLower(s), kw) {
				continue
			}
			s = strings.TrimSpace(s)
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			meta.Education = append(meta.Education, s)
		}
	}
	return meta
}

// ExtractExperienceYears 返回 "N years of experience" 形式中最大的 N，没有时为 0
func ExtractExperienceYears(text string) int {
	best := 0
	for _, m := range experiencePattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > best {
			best = n
		}
	}
	return best
}

// Summarize 取前三个长度超过10个字符的句子作为摘要
func Summarize(text string) string {
	var picked []string
	for _, s := range sentenceSplit.Split(text, -1) {
		if utf8.RuneCountInString(strings.TrimSpace(s)) <= summaryMinLength {
			continue
		}
		picked = append(picked, s)
		if len(picked) == summarySentences {
			break
		}
	}
	if len(picked) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(picked, ". ")) + "."
}

// extractName 在开头几行中寻找像姓名的短行
func extractName(text string) string {
	checked := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		checked++
		if checked > nameCandidateLines {
			break
		}
		if looksLikeName(line) {
			return line
		}
	}
	return ""
}

func looksLikeName(line string) bool {
	if utf8.RuneCountInString(line) > nameMaxRunes {
		return false
	}
	if strings.ContainsAny(line, "@:/|") {
		return false
	}
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > nameMaxWords {
		return false
	}
	for _, r := range line {
		if unicode.IsDigit(r) {
			return false
		}
	}
	lower := strings.ToLower(line)
	for _, header := range []string{"resume", "curriculum", "summary", "profile", "experience", "education", "skills"} {
		if strings.Contains(lower, header) {
			return false
		}
	}
	first, _ := utf8.DecodeRuneInString(line)
	return unicode.IsUpper(first) || unicode.Is(unicode.Han, first)
}
