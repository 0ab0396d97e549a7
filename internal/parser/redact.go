package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/12222526/Rag-Resume/internal/matching"
)

// RedactionLevel 脱敏级别
type RedactionLevel string

const (
	RedactMinimal    RedactionLevel = "minimal"
	RedactStandard   RedactionLevel = "standard"
	RedactAggressive RedactionLevel = "aggressive"
)

// Redaction 一次替换记录
type Redaction struct {
	Type        string `json:"type"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Position    int    `json:"position"`
}

// RedactionResult 脱敏结果
type RedactionResult struct {
	Text           string         `json:"text"`
	Redactions     []Redaction    `json:"redactions"`
	RedactionLevel RedactionLevel `json:"redactionLevel"`
}

type piiRule struct {
	kind        string
	pattern     *regexp.Regexp
	replacement string
}

var (
	ruleEmail   = piiRule{"email", emailPattern, "[EMAIL]"}
	rulePhone   = piiRule{"phone", phonePattern, "[PHONE]"}
	ruleSSN     = piiRule{"ssn", ssnPattern, "[SSN]"}
	ruleCard    = piiRule{"creditCard", creditCardPattern, "[CARD]"}
	ruleAddress = piiRule{"address", addressPattern, "[ADDRESS]"}
)

// 规则按顺序依次应用
var levelRules = map[RedactionLevel][]piiRule{
	RedactMinimal:    {ruleSSN, ruleCard},
	RedactStandard:   {ruleEmail, rulePhone, ruleSSN, ruleCard},
	RedactAggressive: {ruleEmail, rulePhone, ruleSSN, ruleCard, ruleAddress},
}

// ParseRedactionLevel 解析脱敏级别，空串视为 standard
func ParseRedactionLevel(s string) (RedactionLevel, error) {
	if s == "" {
		return RedactStandard, nil
	}
	level := RedactionLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRules[level]; !ok {
		return "", matching.NewValidationError("redact", fmt.Sprintf("未知的脱敏级别: %s", s))
	}
	return level, nil
}

// Redact 按级别替换文本中的 PII。未知级别按 standard 处理。
func Redact(text string, level RedactionLevel) RedactionResult {
	rules, ok := levelRules[level]
	if !ok {
		level = RedactStandard
		rules = levelRules[RedactStandard]
	}

	result := RedactionResult{Text: text, Redactions: []Redaction{}, RedactionLevel: level}
	for _, rule := range rules {
		current := result.Text
		result.Text = rule.pattern.ReplaceAllStringFunc(current, func(match string) string {
			result.Redactions = append(result.Redactions, Redaction{
				Type:        rule.kind,
				Original:    match,
				Replacement: rule.replacement,
				Position:    strings.Index(current, match),
			})
			return rule.replacement
		})
	}
	return result
}
