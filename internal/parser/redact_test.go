package parser_test

import (
	"errors"
	"testing"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const piiText = "Mail jane@example.com, call 555-123-4567, SSN 123-45-6789, card 4111 1111 1111 1111, lives at 42 Main Street."

func TestRedact_Levels(t *testing.T) {
	minimal := parser.Redact(piiText, parser.RedactMinimal)
	assert.Contains(t, minimal.Text, "jane@example.com")
	assert.Contains(t, minimal.Text, "[SSN]")
	assert.Contains(t, minimal.Text, "[CARD]")
	assert.NotContains(t, minimal.Text, "123-45-6789")

	standard := parser.Redact(piiText, parser.RedactStandard)
	assert.Contains(t, standard.Text, "[EMAIL]")
	assert.Contains(t, standard.Text, "[PHONE]")
	assert.Contains(t, standard.Text, "42 Main Street")
	assert.Equal(t, parser.RedactStandard, standard.RedactionLevel)

	aggressive := parser.Redact(piiText, parser.RedactAggressive)
	assert.Contains(t, aggressive.Text, "[ADDRESS]")
	assert.NotContains(t, aggressive.Text, "Main Street")
}

func TestRedact_Records(t *testing.T) {
	res := parser.Redact("contact: a@b.io", parser.RedactStandard)
	require.Len(t, res.Redactions, 1)
	assert.Equal(t, parser.Redaction{Type: "email", Original: "a@b.io", Replacement: "[EMAIL]", Position: 9}, res.Redactions[0])
	assert.Equal(t, "contact: [EMAIL]", res.Text)
}

func TestRedact_UnknownLevelFallsBack(t *testing.T) {
	res := parser.Redact("a@b.io", parser.RedactionLevel("paranoid"))
	assert.Equal(t, parser.RedactStandard, res.RedactionLevel)
	assert.Equal(t, "[EMAIL]", res.Text)
}

func TestParseRedactionLevel(t *testing.T) {
	level, err := parser.ParseRedactionLevel("")
	require.NoError(t, err)
	assert.Equal(t, parser.RedactStandard, level)

	level, err = parser.ParseRedactionLevel(" Aggressive ")
	require.NoError(t, err)
	assert.Equal(t, parser.RedactAggressive, level)

	_, err = parser.ParseRedactionLevel("paranoid")
	assert.True(t, errors.Is(err, matching.ErrValidation))
}
