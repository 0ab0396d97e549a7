package parser

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFTextExtractor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err, "创建PDF提取器不应返回错误")
	require.NotNil(t, extractor.parser, "PDF提取器内部的parser不应为nil")
	require.NotNil(t, extractor.logger, "PDF提取器应该有默认的logger")
	assert.Equal(t, 30*time.Second, extractor.timeout)

	customLogger := log.New(os.Stdout, "[测试PDF提取器] ", log.LstdFlags)
	custom, err := NewEinoPDFTextExtractor(ctx, WithEinoLogger(customLogger), WithParseTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, customLogger, custom.logger, "应该使用提供的自定义logger")
	assert.Equal(t, time.Second, custom.timeout)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, MimePDF, DetectMimeType("张三_简历.PDF"))
	assert.Equal(t, MimeText, DetectMimeType("resume.txt"))
	assert.Equal(t, "", DetectMimeType("resume.docx"))
	assert.Equal(t, "", DetectMimeType("resume"))
}

func TestExtractText(t *testing.T) {
	ctx := context.Background()
	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)

	t.Run("纯文本", func(t *testing.T) {
		text, meta, err := extractor.ExtractText(ctx, "resume.txt", "", []byte("Jane Doe\nGo developer"))
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe\nGo developer", text)
		assert.Equal(t, "resume.txt", meta["original_name"])
	})

	t.Run("不支持的类型", func(t *testing.T) {
		_, _, err := extractor.ExtractText(ctx, "resume.docx", "", []byte("x"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, matching.ErrValidation))
	})

	t.Run("空白文本", func(t *testing.T) {
		_, _, err := extractor.ExtractText(ctx, "resume.txt", MimeText, []byte("  \n\t "))
		assert.True(t, errors.Is(err, matching.ErrValidation))
	})

	t.Run("非法UTF-8", func(t *testing.T) {
		_, _, err := extractor.ExtractText(ctx, "resume.txt", MimeText, []byte{0xff, 0xfe, 0xfd})
		assert.True(t, errors.Is(err, matching.ErrValidation))
	})

	t.Run("损坏的PDF", func(t *testing.T) {
		_, _, err := extractor.ExtractText(ctx, "resume.pdf", MimePDF, []byte("not a pdf at all"))
		require.Error(t, err)
	})
}
