package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// 支持的上传类型
const (
	MimePDF  = "application/pdf"
	MimeText = "text/plain"
)

// DetectMimeType 根据扩展名判断文件类型，不支持时返回空串
func DetectMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".txt":
		return MimeText
	default:
		return ""
	}
}

// EinoPDFTextExtractor 使用 Eino PDF Parser 提取文本，纯文本文件直接读取
type EinoPDFTextExtractor struct {
	parser  *pdf.PDFParser
	logger  *log.Logger
	timeout time.Duration
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.logger = logger
	}
}

// WithParseTimeout 设置单个文件的解析超时
func WithParseTimeout(d time.Duration) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEinoPDFTextExtractor 初始化 Eino PDF 文本提取器
// 默认配置为不按页面分割，以获取整个文档的连续文本
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &EinoPDFTextExtractor{
		parser:  p,
		logger:  log.New(os.Stderr, "[PDF解析器] ", log.LstdFlags),
		timeout: 30 * time.Second,
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// ExtractText 按类型提取上传文件的文本。不支持的类型与空文本返回校验错误。
func (e *EinoPDFTextExtractor) ExtractText(ctx context.Context, filename, mimeType string, data []byte) (string, map[string]interface{}, error) {
	if mimeType == "" {
		mimeType = DetectMimeType(filename)
	}

	var (
		text string
		meta map[string]interface{}
		err  error
	)
	switch mimeType {
	case MimePDF:
		text, meta, err = e.ExtractTextFromReader(ctx, bytes.NewReader(data), filename, map[string]interface{}{
			"original_name": filename,
		})
		if err != nil {
			return "", nil, err
		}
	case MimeText:
		if !utf8.Valid(data) {
			return "", nil, matching.NewValidationError("extract", "文本文件不是合法的 UTF-8 编码")
		}
		text = string(data)
		meta = map[string]interface{}{"original_name": filename, "pages": 1}
	default:
		return "", nil, matching.NewValidationError("extract", fmt.Sprintf("不支持的文件类型: %s (仅支持 PDF 与 TXT)", filename))
	}

	if strings.TrimSpace(text) == "" {
		return "", nil, matching.NewValidationError("extract", "未能从文件中提取到文本")
	}
	return text, meta, nil
}

// ExtractTextFromReader 从 io.Reader 中提取 PDF 文本
// 返回: 提取的文本内容, 解析器元数据, 错误
func (e *EinoPDFTextExtractor) ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string, extraMeta map[string]interface{}) (string, map[string]interface{}, error) {
	if extraMeta == nil {
		extraMeta = make(map[string]interface{})
	}

	startTime := time.Now()
	e.logger.Printf("开始从Reader提取PDF文本 (URI: %s)", uri)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(extraMeta),
	)

	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("从Reader提取PDF失败: %s (用时 %.2f秒)", err, duration.Seconds())
		return "", extraMeta, matching.NewValidationError("extract", fmt.Sprintf("PDF 解析失败 (%s): %v", uri, err))
	}
	if len(docs) == 0 {
		return "", extraMeta, matching.NewValidationError("extract", fmt.Sprintf("PDF 解析无结果: %s", uri))
	}

	// 合并所有文档的内容（以防万一返回了多个）
	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}
	fullContent := sb.String()

	finalMetadata := make(map[string]interface{})
	if docs[0].MetaData != nil {
		for k, v := range docs[0].MetaData {
			finalMetadata[k] = v
		}
	}
	for k, v := range extraMeta {
		finalMetadata[k] = v
	}
	finalMetadata["processing_duration_ms"] = duration.Milliseconds()
	finalMetadata["pages"] = len(docs)
	finalMetadata["text_length"] = utf8.RuneCountInString(fullContent)

	e.logger.Printf("PDF提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(fullContent), duration.Seconds())
	return fullContent, finalMetadata, nil
}
