package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/12222526/Rag-Resume/internal/constants"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"
	"github.com/12222526/Rag-Resume/internal/storage"
	"github.com/12222526/Rag-Resume/internal/storage/models"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// 定义tracer
var tracer = otel.Tracer("rag-resume/processor")

const maxPageLimit = 100

// Pagination 分页信息
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// normalizePage 规范化分页参数
func normalizePage(limit, offset, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func newPagination(total int64, limit, offset int) Pagination {
	return Pagination{Total: total, Limit: limit, Offset: offset, HasMore: int64(offset+limit) < total}
}

// UploadedResume 上传结果
type UploadedResume struct {
	ID           string            `json:"id"`
	Filename     string            `json:"filename"`
	OriginalName string            `json:"originalName"`
	Metadata     matching.Metadata `json:"metadata"`
	ChunkCount   int               `json:"chunkCount"`
	TextLength   int               `json:"textLength"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// ResumeSummary 简历列表项，不含正文
type ResumeSummary struct {
	ID           string            `json:"id"`
	Filename     string            `json:"filename"`
	OriginalName string            `json:"originalName"`
	FileSize     int64             `json:"fileSize"`
	MimeType     string            `json:"mimeType"`
	Metadata     matching.Metadata `json:"metadata"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// ResumeDetail 单份简历，含正文（可脱敏）
type ResumeDetail struct {
	ResumeSummary
	Text           string                `json:"text"`
	RedactionLevel parser.RedactionLevel `json:"redactionLevel,omitempty"`
}

// ResumeList 简历分页列表
type ResumeList struct {
	Resumes    []ResumeSummary `json:"resumes"`
	Pagination Pagination      `json:"pagination"`
}

func newResumeSummary(r *models.Resume) ResumeSummary {
	return ResumeSummary{
		ID:           r.ResumeID,
		Filename:     r.Filename,
		OriginalName: r.OriginalName,
		FileSize:     r.FileSize,
		MimeType:     r.MimeType,
		Metadata:     r.Metadata(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ResumeService 简历入库、查询与删除
type ResumeService struct {
	comp   *Components
	set    *Settings
	logger *log.Logger
}

// NewResumeService 创建简历服务
func NewResumeService(comp *Components, set *Settings, opts ...SettingOpt) (*ResumeService, error) {
	if comp == nil || set == nil {
		return nil, fmt.Errorf("组件与设置不能为空")
	}
	if comp.Extractor == nil || comp.Chunker == nil || comp.Embedder == nil || comp.Resumes == nil {
		return nil, fmt.Errorf("ResumeService 需要 Extractor、Chunker、Embedder 与 Resumes 组件")
	}
	for _, opt := range opts {
		opt(set)
	}
	return &ResumeService{comp: comp, set: set, logger: serviceLogger(set, "[ResumeService] ")}, nil
}

// Upload 解析、分块、向量化并持久化一份简历。
// 向量化失败时整份简历不入库；对象存储与向量索引失败只记录警告。
func (s *ResumeService) Upload(ctx context.Context, originalName string, data []byte) (*UploadedResume, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("resume.original_name", originalName), attribute.Int("resume.size", len(data)))

	if len(data) == 0 {
		return nil, matching.NewValidationError("upload", "No file uploaded")
	}
	if s.set.MaxUploadBytes > 0 && int64(len(data)) > s.set.MaxUploadBytes {
		return nil, matching.NewValidationError("upload", fmt.Sprintf("文件大小超过限制 %d 字节", s.set.MaxUploadBytes))
	}
	mimeType := parser.DetectMimeType(originalName)
	if mimeType == "" {
		return nil, matching.NewValidationError("upload", "Only PDF and TXT files are allowed")
	}

	text, extractMeta, err := s.comp.Extractor.ExtractText(ctx, originalName, mimeType, data)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	chunks := s.comp.Chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, matching.NewValidationError("upload", "文件中没有可用的文本内容")
	}
	embedded, err := matching.EmbedChunks(ctx, s.comp.Embedder, chunks, s.set.embedOptions()...)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		s.logger.Printf("简历 %s 向量化失败，放弃入库: %v", originalName, err)
		return nil, err
	}

	meta := parser.ExtractMetadata(text)
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成简历ID失败: %w", err)
	}
	resumeID := id.String()
	ext := strings.ToLower(filepath.Ext(originalName))
	sum := md5.Sum([]byte(text))

	metaJSON, err := models.ToJSON(meta)
	if err != nil {
		return nil, err
	}
	resume := &models.Resume{
		ResumeID:            resumeID,
		Filename:            resumeID + ext,
		OriginalName:        originalName,
		FileSize:            int64(len(data)),
		MimeType:            mimeType,
		ParsedText:          text,
		TextMD5:             hex.EncodeToString(sum[:]),
		CandidateName:       meta.Name,
		MetadataJSON:        metaJSON,
		EmbeddingDimensions: len(embedded[0].Vector),
	}
	rows, err := models.NewResumeChunks(resumeID, embedded)
	if err != nil {
		return nil, err
	}

	var event *models.OutboxMessage
	if s.set.EventsExchange != "" {
		event, err = storage.NewOutboxEvent(resumeID, constants.EventResumeIngested, s.set.EventsExchange, storage.ResumeIngestedEvent{
			ResumeID:            resumeID,
			OriginalName:        originalName,
			CandidateName:       meta.Name,
			MimeType:            mimeType,
			FileSize:            resume.FileSize,
			ChunkCount:          len(rows),
			EmbeddingDimensions: resume.EmbeddingDimensions,
			IngestedAt:          s.set.Now(),
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.comp.Resumes.CreateResume(ctx, resume, rows, event); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("保存简历失败: %w", err)
	}
	s.invalidateAsk(ctx)
	s.logger.Printf("简历入库成功: id=%s, 候选人=%s, 文件=%s, 分块=%d, 页数=%v",
		resumeID, tracing.MaskPII(meta.Name), originalName, len(rows), extractMeta["pages"])

	var warnings []string
	if err := s.storeObjects(ctx, resumeID, ext, mimeType, data, text); err != nil {
		s.logger.Printf("警告: %v", err)
		warnings = append(warnings, err.Error())
	}
	if err := s.indexVectors(ctx, resumeID, meta.Name, embedded); err != nil {
		s.logger.Printf("警告: %v", err)
		warnings = append(warnings, err.Error())
	}

	span.SetAttributes(attribute.String("resume.id", resumeID), attribute.Int("resume.chunks", len(rows)))
	span.SetStatus(codes.Ok, "")
	return &UploadedResume{
		ID:           resumeID,
		Filename:     resume.Filename,
		OriginalName: originalName,
		Metadata:     meta,
		ChunkCount:   len(rows),
		TextLength:   utf8.RuneCountInString(text),
		Warnings:     warnings,
	}, nil
}

// invalidateAsk 简历集合变化后递增版本号，已缓存的问答结果随之失效
func (s *ResumeService) invalidateAsk(ctx context.Context) {
	if s.comp.AskCache == nil {
		return
	}
	if _, err := s.comp.AskCache.BumpResumeSetVersion(ctx); err != nil {
		s.logger.Printf("警告: %v", NewCacheError("", "bump-resume-version", err))
	}
}

func (s *ResumeService) storeObjects(ctx context.Context, resumeID, ext, mimeType string, data []byte, text string) error {
	if s.comp.Objects == nil {
		return nil
	}
	originalKey, err := s.comp.Objects.UploadResumeFile(ctx, resumeID, ext, mimeType, data)
	if err != nil {
		return NewObjectStoreError(resumeID, "upload-original", err)
	}
	parsedKey, err := s.comp.Objects.UploadParsedText(ctx, resumeID, text)
	if err != nil {
		return NewObjectStoreError(resumeID, "upload-parsed-text", err)
	}
	if err := s.comp.Resumes.UpdateResumeObjectKeys(ctx, resumeID, originalKey, parsedKey); err != nil {
		return NewObjectStoreError(resumeID, "update-object-keys", err)
	}
	return nil
}

func (s *ResumeService) indexVectors(ctx context.Context, resumeID, candidateName string, chunks []matching.EmbeddedChunk) error {
	if s.comp.Vectors == nil {
		return nil
	}
	pointIDs, err := s.comp.Vectors.UpsertResumeChunks(ctx, resumeID, candidateName, chunks)
	if err != nil {
		return NewVectorIndexError(resumeID, "upsert", err)
	}
	if err := s.comp.Resumes.UpdateResumeChunkPointIDs(ctx, resumeID, pointIDs); err != nil {
		return NewVectorIndexError(resumeID, "update-point-ids", err)
	}
	return nil
}

// List 分页查询简历
func (s *ResumeService) List(ctx context.Context, q string, limit, offset int) (*ResumeList, error) {
	limit, offset = normalizePage(limit, offset, 10)
	rows, total, err := s.comp.Resumes.ListResumes(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("查询简历列表失败: %w", err)
	}
	out := &ResumeList{Resumes: make([]ResumeSummary, 0, len(rows)), Pagination: newPagination(total, limit, offset)}
	for i := range rows {
		out.Resumes = append(out.Resumes, newResumeSummary(&rows[i]))
	}
	return out, nil
}

// Get 获取简历详情，redact 为 true 时按默认级别脱敏正文
func (s *ResumeService) Get(ctx context.Context, resumeID string, redact bool) (*ResumeDetail, error) {
	r, err := s.comp.Resumes.GetResume(ctx, resumeID, false)
	if err != nil {
		return nil, err
	}
	detail := &ResumeDetail{ResumeSummary: newResumeSummary(r), Text: r.ParsedText}
	if redact {
		res := parser.Redact(r.ParsedText, s.set.RedactionLevel)
		detail.Text = res.Text
		detail.RedactionLevel = res.RedactionLevel
	}
	return detail, nil
}

// Delete 删除简历及其分块，并清理向量索引与对象存储。历史匹配结果保留。
func (s *ResumeService) Delete(ctx context.Context, resumeID string) error {
	ctx, span := tracer.Start(ctx, "ResumeService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("resume.id", resumeID))

	var event *models.OutboxMessage
	if s.set.EventsExchange != "" {
		var err error
		event, err = storage.NewOutboxEvent(resumeID, constants.EventResumeDeleted, s.set.EventsExchange,
			storage.ResumeDeletedEvent{ResumeID: resumeID, DeletedAt: s.set.Now()})
		if err != nil {
			return err
		}
	}

	deleted, err := s.comp.Resumes.DeleteResume(ctx, resumeID, event)
	if err != nil {
		return err
	}
	s.invalidateAsk(ctx)

	if s.comp.Vectors != nil {
		if err := s.comp.Vectors.DeleteResumePoints(ctx, resumeID); err != nil {
			s.logger.Printf("警告: %v", NewVectorIndexError(resumeID, "delete", err))
		}
	}
	if s.comp.Objects != nil && (deleted.OriginalObjectKey != "" || deleted.ParsedTextObjectKey != "") {
		if err := s.comp.Objects.DeleteResumeObjects(ctx, deleted.OriginalObjectKey, deleted.ParsedTextObjectKey); err != nil {
			s.logger.Printf("警告: %v", NewObjectStoreError(resumeID, "delete", err))
		}
	}
	s.logger.Printf("简历已删除: %s", resumeID)
	return nil
}
