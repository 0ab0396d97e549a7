package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"
	"github.com/12222526/Rag-Resume/internal/storage"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// 原件下载地址有效期
const presignExpiry = 15 * time.Minute

// AskResponse 问答检索结果
type AskResponse struct {
	Query      string               `json:"query"`
	Results    []matching.AskResult `json:"results"`
	TotalFound int                  `json:"totalFound"`
}

// SearchResponse 语义检索结果，分页作用在简历枚举上
type SearchResponse struct {
	Query      string               `json:"query"`
	Results    []matching.SearchHit `json:"results"`
	Pagination Pagination           `json:"pagination"`
	MinScore   int                  `json:"minScore"`
}

// FileInfo 简历文件信息
type FileInfo struct {
	Filename     string    `json:"filename"`
	FileSize     int64     `json:"fileSize"`
	MimeType     string    `json:"mimeType"`
	UploadedAt   time.Time `json:"uploadedAt"`
	LastModified time.Time `json:"lastModified"`
	DownloadURL  string    `json:"downloadUrl,omitempty"`
}

// ProfileStats 简历统计
type ProfileStats struct {
	TotalChunks         int64 `json:"totalChunks"`
	TextLength          int   `json:"textLength"`
	EmbeddingDimensions int   `json:"embeddingDimensions"`
}

// CandidateProfile 候选人档案
type CandidateProfile struct {
	ID             string                `json:"id"`
	ResumeName     string                `json:"resumeName"`
	Metadata       matching.Metadata     `json:"metadata"`
	FileInfo       FileInfo              `json:"fileInfo"`
	Stats          ProfileStats          `json:"stats"`
	Text           *string               `json:"text,omitempty"`
	RedactionLevel parser.RedactionLevel `json:"redactionLevel,omitempty"`
}

// VectorHit 向量库近似检索命中的分块
type VectorHit struct {
	ResumeID      string `json:"resumeId"`
	CandidateName string `json:"candidateName,omitempty"`
	ChunkIndex    int    `json:"chunkIndex"`
	Text          string `json:"text"`
	Score         int    `json:"score"`
}

// VectorSearchResponse 近似检索结果
type VectorSearchResponse struct {
	Query   string      `json:"query"`
	Results []VectorHit `json:"results"`
}

// SearchService 基于已持久化分块向量的精确检索，以及可选的 Qdrant 近似检索
type SearchService struct {
	comp   *Components
	set    *Settings
	logger *log.Logger
}

// NewSearchService 创建检索服务
func NewSearchService(comp *Components, set *Settings, opts ...SettingOpt) (*SearchService, error) {
	if comp == nil || set == nil {
		return nil, fmt.Errorf("组件与设置不能为空")
	}
	if comp.Embedder == nil || comp.Resumes == nil {
		return nil, fmt.Errorf("SearchService 需要 Embedder 与 Resumes 组件")
	}
	for _, opt := range opts {
		opt(set)
	}
	return &SearchService{comp: comp, set: set, logger: serviceLogger(set, "[SearchService] ")}, nil
}

// Ask 返回与自然语言查询最相关的 k 份简历，每份附带最相近的分块证据
func (s *SearchService) Ask(ctx context.Context, query string, k int) (*AskResponse, error) {
	ctx, span := tracer.Start(ctx, "SearchService.Ask")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, matching.NewValidationError("ask", "Query is required")
	}
	if k <= 0 {
		k = s.set.DefaultAskK
	}
	span.SetAttributes(attribute.Int("ask.k", k))

	version, cacheable := s.resumeSetVersion(ctx)
	if cacheable {
		if cached, ok := s.cachedAsk(ctx, version, query, k); ok {
			span.SetAttributes(attribute.Bool("ask.cache_hit", true))
			return cached, nil
		}
	}

	qv, err := matching.Embed(ctx, s.comp.Embedder, query)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, err
	}

	// 每批取前 k 后合并，稳定排序保证与一次性计算的结果一致
	var merged []matching.AskResult
	totalFound := 0
	_, err = forEachResumeBatch(ctx, s.comp.Resumes, s.logger, func(docs []matching.Document) error {
		results, found := matching.Ask(qv, docs, k)
		merged = append(merged, results...)
		totalFound += found
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	if merged == nil {
		merged = []matching.AskResult{}
	}

	resp := &AskResponse{Query: query, Results: merged, TotalFound: totalFound}
	if cacheable {
		s.storeAsk(ctx, version, query, k, resp)
	}
	span.SetAttributes(attribute.Int("ask.total_found", totalFound))
	return resp, nil
}

// resumeSetVersion 版本号读取失败时本次请求不走缓存
func (s *SearchService) resumeSetVersion(ctx context.Context) (int64, bool) {
	if s.comp.AskCache == nil {
		return 0, false
	}
	version, err := s.comp.AskCache.ResumeSetVersion(ctx)
	if err != nil {
		s.logger.Printf("读取简历集合版本号失败，跳过问答缓存: %v", err)
		return 0, false
	}
	return version, true
}

func (s *SearchService) cachedAsk(ctx context.Context, version int64, query string, k int) (*AskResponse, bool) {
	raw, err := s.comp.AskCache.GetAskResult(ctx, version, query, k)
	if err != nil {
		if !errors.Is(err, storage.ErrCacheMiss) {
			s.logger.Printf("读取问答缓存失败: %v", err)
		}
		return nil, false
	}
	var resp AskResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.logger.Printf("问答缓存内容无效，忽略: %v", err)
		return nil, false
	}
	return &resp, true
}

func (s *SearchService) storeAsk(ctx context.Context, version int64, query string, k int, resp *AskResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.comp.AskCache.SetAskResult(ctx, version, query, k, payload); err != nil {
		s.logger.Printf("警告: %v", NewCacheError("", "set-ask-result", err))
	}
}

// Search 对一页简历做语义检索，每份简历只取最佳分块。
// total 为本页命中数，hasMore 依据简历总数计算。
func (s *SearchService) Search(ctx context.Context, query string, limit, offset, minScore int) (*SearchResponse, error) {
	ctx, span := tracer.Start(ctx, "SearchService.Search")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, matching.NewValidationError("search", "Search query is required")
	}
	limit, offset = normalizePage(limit, offset, s.set.SearchLimit)

	qv, err := matching.Embed(ctx, s.comp.Embedder, query)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, err
	}
	docs, totalResumes, err := loadResumePage(ctx, s.comp.Resumes, s.logger, limit, offset)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	hits := matching.Search(qv, docs, minScore)

	return &SearchResponse{
		Query:   query,
		Results: hits,
		Pagination: Pagination{
			Total:   int64(len(hits)),
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+limit) < totalResumes,
		},
		MinScore: minScore,
	}, nil
}

// CandidateProfile 返回候选人档案，includeText 时附带正文，redact 时按配置级别脱敏
func (s *SearchService) CandidateProfile(ctx context.Context, resumeID string, includeText, redact bool) (*CandidateProfile, error) {
	resume, err := s.comp.Resumes.GetResume(ctx, resumeID, false)
	if err != nil {
		if errors.Is(err, matching.ErrNotFound) {
			return nil, matching.NewNotFoundError("candidateProfile", "Candidate not found")
		}
		return nil, err
	}
	chunks, err := s.comp.Resumes.CountChunks(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("统计简历分块失败: %w", err)
	}

	profile := &CandidateProfile{
		ID:         resume.ResumeID,
		ResumeName: resume.OriginalName,
		Metadata:   resume.Metadata(),
		FileInfo: FileInfo{
			Filename:     resume.Filename,
			FileSize:     resume.FileSize,
			MimeType:     resume.MimeType,
			UploadedAt:   resume.CreatedAt,
			LastModified: resume.UpdatedAt,
		},
		Stats: ProfileStats{
			TotalChunks:         chunks,
			TextLength:          utf8.RuneCountInString(resume.ParsedText),
			EmbeddingDimensions: resume.EmbeddingDimensions,
		},
	}
	if chunks == 0 {
		profile.Stats.EmbeddingDimensions = 0
	}

	if s.comp.Objects != nil && resume.OriginalObjectKey != "" {
		url, err := s.comp.Objects.GetPresignedURL(ctx, resume.OriginalObjectKey, presignExpiry)
		if err != nil {
			s.logger.Printf("警告: %v", NewObjectStoreError(resumeID, "presign", err))
		} else {
			profile.FileInfo.DownloadURL = url
		}
	}

	if includeText {
		text := resume.ParsedText
		if redact {
			res := parser.Redact(text, s.set.RedactionLevel)
			text = res.Text
			profile.RedactionLevel = res.RedactionLevel
		}
		profile.Text = &text
	}
	return profile, nil
}

// VectorSearch 在 Qdrant 中检索与查询最相近的分块，结果为近似值
func (s *SearchService) VectorSearch(ctx context.Context, query string, limit int) (*VectorSearchResponse, error) {
	ctx, span := tracer.Start(ctx, "SearchService.VectorSearch")
	defer span.End()

	if s.comp.Vectors == nil {
		return nil, ErrVectorSearchUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, matching.NewValidationError("vectorSearch", "Search query is required")
	}
	limit, _ = normalizePage(limit, 0, s.set.SearchLimit)

	qv, err := matching.Embed(ctx, s.comp.Embedder, query)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, err
	}
	results, err := s.comp.Vectors.SearchChunks(ctx, qv, limit)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, NewVectorIndexError("", "search", err)
	}

	out := &VectorSearchResponse{Query: query, Results: make([]VectorHit, 0, len(results))}
	for _, r := range results {
		hit := VectorHit{
			ResumeID:   r.ResumeID,
			ChunkIndex: r.ChunkIndex,
			Text:       r.Text,
			Score:      matching.ToPercent(float64(r.Score)),
		}
		if name, ok := r.Payload["candidate_name"].(string); ok {
			hit.CandidateName = name
		}
		out.Results = append(out.Results, hit)
	}
	return out, nil
}
