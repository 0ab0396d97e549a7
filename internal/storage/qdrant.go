package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 定义Qdrant的专用tracer
var qdrantTracer = otel.Tracer("rag-resume/storage/qdrant")

// QdrantPointIDNamespace 用于生成确定性的分块点 ID，同一简历同一分块总得到同一个 ID
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("fd6c72c2-5a33-4b53-8e7c-8298f3f5a7e1"))

// ErrVectorDBNotConfigured 未配置 Qdrant
var ErrVectorDBNotConfigured = errors.New("vector database not configured")

// VectorDatabase 向量数据库接口
type VectorDatabase interface {
	UpsertResumeChunks(ctx context.Context, resumeID, candidateName string, chunks []matching.EmbeddedChunk) ([]string, error)
	SearchChunks(ctx context.Context, queryVector []float64, limit int) ([]SearchResult, error)
	DeleteResumePoints(ctx context.Context, resumeID string) error
}

var _ VectorDatabase = (*Qdrant)(nil)

// Qdrant 通过 REST 接口访问向量数据库
type Qdrant struct {
	endpoint       string
	apiKey         string
	collectionName string
	vectorSize     int
	distanceMetric string
	httpClient     *http.Client
}

// SearchResult 表示一个搜索结果项
type SearchResult struct {
	ID         string
	Score      float32
	ResumeID   string
	ChunkIndex int
	Text       string
	Payload    map[string]interface{}
}

// QdrantOption 定义Qdrant构造函数选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHttpTimeout 设置HTTP客户端超时
func WithHttpTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// qdrantStatusError 非 2xx 响应
type qdrantStatusError struct {
	StatusCode int
	Body       string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// NewQdrant 创建Qdrant客户端并确保集合存在
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	q := &Qdrant{
		endpoint:       cfg.Endpoint,
		apiKey:         cfg.APIKey,
		collectionName: cfg.Collection,
		vectorSize:     cfg.Dimension,
		distanceMetric: "Cosine",
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	if q.endpoint == "" {
		q.endpoint = "http://localhost:6333"
	}
	if q.collectionName == "" {
		q.collectionName = "resume_chunks"
	}
	if q.vectorSize <= 0 {
		return nil, fmt.Errorf("qdrant向量维度必须为正数")
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(context.Background()); err != nil {
		return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", q.collectionName, err)
	}

	log.Printf("成功连接到Qdrant服务器: %s，并确保集合 '%s' 存在", q.endpoint, q.collectionName)
	return q, nil
}

// ensureCollectionExists 集合不存在时创建，维度不一致时告警
func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	var collectionInfo struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	err := q.doRequest(ctx, http.MethodGet, "/collections/"+q.collectionName, nil, &collectionInfo)
	var statusErr *qdrantStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		span.AddEvent("collection_not_found")
		log.Printf("集合 '%s' 不存在，将创建新集合", q.collectionName)
		return q.createCollection(ctx)
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	vectors := collectionInfo.Result.Config.Params.Vectors
	if vectors.Size != q.vectorSize || vectors.Distance != q.distanceMetric {
		log.Printf("警告: 现有集合配置与当前配置不匹配。现有: 维度=%d, 距离=%s; 当前: 维度=%d, 距离=%s",
			vectors.Size, vectors.Distance, q.vectorSize, q.distanceMetric)
		span.AddEvent("collection_config_mismatch", trace.WithAttributes(
			attribute.Int("existing_vector_size", vectors.Size),
			attribute.String("existing_distance", vectors.Distance),
		))
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (q *Qdrant) createCollection(ctx context.Context) error {
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
		"optimizers_config": map[string]interface{}{
			"default_segment_number": 2,
		},
	}
	if err := q.doRequest(ctx, http.MethodPut, "/collections/"+q.collectionName, body, nil); err != nil {
		return fmt.Errorf("创建集合失败: %w", err)
	}
	// 按简历删除点时使用的 payload 索引
	index := map[string]interface{}{"field_name": "resume_id", "field_schema": "keyword"}
	if err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/index?wait=true", q.collectionName), index, nil); err != nil {
		log.Printf("警告: 创建 resume_id 索引失败: %v", err)
	}
	log.Printf("已成功创建Qdrant集合: %s，维度: %d", q.collectionName, q.vectorSize)
	return nil
}

// PointID 简历分块对应的确定性点 ID
func PointID(resumeID string, chunkIndex int) string {
	return uuid.NewV5(QdrantPointIDNamespace, fmt.Sprintf("resume_id:%s_chunk_id:%d", resumeID, chunkIndex)).String()
}

// UpsertResumeChunks 写入简历分块向量，返回与分块一一对应的点 ID
func (q *Qdrant) UpsertResumeChunks(ctx context.Context, resumeID, candidateName string, chunks []matching.EmbeddedChunk) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertResumeChunks",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("resume.id", resumeID),
		attribute.Int("vectors.count", len(chunks)),
	)

	if len(chunks) == 0 {
		span.SetStatus(codes.Ok, "no vectors to store")
		return []string{}, nil
	}

	points := make([]map[string]interface{}, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		if len(c.Vector) != q.vectorSize {
			err := fmt.Errorf("向量维度(%d)与配置维度(%d)不匹配", len(c.Vector), q.vectorSize)
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			return nil, err
		}
		id := PointID(resumeID, i)
		ids = append(ids, id)
		points = append(points, map[string]interface{}{
			"id":     id,
			"vector": c.Vector,
			"payload": map[string]interface{}{
				"resume_id":      resumeID,
				"chunk_index":    i,
				"candidate_name": candidateName,
				"content_text":   tracing.TruncateString(c.Text, 1000),
				"start_index":    c.StartOffset,
				"end_index":      c.EndOffset,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPut, path, map[string]interface{}{"points": points}, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

// SearchChunks 近似检索与查询向量最相近的分块
func (q *Qdrant) SearchChunks(ctx context.Context, queryVector []float64, limit int) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.SearchChunks",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if limit <= 0 {
		limit = 10
	}
	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search_vectors"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("search.limit", limit),
		attribute.Int("query_vector.size", len(queryVector)),
	)

	if len(queryVector) != q.vectorSize {
		err := fmt.Errorf("查询向量维度(%d)与配置维度(%d)不匹配", len(queryVector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	req := map[string]interface{}{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collectionName), req, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	out := make([]SearchResult, 0, len(result.Result))
	for _, p := range result.Result {
		r := SearchResult{ID: p.ID, Score: p.Score, Payload: p.Payload}
		r.ResumeID, _ = p.Payload["resume_id"].(string)
		r.Text, _ = p.Payload["content_text"].(string)
		if idx, ok := p.Payload["chunk_index"].(float64); ok {
			r.ChunkIndex = int(idx)
		}
		out = append(out, r)
	}

	span.SetAttributes(
		attribute.Int("search.results.count", len(out)),
		attribute.Float64("qdrant.response_time", result.Time),
	)
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// DeleteResumePoints 删除某份简历的全部点
func (q *Qdrant) DeleteResumePoints(ctx context.Context, resumeID string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.DeleteResumePoints",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "qdrant"),
			attribute.String("db.operation", "delete_points"),
			attribute.String("db.collection", q.collectionName),
			attribute.String("resume.id", resumeID),
		))
	defer span.End()

	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "resume_id", "match": map[string]interface{}{"value": resumeID}},
			},
		},
	}
	if err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collectionName), body, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// CountPoints 获取集合中的点数量
func (q *Qdrant) CountPoints(ctx context.Context) (int64, error) {
	var result struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.collectionName), map[string]interface{}{"exact": true}, &result)
	if err != nil {
		return 0, err
	}
	return result.Result.Count, nil
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		reader = bytes.NewReader(jsonBody)
		span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
	}

	req, err := http.NewRequestWithContext(ctx, method, q.endpoint+path, reader)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	// 注入trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &qdrantStatusError{StatusCode: resp.StatusCode, Body: tracing.TruncateString(string(respBody), tracing.DefaultMaxLength)}
		tracing.RecordHTTPError(span, statusErr, resp.StatusCode)
		return statusErr
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
