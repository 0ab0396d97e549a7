package processor

import (
	"context"
	"time"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/storage"
	"github.com/12222526/Rag-Resume/internal/storage/models"
)

//
// 文本提取
//

// TextExtractor 上传文件转纯文本 (PDF / TXT)
type TextExtractor interface {
	// ExtractText 返回提取的文本与附加元数据（页数、耗时等）
	ExtractText(ctx context.Context, filename, mimeType string, data []byte) (string, map[string]interface{}, error)
}

//
// 持久化，MySQL 实现
//

// ResumeRepository 简历仓储
type ResumeRepository interface {
	CreateResume(ctx context.Context, resume *models.Resume, chunks []models.ResumeChunk, event *models.OutboxMessage) error
	UpdateResumeChunkPointIDs(ctx context.Context, resumeID string, pointIDs []string) error
	UpdateResumeObjectKeys(ctx context.Context, resumeID, originalKey, parsedKey string) error
	GetResume(ctx context.Context, resumeID string, withChunks bool) (*models.Resume, error)
	CountChunks(ctx context.Context, resumeID string) (int64, error)
	ListResumes(ctx context.Context, q string, limit, offset int) ([]models.Resume, int64, error)
	// ListResumesWithChunks limit <= 0 表示全部
	ListResumesWithChunks(ctx context.Context, limit, offset int) ([]models.Resume, int64, error)
	// ScanResumesWithChunks 键集分页，after 为 nil 时从头开始
	ScanResumesWithChunks(ctx context.Context, after *storage.ResumeCursor, limit int) ([]models.Resume, error)
	ResumesByIDs(ctx context.Context, ids []string) (map[string]models.Resume, error)
	DeleteResume(ctx context.Context, resumeID string, event *models.OutboxMessage) (*models.Resume, error)
}

// JobRepository 岗位仓储
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job, chunks []models.JobChunk) error
	GetJob(ctx context.Context, jobID string, withChunks bool) (*models.Job, error)
	// UpdateJob chunks 为 nil 时保留原分块
	UpdateJob(ctx context.Context, job *models.Job, chunks []models.JobChunk) error
	DeactivateJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]models.Job, int64, error)
}

// MatchRepository 匹配结果仓储
type MatchRepository interface {
	ReplaceMatches(ctx context.Context, jobID string, matches []models.JobMatch, event *models.OutboxMessage) error
	ListMatches(ctx context.Context, jobID string) ([]models.JobMatch, error)
}

var (
	_ ResumeRepository = (*storage.MySQL)(nil)
	_ JobRepository    = (*storage.MySQL)(nil)
	_ MatchRepository  = (*storage.MySQL)(nil)
)

//
// 缓存与锁，Redis 实现
//

// JobChunkCache 岗位分块向量缓存，未命中返回 storage.ErrCacheMiss
type JobChunkCache interface {
	GetJobChunks(ctx context.Context, jobID string) ([]matching.EmbeddedChunk, error)
	SetJobChunks(ctx context.Context, jobID string, chunks []matching.EmbeddedChunk) error
	DeleteJobChunks(ctx context.Context, jobID string) error
}

// AskCache 问答结果缓存，键带简历集合版本号，简历增删时递增版本使旧结果失效
type AskCache interface {
	GetAskResult(ctx context.Context, version int64, query string, k int) ([]byte, error)
	SetAskResult(ctx context.Context, version int64, query string, k int, payload []byte) error
	ResumeSetVersion(ctx context.Context) (int64, error)
	BumpResumeSetVersion(ctx context.Context) (int64, error)
}

// Locker 分布式锁，未获取到锁时返回空串
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

var (
	_ JobChunkCache = (*storage.Redis)(nil)
	_ AskCache      = (*storage.Redis)(nil)
	_ Locker        = (*storage.Redis)(nil)
)
