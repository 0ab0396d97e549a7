package processor

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"
	"github.com/12222526/Rag-Resume/internal/storage"
)

// Components 业务组件依赖，各服务按需取用
// Objects / Vectors / JobCache / AskCache / Locker 为可选组件，nil 时对应功能降级
type Components struct {
	Extractor TextExtractor
	Chunker   *matching.Chunker
	Embedder  matching.Embedder
	Scorer    *matching.Scorer

	Resumes ResumeRepository
	Jobs    JobRepository
	Matches MatchRepository

	Objects  storage.ObjectStorage
	Vectors  storage.VectorDatabase
	JobCache JobChunkCache
	AskCache AskCache
	Locker   Locker
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	EventsExchange   string // 为空时不写 outbox 事件
	EmbedBatchSize   int
	EmbedConcurrency int
	DefaultTopN      int
	DefaultAskK      int
	SearchLimit      int
	MaxUploadBytes   int64
	RedactionLevel   parser.RedactionLevel
	MatchLockTTL     time.Duration
	Debug            bool
	Logger           *log.Logger
	Now              func() time.Time
}

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// DefaultSettings 返回与默认配置一致的设置
func DefaultSettings() *Settings {
	return &Settings{
		EmbedBatchSize:   10,
		EmbedConcurrency: 4,
		DefaultTopN:      10,
		DefaultAskK:      matching.DefaultAskK,
		SearchLimit:      matching.DefaultSearchLimit,
		MaxUploadBytes:   10 << 20,
		RedactionLevel:   parser.RedactStandard,
		MatchLockTTL:     time.Minute,
		Logger:           log.New(io.Discard, "", 0),
		Now:              time.Now,
	}
}

// SettingsFromConfig 由全局配置构造设置
func SettingsFromConfig(cfg *config.Config, opts ...SettingOpt) (*Settings, error) {
	set := DefaultSettings()
	level, err := parser.ParseRedactionLevel(cfg.Matching.RedactionLevel)
	if err != nil {
		return nil, fmt.Errorf("redaction_level 配置无效: %w", err)
	}
	set.RedactionLevel = level
	set.EmbedBatchSize = cfg.Embedding.BatchSize
	set.EmbedConcurrency = cfg.Embedding.Concurrency
	set.DefaultTopN = cfg.Matching.DefaultTopN
	set.DefaultAskK = cfg.Matching.DefaultAskK
	set.SearchLimit = cfg.Matching.SearchLimit
	set.MaxUploadBytes = int64(cfg.Matching.MaxUploadMB) << 20
	if cfg.Redis.MatchLockSeconds > 0 {
		set.MatchLockTTL = time.Duration(cfg.Redis.MatchLockSeconds) * time.Second
	}
	set.Debug = cfg.Logger.Level == "debug"
	for _, opt := range opts {
		opt(set)
	}
	return set, nil
}

// ----- 组件选项 -----

// WithcompExtractor 设置文本提取器
func WithcompExtractor(e TextExtractor) ComponentOpt {
	return func(c *Components) { c.Extractor = e }
}

// WithcompEmbedder 设置向量化后端
func WithcompEmbedder(e matching.Embedder) ComponentOpt {
	return func(c *Components) { c.Embedder = e }
}

// WithcompRepository 设置同时实现三个仓储接口的存储（通常是 MySQL）
func WithcompRepository(repo interface {
	ResumeRepository
	JobRepository
	MatchRepository
}) ComponentOpt {
	return func(c *Components) {
		c.Resumes = repo
		c.Jobs = repo
		c.Matches = repo
	}
}

// WithcompStorage 从聚合存储中装配仓储、对象存储、向量库与缓存，未初始化的组件保持 nil
func WithcompStorage(s *storage.Storage) ComponentOpt {
	return func(c *Components) {
		if s == nil {
			return
		}
		if s.MySQL != nil {
			c.Resumes, c.Jobs, c.Matches = s.MySQL, s.MySQL, s.MySQL
		}
		if s.MinIO != nil {
			c.Objects = s.MinIO
		}
		if s.Qdrant != nil {
			c.Vectors = s.Qdrant
		}
		if s.Redis != nil {
			c.JobCache, c.AskCache, c.Locker = s.Redis, s.Redis, s.Redis
		}
	}
}

// ----- 设置选项 -----

// WithsetDebug 设置调试模式
func WithsetDebug(debug bool) SettingOpt {
	return func(s *Settings) { s.Debug = debug }
}

// WithsetLogger 设置日志记录器
func WithsetLogger(logger *log.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// WithsetEventsExchange 开启 outbox 事件
func WithsetEventsExchange(exchange string) SettingOpt {
	return func(s *Settings) { s.EventsExchange = exchange }
}

// WithsetClock 替换时钟，测试使用
func WithsetClock(now func() time.Time) SettingOpt {
	return func(s *Settings) {
		if now != nil {
			s.Now = now
		}
	}
}

// serviceLogger 为服务派生带前缀的日志记录器
func serviceLogger(set *Settings, prefix string) *log.Logger {
	if set.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return log.New(set.Logger.Writer(), prefix, set.Logger.Flags())
}

func (s *Settings) embedOptions() []matching.BatchOption {
	return []matching.BatchOption{
		matching.WithBatchSize(s.EmbedBatchSize),
		matching.WithConcurrency(s.EmbedConcurrency),
	}
}
