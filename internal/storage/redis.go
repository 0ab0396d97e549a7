package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/constants"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("rag-resume/storage/redis")

// Redis操作前缀采样率配置
var redisKeySamplingRates = map[string]float64{
	constants.AppPrefix + ":" + constants.JobModulePrefix + ":" + constants.EntityLock:   0.5,
	constants.AppPrefix + ":" + constants.JobModulePrefix + ":" + constants.EntityChunks: 0.25,
	constants.AppPrefix + ":" + constants.SearchModulePrefix + ":" + constants.EntityAsk: 0.05,
}

var (
	rnd      = rand.New(rand.NewSource(time.Now().UnixNano()))
	rndMutex sync.Mutex
)

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}
	// 默认采样率5%
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis 封装岗位向量缓存、问答缓存与匹配锁
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建 Redis 客户端并挂载 OpenTelemetry 钩子
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	})

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) jobChunksTTL() time.Duration {
	if r.config.JobVectorTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(r.config.JobVectorTTLHours) * time.Hour
}

func (r *Redis) askTTL() time.Duration {
	if r.config.AskCacheTTLSecond <= 0 {
		return time.Minute
	}
	return time.Duration(r.config.AskCacheTTLSecond) * time.Second
}

// MatchLockTTL 匹配锁的过期时间
func (r *Redis) MatchLockTTL() time.Duration {
	if r.config.MatchLockSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.config.MatchLockSeconds) * time.Second
}

// Get 获取键的值，未命中返回 ErrCacheMiss
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Get", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()
	if span != nil {
		switch {
		case err == redis.Nil:
			// key不存在不算错误
			span.SetStatus(codes.Ok, "key not found")
			span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
		case err != nil:
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		default:
			span.SetAttributes(
				attribute.Bool("db.redis.key_exists", true),
				attribute.Int("db.redis.value_length", len(val)),
			)
			span.SetStatus(codes.Ok, "")
		}
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Set", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			attribute.Int("db.redis.value_length", len(value)),
		)
		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	err := r.Client.Set(ctx, key, value, expiration).Err()
	if span != nil {
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	return err
}

// SetJobChunks 缓存岗位的分块与向量
func (r *Redis) SetJobChunks(ctx context.Context, jobID string, chunks []matching.EmbeddedChunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("序列化岗位分块失败: %w", err)
	}
	return r.Set(ctx, fmt.Sprintf(constants.KeyJobChunks, jobID), string(data), r.jobChunksTTL())
}

// GetJobChunks 读取岗位分块缓存，未命中返回 ErrCacheMiss
func (r *Redis) GetJobChunks(ctx context.Context, jobID string) ([]matching.EmbeddedChunk, error) {
	val, err := r.Get(ctx, fmt.Sprintf(constants.KeyJobChunks, jobID))
	if err != nil {
		return nil, err
	}
	var chunks []matching.EmbeddedChunk
	if err := json.Unmarshal([]byte(val), &chunks); err != nil {
		return nil, fmt.Errorf("反序列化岗位分块失败: %w", err)
	}
	return chunks, nil
}

// DeleteJobChunks 岗位更新或下线时失效缓存
func (r *Redis) DeleteJobChunks(ctx context.Context, jobID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Del(ctx, fmt.Sprintf(constants.KeyJobChunks, jobID)).Err()
}

// AskCacheKey 问答缓存键，查询文本取哈希。
// version 为简历集合版本号，简历增删后旧键不再命中。
func AskCacheKey(version int64, query string, k int) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf(constants.KeyAskResult, version, hex.EncodeToString(sum[:]), k)
}

// ResumeSetVersion 读取简历集合版本号，键不存在时为 0
func (r *Redis) ResumeSetVersion(ctx context.Context) (int64, error) {
	val, err := r.Get(ctx, constants.KeyResumeSetVersion)
	if errors.Is(err, ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("简历集合版本号无效 %q: %w", val, err)
	}
	return v, nil
}

// BumpResumeSetVersion 简历上传或删除后递增版本号
func (r *Redis) BumpResumeSetVersion(ctx context.Context) (int64, error) {
	if r.Client == nil {
		return 0, fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Incr(ctx, constants.KeyResumeSetVersion).Result()
}

// SetAskResult 缓存问答结果 JSON
func (r *Redis) SetAskResult(ctx context.Context, version int64, query string, k int, payload []byte) error {
	return r.Set(ctx, AskCacheKey(version, query, k), string(payload), r.askTTL())
}

// GetAskResult 读取问答结果缓存，未命中返回 ErrCacheMiss
func (r *Redis) GetAskResult(ctx context.Context, version int64, query string, k int) ([]byte, error) {
	val, err := r.Get(ctx, AskCacheKey(version, query, k))
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

// AcquireLock 尝试获取一个分布式锁，未获取到时返回空串
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	lockValue := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return lockValue, nil
}

// 如果key存在且值匹配，则删除key
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// ReleaseLock 释放一个分布式锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	res, err := releaseLockScript.Run(ctx, r.Client, []string{lockKey}, lockValue).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// JobMatchLockKey 岗位匹配锁键
func JobMatchLockKey(jobID string) string {
	return fmt.Sprintf(constants.KeyJobMatchLock, jobID)
}
