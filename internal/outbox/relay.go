package outbox // 发件箱模式：业务写入与事件落库同事务，中继异步投递

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/12222526/Rag-Resume/internal/storage"
	"github.com/12222526/Rag-Resume/internal/storage/models"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5 // 达到后标记为 FAILED
)

// MessageRelay 轮询 outbox 表并将消息发布到消息代理。
type MessageRelay struct {
	db              *gorm.DB
	publisher       storage.EventPublisher
	logger          *log.Logger
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
	tracer          trace.Tracer
}

// RelayOption 配置 MessageRelay
type RelayOption func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(d time.Duration) RelayOption {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 设置每批处理数量
func WithBatchSize(n int) RelayOption {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(l *log.Logger) RelayOption {
	return func(r *MessageRelay) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewMessageRelay 创建一个新的 MessageRelay 实例。
func NewMessageRelay(db *gorm.DB, publisher storage.EventPublisher, opts ...RelayOption) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          log.New(io.Discard, "", 0),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("rag-resume/outbox-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 开始消息中继的轮询过程。
func (r *MessageRelay) Start() {
	r.logger.Printf("MessageRelay 启动, 间隔=%s, 批量=%d", r.pollingInterval, r.batchSize)
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Println("MessageRelay 已停止")
				return
			case <-ticker.C:
				if _, err := r.ProcessPendingMessages(context.Background()); err != nil {
					r.logger.Printf("处理待发送消息失败: %v", err)
				}
			}
		}
	}()
}

// Stop 优雅地停止消息中继服务并等待当前批次结束。
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// ProcessPendingMessages 处理一批待发送消息，返回成功发布的条数。
func (r *MessageRelay) ProcessPendingMessages(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	// 空轮询不创建Span
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED 使多实例可以并行中继
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		r.logger.Printf("查询待发送outbox消息失败: %v", err)
		return 0, err
	}
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	sent := 0
	for i := range messages {
		msg := &messages[i]
		if err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, msg.MessageID, []byte(msg.Payload)); err != nil {
			markFailedAttempt(msg, err)
			r.logger.Printf("发布消息 %s (事件: %s, 聚合: %s) 失败: %v, 重试次数: %d", msg.MessageID, msg.EventType, msg.AggregateID, err, msg.RetryCount)
		} else {
			markSent(msg, time.Now())
			sent++
		}

		// 更新失败时整批回滚，下一轮重新拾取
		if err := tx.Save(msg).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			r.logger.Printf("更新outbox消息 %d 失败: %v", msg.ID, err)
			return 0, err
		}
	}

	span.SetAttributes(attribute.Int("messaging.batch.sent_count", sent))
	return sent, tx.Commit().Error
}

func markSent(msg *models.OutboxMessage, now time.Time) {
	msg.Status = models.OutboxStatusSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}

func markFailedAttempt(msg *models.OutboxMessage, err error) {
	msg.RetryCount++
	msg.ErrorMessage = err.Error()
	if msg.RetryCount >= maxRetryCount {
		msg.Status = models.OutboxStatusFailed
	}
}
