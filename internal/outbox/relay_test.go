package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/12222526/Rag-Resume/internal/storage/models"

	"github.com/stretchr/testify/assert"
)

func TestMarkFailedAttempt_FailsAfterMaxRetries(t *testing.T) {
	msg := &models.OutboxMessage{Status: models.OutboxStatusPending}
	for i := 1; i < maxRetryCount; i++ {
		markFailedAttempt(msg, errors.New("nack"))
		assert.Equal(t, models.OutboxStatusPending, msg.Status, "第 %d 次失败后仍应为 PENDING", i)
	}
	markFailedAttempt(msg, errors.New("nack"))
	assert.Equal(t, models.OutboxStatusFailed, msg.Status)
	assert.Equal(t, maxRetryCount, msg.RetryCount)
	assert.Equal(t, "nack", msg.ErrorMessage)
}

func TestMarkSent_ClearsError(t *testing.T) {
	msg := &models.OutboxMessage{Status: models.OutboxStatusPending, ErrorMessage: "timeout", RetryCount: 2}
	now := time.Now()
	markSent(msg, now)
	assert.Equal(t, models.OutboxStatusSent, msg.Status)
	assert.Empty(t, msg.ErrorMessage)
	if assert.NotNil(t, msg.ProcessedAt) {
		assert.True(t, msg.ProcessedAt.Equal(now))
	}
}

func TestNewMessageRelay_Options(t *testing.T) {
	r := NewMessageRelay(nil, nil, WithPollingInterval(time.Second), WithBatchSize(50), WithBatchSize(-1), WithLogger(nil))
	assert.Equal(t, time.Second, r.pollingInterval)
	assert.Equal(t, 50, r.batchSize)
	assert.NotNil(t, r.logger)

	d := NewMessageRelay(nil, nil)
	assert.Equal(t, defaultPollingInterval, d.pollingInterval)
	assert.Equal(t, defaultBatchSize, d.batchSize)
}

func TestStop_Idempotent(t *testing.T) {
	r := NewMessageRelay(nil, nil, WithPollingInterval(time.Hour))
	r.Start()
	r.Stop()
	r.Stop()
}
