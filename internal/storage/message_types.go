package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/12222526/Rag-Resume/internal/storage/models"

	"github.com/google/uuid"
)

// ResumeIngestedEvent 简历入库完成事件
type ResumeIngestedEvent struct {
	ResumeID            string    `json:"resume_id"`
	OriginalName        string    `json:"original_name"`
	CandidateName       string    `json:"candidate_name,omitempty"`
	MimeType            string    `json:"mime_type"`
	FileSize            int64     `json:"file_size"`
	ChunkCount          int       `json:"chunk_count"`
	EmbeddingDimensions int       `json:"embedding_dimensions"`
	OriginalObjectKey   string    `json:"original_object_key,omitempty"`
	ParsedTextObjectKey string    `json:"parsed_text_object_key,omitempty"`
	IngestedAt          time.Time `json:"ingested_at"`
}

// ResumeDeletedEvent 简历删除事件
type ResumeDeletedEvent struct {
	ResumeID  string    `json:"resume_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// JobMatchesReplacedEvent 岗位匹配结果整体替换事件
type JobMatchesReplacedEvent struct {
	JobID             string    `json:"job_id"`
	TotalCandidates   int       `json:"total_candidates"`
	MatchedCandidates int       `json:"matched_candidates"`
	TopN              int       `json:"top_n"`
	TopResumeIDs      []string  `json:"top_resume_ids"`
	MatchedAt         time.Time `json:"matched_at"`
}

// NewOutboxEvent 构造待写入 outbox 表的消息，routing key 即事件类型
func NewOutboxEvent(aggregateID, eventType, exchange string, payload interface{}) (*models.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化事件 %s 失败: %w", eventType, err)
	}
	return &models.OutboxMessage{
		MessageID:        uuid.NewString(),
		AggregateID:      aggregateID,
		EventType:        eventType,
		Payload:          string(body),
		TargetExchange:   exchange,
		TargetRoutingKey: eventType,
		Status:           models.OutboxStatusPending,
	}, nil
}
