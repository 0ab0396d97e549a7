package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 错误分类，写入 span 的 error.type 属性
type ErrorType string

const (
	ErrorTypeHTTP        ErrorType = "http"
	ErrorTypeDB          ErrorType = "db"
	ErrorTypeRedis       ErrorType = "redis"
	ErrorTypeRabbitMQ    ErrorType = "rabbitmq"
	ErrorTypeVectorDB    ErrorType = "vector_db"
	ErrorTypeObjectStore ErrorType = "object_store"
	ErrorTypeEmbedding   ErrorType = "embedding"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeExternal    ErrorType = "external_system"
	ErrorTypeTimeout     ErrorType = "timeout"
)

// classify 超时与取消优先于调用方给出的分类
func classify(err error, errorType ErrorType) ErrorType {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeTimeout
	}
	return errorType
}

// RecordError 记录错误并把 span 置为 Error
func RecordError(span trace.Span, err error, errorType ErrorType) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(classify(err, errorType))),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	span.SetStatus(codes.Error, err.Error())
}

// RecordHTTPError 记录下游 HTTP 调用的失败，按状态码区分客户端/服务端错误
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}
	category := "unknown"
	switch {
	case statusCode >= 400 && statusCode < 500:
		category = "client_error"
	case statusCode >= 500:
		category = "server_error"
	}
	RecordError(span, err, ErrorTypeHTTP)
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}

func recordUnconfirmed(span trace.Span, messageID, kind, msg string) {
	span.SetAttributes(
		attribute.String("error.type", string(ErrorTypeRabbitMQ)),
		attribute.String("error.message", msg),
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.error_type", kind),
		attribute.Bool("messaging.rabbitmq.confirmed", false),
	)
	span.SetStatus(codes.Error, msg)
}

// RecordRabbitMQNack broker 拒绝了领域事件
func RecordRabbitMQNack(span trace.Span, messageID string, reason string) {
	if span == nil {
		return
	}
	if reason == "" {
		reason = "message not acknowledged by broker"
	}
	recordUnconfirmed(span, messageID, "nack", reason)
}

// RecordRabbitMQTimeout 等待发布确认超时
func RecordRabbitMQTimeout(span trace.Span, messageID string, timeoutDuration string) {
	if span == nil {
		return
	}
	recordUnconfirmed(span, messageID, "timeout", "confirm timeout after "+timeoutDuration)
}
