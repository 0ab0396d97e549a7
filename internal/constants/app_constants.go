package constants

const (
	// ServiceName 服务名，用于追踪与日志
	ServiceName = "rag-resume"

	// 领域事件类型，同时用作 RabbitMQ 路由键
	EventResumeIngested     = "resume.ingested"
	EventResumeDeleted      = "resume.deleted"
	EventJobMatchesReplaced = "job.matches.replaced"

	// DefaultEventsExchange 领域事件交换机
	DefaultEventsExchange = "rag.events"

	// 对象存储路径前缀
	OriginalsPrefix  = "resumes/"
	ParsedTextPrefix = "parsed/"
)
