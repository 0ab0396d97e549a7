package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: rag:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "rag"

	// JobModulePrefix 岗位模块
	JobModulePrefix = "job"
	// SearchModulePrefix 检索模块
	SearchModulePrefix = "search"

	// EntityChunks 岗位分块向量实体
	EntityChunks = "chunks"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityAsk 问答缓存实体
	EntityAsk = "ask"

	// KeyJobChunks 岗位分块及向量缓存 (STRING, JSON)
	// 格式: rag:job:chunks:{jobID}
	KeyJobChunks = AppPrefix + ":" + JobModulePrefix + ":" + EntityChunks + ":%s"

	// KeyJobMatchLock 岗位匹配分布式锁 (STRING)
	// 格式: rag:job:lock:{jobID}
	KeyJobMatchLock = AppPrefix + ":" + JobModulePrefix + ":" + EntityLock + ":%s"

	// KeyAskResult 问答结果缓存 (STRING, JSON)
	// 格式: rag:search:ask:{version}:{sha256(query)}:{k}
	KeyAskResult = AppPrefix + ":" + SearchModulePrefix + ":" + EntityAsk + ":%d:%s:%d"

	// KeyResumeSetVersion 简历集合版本号 (STRING, INCR)
	// 格式: rag:search:resume_version
	KeyResumeSetVersion = AppPrefix + ":" + SearchModulePrefix + ":resume_version"
)
