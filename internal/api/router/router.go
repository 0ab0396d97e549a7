package router

import (
	"github.com/12222526/Rag-Resume/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app/server"
)

// Handlers 路由依赖的全部处理器
type Handlers struct {
	Health *handler.HealthHandler
	Jobs   *handler.JobHandler
	Resume *handler.ResumeHandler
	Search *handler.SearchHandler
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, hs Handlers) {
	api := h.Group("/api/v1")

	api.GET("/health", hs.Health.HandleHealth)

	jobs := api.Group("/jobs")
	jobs.POST("", hs.Jobs.HandleCreateJob)
	jobs.GET("", hs.Jobs.HandleListJobs)
	jobs.GET("/:id", hs.Jobs.HandleGetJob)
	jobs.PUT("/:id", hs.Jobs.HandleUpdateJob)
	jobs.DELETE("/:id", hs.Jobs.HandleDeleteJob)
	jobs.POST("/:id/match", hs.Jobs.HandleMatchJob)
	jobs.GET("/:id/matches", hs.Jobs.HandleGetJobMatches)

	resumes := api.Group("/resumes")
	resumes.POST("", hs.Resume.HandleUpload)
	resumes.POST("/upload-zip", hs.Resume.HandleUploadZip)
	resumes.GET("", hs.Resume.HandleListResumes)
	resumes.GET("/:id", hs.Resume.HandleGetResume)
	resumes.DELETE("/:id", hs.Resume.HandleDeleteResume)

	// 资格评估依赖岗位侧的匹配服务，但挂在检索路径下
	search := api.Group("/search")
	search.POST("/ask", hs.Search.HandleAsk)
	search.GET("/resumes", hs.Search.HandleSearchResumes)
	search.GET("/candidates/:id", hs.Search.HandleCandidateProfile)
	search.POST("/eligibility/:resumeId", hs.Jobs.HandleCheckEligibility)
	search.GET("/vector", hs.Search.HandleVectorSearch)
}
