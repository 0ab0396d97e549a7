package handler

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/processor"
	"github.com/12222526/Rag-Resume/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// JobHandler 负责岗位管理与匹配相关的请求
type JobHandler struct {
	jobs    JobManager
	matcher JobMatcher
	logger  *log.Logger
}

// NewJobHandler 创建岗位处理器
func NewJobHandler(jobs JobManager, matcher JobMatcher) *JobHandler {
	return &JobHandler{
		jobs:    jobs,
		matcher: matcher,
		logger:  log.New(os.Stdout, "[JobHandler] ", log.LstdFlags),
	}
}

// HandleCreateJob 创建岗位
// POST /api/v1/jobs
func (h *JobHandler) HandleCreateJob(ctx context.Context, c *app.RequestContext) {
	var in processor.JobInput
	if err := json.Unmarshal(c.Request.Body(), &in); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
		return
	}
	job, err := h.jobs.Create(ctx, in)
	if err != nil {
		h.logger.Printf("创建岗位失败: %v", err)
		writeError(c, err, "Failed to create job")
		return
	}
	c.JSON(consts.StatusCreated, utils.H{
		"message": "Job created successfully",
		"job": utils.H{
			"id":             job.ID,
			"title":          job.Title,
			"company":        job.Company,
			"location":       job.Location,
			"employmentType": job.EmploymentType,
			"createdAt":      job.CreatedAt,
		},
	})
}

// HandleListJobs 分页查询在招岗位
// GET /api/v1/jobs?q=&company=&location=&limit=&offset=
func (h *JobHandler) HandleListJobs(ctx context.Context, c *app.RequestContext) {
	list, err := h.jobs.List(ctx, storage.JobFilter{
		Query:    c.Query("q"),
		Company:  c.Query("company"),
		Location: c.Query("location"),
		Limit:    queryInt(c, "limit", 10),
		Offset:   queryInt(c, "offset", 0),
	})
	if err != nil {
		writeError(c, err, "Failed to fetch jobs")
		return
	}
	c.JSON(consts.StatusOK, list)
}

// HandleGetJob 获取岗位详情
// GET /api/v1/jobs/:id
func (h *JobHandler) HandleGetJob(ctx context.Context, c *app.RequestContext) {
	job, err := h.jobs.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err, "Failed to fetch job")
		return
	}
	c.JSON(consts.StatusOK, job)
}

// HandleUpdateJob 局部更新岗位
// PUT /api/v1/jobs/:id
func (h *JobHandler) HandleUpdateJob(ctx context.Context, c *app.RequestContext) {
	var upd processor.JobUpdate
	if err := json.Unmarshal(c.Request.Body(), &upd); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
		return
	}
	job, err := h.jobs.Update(ctx, c.Param("id"), upd)
	if err != nil {
		h.logger.Printf("更新岗位 %s 失败: %v", c.Param("id"), err)
		writeError(c, err, "Failed to update job")
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"message": "Job updated successfully",
		"job": utils.H{
			"id":        job.ID,
			"title":     job.Title,
			"company":   job.Company,
			"location":  job.Location,
			"updatedAt": job.UpdatedAt,
		},
	})
}

// HandleDeleteJob 停用岗位
// DELETE /api/v1/jobs/:id
func (h *JobHandler) HandleDeleteJob(ctx context.Context, c *app.RequestContext) {
	if err := h.jobs.Delete(ctx, c.Param("id")); err != nil {
		writeError(c, err, "Failed to delete job")
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "Job deleted successfully"})
}

// matchRequest topN 也可以放在请求体里
type matchRequest struct {
	TopN    int `json:"topN"`
	TopNAlt int `json:"top_n"`
}

// HandleMatchJob 对全部简历重新匹配该岗位
// POST /api/v1/jobs/:id/match?topN=
func (h *JobHandler) HandleMatchJob(ctx context.Context, c *app.RequestContext) {
	topN := queryInt(c, "topN", 0)
	if topN <= 0 && len(c.Request.Body()) > 0 {
		var req matchRequest
		if err := json.Unmarshal(c.Request.Body(), &req); err == nil {
			topN = req.TopN
			if topN <= 0 {
				topN = req.TopNAlt
			}
		}
	}
	resp, err := h.matcher.MatchJob(ctx, c.Param("id"), topN)
	if err != nil {
		h.logger.Printf("岗位 %s 匹配失败: %v", c.Param("id"), err)
		writeError(c, err, "Failed to match job")
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleGetJobMatches 查询已保存的匹配结果
// GET /api/v1/jobs/:id/matches
func (h *JobHandler) HandleGetJobMatches(ctx context.Context, c *app.RequestContext) {
	resp, err := h.matcher.GetJobMatches(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err, "Failed to fetch job matches")
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleCheckEligibility 按结构化要求评估简历
// POST /api/v1/search/eligibility/:resumeId
func (h *JobHandler) HandleCheckEligibility(ctx context.Context, c *app.RequestContext) {
	var criteria matching.Criteria
	if body := c.Request.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &criteria); err != nil {
			c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
			return
		}
	}
	report, err := h.matcher.CheckEligibility(ctx, c.Param("resumeId"), criteria)
	if err != nil {
		writeError(c, err, "Failed to check eligibility")
		return
	}
	c.JSON(consts.StatusOK, report)
}
