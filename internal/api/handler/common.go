package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/processor"
	"github.com/12222526/Rag-Resume/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// JobManager 岗位增删改查
type JobManager interface {
	Create(ctx context.Context, in processor.JobInput) (*processor.JobView, error)
	Get(ctx context.Context, jobID string) (*processor.JobView, error)
	Update(ctx context.Context, jobID string, upd processor.JobUpdate) (*processor.JobView, error)
	Delete(ctx context.Context, jobID string) error
	List(ctx context.Context, filter storage.JobFilter) (*processor.JobList, error)
}

// JobMatcher 岗位匹配与资格评估
type JobMatcher interface {
	MatchJob(ctx context.Context, jobID string, topN int) (*processor.JobMatchResponse, error)
	GetJobMatches(ctx context.Context, jobID string) (*processor.StoredMatches, error)
	CheckEligibility(ctx context.Context, resumeID string, criteria matching.Criteria) (*processor.EligibilityResponse, error)
}

// ResumeManager 简历入库与管理
type ResumeManager interface {
	Upload(ctx context.Context, originalName string, data []byte) (*processor.UploadedResume, error)
	List(ctx context.Context, q string, limit, offset int) (*processor.ResumeList, error)
	Get(ctx context.Context, resumeID string, redact bool) (*processor.ResumeDetail, error)
	Delete(ctx context.Context, resumeID string) error
}

// Searcher 检索与候选人档案
type Searcher interface {
	Ask(ctx context.Context, query string, k int) (*processor.AskResponse, error)
	Search(ctx context.Context, query string, limit, offset, minScore int) (*processor.SearchResponse, error)
	CandidateProfile(ctx context.Context, resumeID string, includeText, redact bool) (*processor.CandidateProfile, error)
	VectorSearch(ctx context.Context, query string, limit int) (*processor.VectorSearchResponse, error)
}

var (
	_ JobManager    = (*processor.JobService)(nil)
	_ JobMatcher    = (*processor.MatchService)(nil)
	_ ResumeManager = (*processor.ResumeService)(nil)
	_ Searcher      = (*processor.SearchService)(nil)
)

// writeError 按错误类别输出 {"error": ...}。
// 校验失败与资源不存在直接返回错误说明，其余错误加上操作前缀。
func writeError(c *app.RequestContext, err error, fallback string) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, matching.ErrValidation):
		status = consts.StatusBadRequest
	case errors.Is(err, matching.ErrNotFound):
		status = consts.StatusNotFound
	case errors.Is(err, processor.ErrVectorSearchUnavailable):
		status = consts.StatusServiceUnavailable
	}

	msg := fallback + ": " + err.Error()
	var me *matching.MatchError
	if status != consts.StatusInternalServerError {
		msg = err.Error()
		if errors.As(err, &me) && me.Detail != "" {
			msg = me.Detail
		}
	}
	c.JSON(status, utils.H{"error": msg})
}

// queryInt 解析整数查询参数，缺省或非法时返回默认值
func queryInt(c *app.RequestContext, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// queryBool 解析布尔查询参数，依次尝试多个参数名
func queryBool(c *app.RequestContext, names ...string) bool {
	for _, name := range names {
		if v, err := strconv.ParseBool(c.Query(name)); err == nil {
			return v
		}
	}
	return false
}
