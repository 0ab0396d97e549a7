package handler

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// SearchHandler 负责语义检索与候选人档案
type SearchHandler struct {
	searcher Searcher
	logger   *log.Logger
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		logger:   log.New(os.Stdout, "[SearchHandler] ", log.LstdFlags),
	}
}

type askRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// HandleAsk 自然语言问答检索
// POST /api/v1/search/ask {query, k}
func (h *SearchHandler) HandleAsk(ctx context.Context, c *app.RequestContext) {
	var req askRequest
	if body := c.Request.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
			return
		}
	}
	resp, err := h.searcher.Ask(ctx, req.Query, req.K)
	if err != nil {
		h.logger.Printf("问答检索失败: %v", err)
		writeError(c, err, "Failed to process query")
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleSearchResumes 语义检索简历
// GET /api/v1/search/resumes?q=&limit=&offset=&minScore=
func (h *SearchHandler) HandleSearchResumes(ctx context.Context, c *app.RequestContext) {
	resp, err := h.searcher.Search(ctx, c.Query("q"),
		queryInt(c, "limit", 10), queryInt(c, "offset", 0), queryInt(c, "minScore", 0))
	if err != nil {
		writeError(c, err, "Failed to search resumes")
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleCandidateProfile 候选人档案
// GET /api/v1/search/candidates/:id?includeText=&redact=
func (h *SearchHandler) HandleCandidateProfile(ctx context.Context, c *app.RequestContext) {
	profile, err := h.searcher.CandidateProfile(ctx, c.Param("id"),
		queryBool(c, "includeText"), queryBool(c, "redact", "redactPII"))
	if err != nil {
		writeError(c, err, "Failed to fetch candidate profile")
		return
	}
	c.JSON(consts.StatusOK, profile)
}

// HandleVectorSearch Qdrant 近似检索
// GET /api/v1/search/vector?q=&limit=
func (h *SearchHandler) HandleVectorSearch(ctx context.Context, c *app.RequestContext) {
	resp, err := h.searcher.VectorSearch(ctx, c.Query("q"), queryInt(c, "limit", 10))
	if err != nil {
		writeError(c, err, "Failed to search vectors")
		return
	}
	c.JSON(consts.StatusOK, resp)
}
