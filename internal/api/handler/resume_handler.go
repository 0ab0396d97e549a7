package handler

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	// MaxUploadFiles 单次请求最多上传的文件数
	MaxUploadFiles = 10
	// MaxZipEntries 单个压缩包最多导入的简历数
	MaxZipEntries = 50
	// MaxZipBytes 压缩包解压后的总大小上限
	MaxZipBytes = 100 << 20
)

// ResumeHandler 负责简历上传、查询与删除
type ResumeHandler struct {
	resumes ResumeManager
	logger  *log.Logger
}

// NewResumeHandler 创建简历处理器
func NewResumeHandler(resumes ResumeManager) *ResumeHandler {
	return &ResumeHandler{
		resumes: resumes,
		logger:  log.New(os.Stdout, "[ResumeHandler] ", log.LstdFlags),
	}
}

// uploadFiles 收集 multipart 中 "files" 与 "resume" 字段的文件
func uploadFiles(c *app.RequestContext) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	var files []*multipart.FileHeader
	files = append(files, form.File["files"]...)
	files = append(files, form.File["resume"]...)
	return files
}

// HandleUpload 上传一份或多份简历 (PDF / TXT)
// POST /api/v1/resumes
func (h *ResumeHandler) HandleUpload(ctx context.Context, c *app.RequestContext) {
	files := uploadFiles(c)
	if len(files) == 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "No file uploaded"})
		return
	}
	if len(files) > MaxUploadFiles {
		c.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("一次最多上传 %d 个文件", MaxUploadFiles)})
		return
	}
	// 先整体校验类型，避免部分入库
	for _, fh := range files {
		if parser.DetectMimeType(fh.Filename) == "" {
			c.JSON(consts.StatusBadRequest, utils.H{"error": "Only PDF and TXT files are allowed"})
			return
		}
	}

	items := make([]uploadItem, 0, len(files))
	for _, fh := range files {
		data, err := readFormFile(fh)
		if err != nil {
			h.logger.Printf("读取上传文件 %s 失败: %v", fh.Filename, err)
			writeError(c, err, "Failed to upload resumes")
			return
		}
		items = append(items, uploadItem{name: fh.Filename, data: data})
	}
	h.ingest(ctx, c, items, "Resumes uploaded successfully", "Failed to upload resumes", nil)
}

// HandleUploadZip 上传 ZIP 压缩包，逐个导入其中的 PDF / TXT 简历
// POST /api/v1/resumes/upload-zip
func (h *ResumeHandler) HandleUploadZip(ctx context.Context, c *app.RequestContext) {
	fh := zipFormFile(c)
	if fh == nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "No ZIP file provided"})
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".zip") {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "Only ZIP files are allowed"})
		return
	}
	data, err := readFormFile(fh)
	if err != nil {
		writeError(c, err, "Failed to process ZIP file")
		return
	}
	entries, skipped, err := parser.ExtractZipResumes(data, parser.ZipLimits{
		MaxEntries:    MaxZipEntries,
		MaxTotalBytes: MaxZipBytes,
	})
	if err != nil {
		h.logger.Printf("解压 %s 失败: %v", fh.Filename, err)
		writeError(c, err, "Failed to process ZIP file")
		return
	}
	items := make([]uploadItem, len(entries))
	for i, e := range entries {
		items[i] = uploadItem{name: e.Name, data: e.Data}
	}
	h.ingest(ctx, c, items, "ZIP file processed successfully", "Failed to process ZIP file", skipped)
}

func zipFormFile(c *app.RequestContext) *multipart.FileHeader {
	for _, field := range []string{"zipfile", "file"} {
		if fh, err := c.FormFile(field); err == nil && fh != nil {
			return fh
		}
	}
	return nil
}

type uploadItem struct {
	name string
	data []byte
}

// ingest 逐个入库，任一失败即返回错误，已入库的简历保留
func (h *ResumeHandler) ingest(ctx context.Context, c *app.RequestContext, items []uploadItem, message, failure string, skipped []string) {
	uploaded := make([]utils.H, 0, len(items))
	var warnings []string
	for _, it := range items {
		res, err := h.resumes.Upload(ctx, it.name, it.data)
		if err != nil {
			h.logger.Printf("简历 %s 入库失败: %v", it.name, err)
			writeError(c, err, failure)
			return
		}
		warnings = append(warnings, res.Warnings...)
		uploaded = append(uploaded, utils.H{
			"id":           res.ID,
			"filename":     res.Filename,
			"originalName": res.OriginalName,
			"metadata":     res.Metadata,
		})
	}

	body := utils.H{
		"message": message,
		"count":   len(uploaded),
		"resumes": uploaded,
	}
	if len(skipped) > 0 {
		body["skipped"] = skipped
	}
	if len(warnings) > 0 {
		body["warnings"] = warnings
	}
	c.JSON(consts.StatusCreated, body)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, matching.NewValidationError("upload", "No file uploaded")
	}
	return data, nil
}

// HandleListResumes 分页查询简历
// GET /api/v1/resumes?q=&limit=&offset=
func (h *ResumeHandler) HandleListResumes(ctx context.Context, c *app.RequestContext) {
	list, err := h.resumes.List(ctx, c.Query("q"), queryInt(c, "limit", 10), queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, err, "Failed to fetch resumes")
		return
	}
	c.JSON(consts.StatusOK, list)
}

// HandleGetResume 获取简历详情
// GET /api/v1/resumes/:id?redact=
func (h *ResumeHandler) HandleGetResume(ctx context.Context, c *app.RequestContext) {
	detail, err := h.resumes.Get(ctx, c.Param("id"), queryBool(c, "redact", "redactPII"))
	if err != nil {
		writeError(c, err, "Failed to fetch resume")
		return
	}
	c.JSON(consts.StatusOK, detail)
}

// HandleDeleteResume 删除简历
// DELETE /api/v1/resumes/:id
func (h *ResumeHandler) HandleDeleteResume(ctx context.Context, c *app.RequestContext) {
	if err := h.resumes.Delete(ctx, c.Param("id")); err != nil {
		writeError(c, err, "Failed to delete resume")
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "Resume deleted successfully"})
}

