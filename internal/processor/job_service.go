package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/storage"
	"github.com/12222526/Rag-Resume/internal/storage/models"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel/attribute"
)

// 岗位类型
var employmentTypes = map[string]bool{
	"full-time":  true,
	"part-time":  true,
	"contract":   true,
	"internship": true,
}

// Salary 薪资范围
type Salary struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency"`
}

// JobInput 创建岗位请求
type JobInput struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Description    string   `json:"description"`
	Requirements   string   `json:"requirements"`
	Location       string   `json:"location"`
	Salary         *Salary  `json:"salary,omitempty"`
	EmploymentType string   `json:"employmentType"`
	Experience     string   `json:"experience"`
	Skills         []string `json:"skills"`
	Benefits       []string `json:"benefits"`
}

// JobUpdate 局部更新，nil 字段保持不变
type JobUpdate struct {
	Title          *string   `json:"title,omitempty"`
	Company        *string   `json:"company,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Requirements   *string   `json:"requirements,omitempty"`
	Location       *string   `json:"location,omitempty"`
	Salary         *Salary   `json:"salary,omitempty"`
	EmploymentType *string   `json:"employmentType,omitempty"`
	Experience     *string   `json:"experience,omitempty"`
	Skills         *[]string `json:"skills,omitempty"`
	Benefits       *[]string `json:"benefits,omitempty"`
	IsActive       *bool     `json:"isActive,omitempty"`
}

// JobView 岗位对外视图，不含分块向量
type JobView struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Description    string    `json:"description"`
	Requirements   string    `json:"requirements"`
	Location       string    `json:"location"`
	Salary         *Salary   `json:"salary,omitempty"`
	EmploymentType string    `json:"employmentType"`
	Experience     string    `json:"experience"`
	Skills         []string  `json:"skills"`
	Benefits       []string  `json:"benefits"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// JobList 岗位分页列表
type JobList struct {
	Jobs       []JobView  `json:"jobs"`
	Pagination Pagination `json:"pagination"`
}

func newJobView(j *models.Job) JobView {
	v := JobView{
		ID:             j.JobID,
		Title:          j.Title,
		Company:        j.Company,
		Description:    j.Description,
		Requirements:   j.Requirements,
		Location:       j.Location,
		EmploymentType: j.EmploymentType,
		Experience:     j.Experience,
		Skills:         []string{},
		Benefits:       []string{},
		IsActive:       j.IsActive,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
	_ = models.FromJSON(j.SkillsJSON, &v.Skills)
	_ = models.FromJSON(j.BenefitsJSON, &v.Benefits)
	if len(j.SalaryJSON) > 0 && string(j.SalaryJSON) != "null" && string(j.SalaryJSON) != "[]" {
		var s Salary
		if models.FromJSON(j.SalaryJSON, &s) == nil {
			v.Salary = &s
		}
	}
	return v
}

// JobService 岗位管理与岗位分块向量的缓存读取
type JobService struct {
	comp   *Components
	set    *Settings
	logger *log.Logger
}

// NewJobService 创建岗位服务
func NewJobService(comp *Components, set *Settings, opts ...SettingOpt) (*JobService, error) {
	if comp == nil || set == nil {
		return nil, fmt.Errorf("组件与设置不能为空")
	}
	if comp.Chunker == nil || comp.Embedder == nil || comp.Jobs == nil {
		return nil, fmt.Errorf("JobService 需要 Chunker、Embedder 与 Jobs 组件")
	}
	for _, opt := range opts {
		opt(set)
	}
	return &JobService{comp: comp, set: set, logger: serviceLogger(set, "[JobService] ")}, nil
}

func normalizeEmploymentType(t string) (string, error) {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "full-time", nil
	}
	if !employmentTypes[t] {
		return "", matching.NewValidationError("job", fmt.Sprintf("employmentType 必须是 full-time、part-time、contract 或 internship 之一: %s", t))
	}
	return t, nil
}

// embedJobText 对岗位全文分块并向量化
func (s *JobService) embedJobText(ctx context.Context, description, requirements string) ([]matching.EmbeddedChunk, error) {
	chunks := s.comp.Chunker.Chunk(models.JobFullText(description, requirements))
	return matching.EmbedChunks(ctx, s.comp.Embedder, chunks, s.set.embedOptions()...)
}

// Create 创建岗位，同时生成分块向量
func (s *JobService) Create(ctx context.Context, in JobInput) (*JobView, error) {
	ctx, span := tracer.Start(ctx, "JobService.Create")
	defer span.End()

	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Company) == "" ||
		strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.Requirements) == "" {
		return nil, matching.NewValidationError("createJob", "Title, company, description, and requirements are required")
	}
	empType, err := normalizeEmploymentType(in.EmploymentType)
	if err != nil {
		return nil, err
	}

	embedded, err := s.embedJobText(ctx, in.Description, in.Requirements)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成岗位ID失败: %w", err)
	}
	job := &models.Job{
		JobID:          id.String(),
		Title:          strings.TrimSpace(in.Title),
		Company:        strings.TrimSpace(in.Company),
		Description:    in.Description,
		Requirements:   in.Requirements,
		Location:       in.Location,
		EmploymentType: empType,
		Experience:     in.Experience,
		IsActive:       true,
	}
	if err := setJobJSON(job, in.Salary, in.Skills, in.Benefits); err != nil {
		return nil, err
	}
	rows, err := models.NewJobChunks(job.JobID, embedded)
	if err != nil {
		return nil, err
	}
	if err := s.comp.Jobs.CreateJob(ctx, job, rows); err != nil {
		return nil, fmt.Errorf("保存岗位失败: %w", err)
	}
	s.cacheChunks(ctx, job.JobID, embedded)

	span.SetAttributes(attribute.String("job.id", job.JobID), attribute.Int("job.chunks", len(rows)))
	s.logger.Printf("岗位创建成功: id=%s, 标题=%s, 分块=%d", job.JobID, job.Title, len(rows))
	v := newJobView(job)
	return &v, nil
}

func setJobJSON(job *models.Job, salary *Salary, skills, benefits []string) error {
	var err error
	if salary != nil {
		if job.SalaryJSON, err = models.ToJSON(salary); err != nil {
			return err
		}
	}
	if skills == nil {
		skills = []string{}
	}
	if benefits == nil {
		benefits = []string{}
	}
	if job.SkillsJSON, err = models.ToJSON(skills); err != nil {
		return err
	}
	job.BenefitsJSON, err = models.ToJSON(benefits)
	return err
}

// Get 获取岗位，已停用的岗位同样返回
func (s *JobService) Get(ctx context.Context, jobID string) (*JobView, error) {
	job, err := s.comp.Jobs.GetJob(ctx, jobID, false)
	if err != nil {
		return nil, err
	}
	v := newJobView(job)
	return &v, nil
}

// Update 局部更新岗位；描述或任职要求变化时重新分块向量化并失效缓存
func (s *JobService) Update(ctx context.Context, jobID string, upd JobUpdate) (*JobView, error) {
	ctx, span := tracer.Start(ctx, "JobService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	job, err := s.comp.Jobs.GetJob(ctx, jobID, false)
	if err != nil {
		return nil, err
	}

	textChanged := (upd.Description != nil && *upd.Description != job.Description) ||
		(upd.Requirements != nil && *upd.Requirements != job.Requirements)

	for _, f := range []struct {
		src  *string
		dst  *string
		name string
	}{
		{upd.Title, &job.Title, "title"},
		{upd.Company, &job.Company, "company"},
		{upd.Description, &job.Description, "description"},
		{upd.Requirements, &job.Requirements, "requirements"},
	} {
		if f.src == nil {
			continue
		}
		if strings.TrimSpace(*f.src) == "" {
			return nil, matching.NewValidationError("updateJob", f.name+" 不能为空")
		}
		*f.dst = *f.src
	}
	if upd.Location != nil {
		job.Location = *upd.Location
	}
	if upd.Experience != nil {
		job.Experience = *upd.Experience
	}
	if upd.EmploymentType != nil {
		if job.EmploymentType, err = normalizeEmploymentType(*upd.EmploymentType); err != nil {
			return nil, err
		}
	}
	if upd.IsActive != nil {
		job.IsActive = *upd.IsActive
	}
	if upd.Salary != nil {
		if job.SalaryJSON, err = models.ToJSON(upd.Salary); err != nil {
			return nil, err
		}
	}
	if upd.Skills != nil {
		if job.SkillsJSON, err = models.ToJSON(*upd.Skills); err != nil {
			return nil, err
		}
	}
	if upd.Benefits != nil {
		if job.BenefitsJSON, err = models.ToJSON(*upd.Benefits); err != nil {
			return nil, err
		}
	}

	var rows []models.JobChunk
	var embedded []matching.EmbeddedChunk
	if textChanged {
		if embedded, err = s.embedJobText(ctx, job.Description, job.Requirements); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeExternal)
			return nil, err
		}
		if rows, err = models.NewJobChunks(job.JobID, embedded); err != nil {
			return nil, err
		}
	}
	job.UpdatedAt = s.set.Now()
	if err := s.comp.Jobs.UpdateJob(ctx, job, rows); err != nil {
		return nil, fmt.Errorf("更新岗位失败: %w", err)
	}
	if textChanged {
		s.invalidateChunks(ctx, jobID)
		s.logger.Printf("岗位 %s 文本变化，已重新生成 %d 个分块", jobID, len(rows))
	}
	v := newJobView(job)
	return &v, nil
}

// Delete 软删除岗位
func (s *JobService) Delete(ctx context.Context, jobID string) error {
	if err := s.comp.Jobs.DeactivateJob(ctx, jobID); err != nil {
		return err
	}
	s.invalidateChunks(ctx, jobID)
	return nil
}

// List 查询在招岗位
func (s *JobService) List(ctx context.Context, filter storage.JobFilter) (*JobList, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset, 10)
	rows, total, err := s.comp.Jobs.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("查询岗位列表失败: %w", err)
	}
	out := &JobList{Jobs: make([]JobView, 0, len(rows)), Pagination: newPagination(total, filter.Limit, filter.Offset)}
	for i := range rows {
		out.Jobs = append(out.Jobs, newJobView(&rows[i]))
	}
	return out, nil
}

// JobDocument 返回评分用的岗位文档。分块向量优先从缓存读取，
// 未命中时从数据库加载并回填缓存。
func (s *JobService) JobDocument(ctx context.Context, jobID string) (*models.Job, matching.JobDocument, error) {
	if s.comp.JobCache != nil {
		cached, err := s.comp.JobCache.GetJobChunks(ctx, jobID)
		if err == nil && len(cached) > 0 {
			job, err := s.comp.Jobs.GetJob(ctx, jobID, false)
			if err != nil {
				return nil, matching.JobDocument{}, err
			}
			doc, err := job.ToJobDocument()
			if err != nil {
				return nil, doc, err
			}
			doc.Chunks = cached
			s.logDebug("岗位 %s 分块向量缓存命中", jobID)
			return job, doc, nil
		}
		if err != nil && !errors.Is(err, storage.ErrCacheMiss) {
			s.logger.Printf("读取岗位 %s 分块缓存失败，回退数据库: %v", jobID, err)
		}
	}

	job, err := s.comp.Jobs.GetJob(ctx, jobID, true)
	if err != nil {
		return nil, matching.JobDocument{}, err
	}
	doc, err := job.ToJobDocument()
	if err != nil {
		return nil, doc, err
	}
	if len(doc.Chunks) > 0 {
		s.cacheChunks(ctx, jobID, doc.Chunks)
	}
	return job, doc, nil
}

func (s *JobService) cacheChunks(ctx context.Context, jobID string, chunks []matching.EmbeddedChunk) {
	if s.comp.JobCache == nil {
		return
	}
	if err := s.comp.JobCache.SetJobChunks(ctx, jobID, chunks); err != nil {
		s.logger.Printf("警告: %v", NewCacheError(jobID, "set-job-chunks", err))
	}
}

func (s *JobService) invalidateChunks(ctx context.Context, jobID string) {
	if s.comp.JobCache == nil {
		return
	}
	if err := s.comp.JobCache.DeleteJobChunks(ctx, jobID); err != nil {
		s.logger.Printf("警告: %v", NewCacheError(jobID, "delete-job-chunks", err))
	}
}

func (s *JobService) logDebug(format string, args ...interface{}) {
	if s.set.Debug {
		s.logger.Printf(format, args...)
	}
}
