package processor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/12222526/Rag-Resume/internal/constants"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/storage"
	"github.com/12222526/Rag-Resume/internal/storage/models"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// 获取匹配锁的轮询间隔
const lockPollInterval = 100 * time.Millisecond

// CandidateMatch 带候选人信息的匹配结果
type CandidateMatch struct {
	matching.MatchResult
	CandidateName string     `json:"candidateName"`
	ResumeName    string     `json:"resumeName"`
	MatchedAt     *time.Time `json:"matchedAt,omitempty"`
}

// JobMatchResponse 一次匹配的结果
type JobMatchResponse struct {
	JobID             string           `json:"jobId"`
	JobTitle          string           `json:"jobTitle"`
	Company           string           `json:"company"`
	Matches           []CandidateMatch `json:"matches"`
	TotalCandidates   int              `json:"totalCandidates"`
	MatchedCandidates int              `json:"matchedCandidates"`
	TopN              int              `json:"topN"`
}

// StoredMatches 已保存的匹配结果
type StoredMatches struct {
	JobID   string           `json:"jobId"`
	Matches []CandidateMatch `json:"matches"`
}

// EligibilityResponse 资格评估结果
type EligibilityResponse = matching.EligibilityReport

// MatchService 岗位与全部简历的匹配、已保存结果查询以及资格评估
type MatchService struct {
	comp   *Components
	set    *Settings
	jobs   *JobService
	logger *log.Logger
}

// NewMatchService 创建匹配服务
func NewMatchService(comp *Components, set *Settings, jobs *JobService, opts ...SettingOpt) (*MatchService, error) {
	if comp == nil || set == nil || jobs == nil {
		return nil, fmt.Errorf("组件、设置与岗位服务不能为空")
	}
	if comp.Scorer == nil || comp.Resumes == nil || comp.Matches == nil {
		return nil, fmt.Errorf("MatchService 需要 Scorer、Resumes 与 Matches 组件")
	}
	for _, opt := range opts {
		opt(set)
	}
	return &MatchService{comp: comp, set: set, jobs: jobs, logger: serviceLogger(set, "[MatchService] ")}, nil
}

// MatchJob 对所有简历评分，保留 score > 0 的前 topN 个结果并整体替换该岗位已有的匹配记录
func (s *MatchService) MatchJob(ctx context.Context, jobID string, topN int) (*JobMatchResponse, error) {
	ctx, span := tracer.Start(ctx, "MatchService.MatchJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	if topN <= 0 {
		topN = s.set.DefaultTopN
	}

	job, jobDoc, err := s.jobs.JobDocument(ctx, jobID)
	if err != nil {
		return nil, err
	}

	release := s.acquireMatchLock(ctx, jobID)
	defer release()

	var results []matching.MatchResult
	names := make(map[string]resumeNames)
	total, err := forEachResumeBatch(ctx, s.comp.Resumes, s.logger, func(docs []matching.Document) error {
		scored, err := s.comp.Scorer.ScoreAll(ctx, jobDoc, docs)
		if err != nil {
			return matching.NewComputationError("matchJob", err)
		}
		for _, d := range docs {
			names[d.ID] = resumeNames{candidate: d.Metadata.Name, resume: d.Title}
		}
		results = append(results, scored...)
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	top, matched := matching.RankMatches(results, topN)
	matchedAt := s.set.Now()

	rows := make([]models.JobMatch, 0, len(top))
	topIDs := make([]string, 0, len(top))
	for _, r := range top {
		row, err := models.NewJobMatch(jobID, r, matchedAt)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		topIDs = append(topIDs, r.ResumeID)
	}

	var event *models.OutboxMessage
	if s.set.EventsExchange != "" {
		event, err = storage.NewOutboxEvent(jobID, constants.EventJobMatchesReplaced, s.set.EventsExchange, storage.JobMatchesReplacedEvent{
			JobID:             jobID,
			TotalCandidates:   total,
			MatchedCandidates: matched,
			TopN:              topN,
			TopResumeIDs:      topIDs,
			MatchedAt:         matchedAt,
		})
		if err != nil {
			return nil, err
		}
	}
	if err := s.comp.Matches.ReplaceMatches(ctx, jobID, rows, event); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("保存匹配结果失败: %w", err)
	}

	resp := &JobMatchResponse{
		JobID:             jobID,
		JobTitle:          job.Title,
		Company:           job.Company,
		Matches:           make([]CandidateMatch, 0, len(top)),
		TotalCandidates:   total,
		MatchedCandidates: matched,
		TopN:              topN,
	}
	for _, r := range top {
		n := names[r.ResumeID]
		resp.Matches = append(resp.Matches, CandidateMatch{MatchResult: r, CandidateName: n.candidate, ResumeName: n.resume})
	}

	span.SetAttributes(attribute.Int("match.total", total), attribute.Int("match.matched", matched))
	span.SetStatus(codes.Ok, "")
	s.logger.Printf("岗位 %s 匹配完成: 候选人=%d, 有效匹配=%d, 保留=%d", jobID, total, matched, len(top))
	return resp, nil
}

type resumeNames struct {
	candidate string
	resume    string
}

// acquireMatchLock 同一岗位的并发匹配串行执行。
// 锁在 MatchLockTTL 内未获取到或 Redis 出错时不加锁继续，事务仍保证结果一致。
func (s *MatchService) acquireMatchLock(ctx context.Context, jobID string) func() {
	noop := func() {}
	if s.comp.Locker == nil {
		return noop
	}
	key := storage.JobMatchLockKey(jobID)
	deadline := time.Now().Add(s.set.MatchLockTTL)
	for {
		value, err := s.comp.Locker.AcquireLock(ctx, key, s.set.MatchLockTTL)
		if err != nil {
			s.logger.Printf("获取岗位 %s 匹配锁失败，不加锁继续: %v", jobID, err)
			return noop
		}
		if value != "" {
			return func() {
				// 请求上下文可能已取消，释放锁使用独立的上下文
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if _, err := s.comp.Locker.ReleaseLock(releaseCtx, key, value); err != nil {
					s.logger.Printf("释放岗位 %s 匹配锁失败: %v", jobID, err)
				}
			}
		}
		if time.Now().After(deadline) {
			s.logger.Printf("等待岗位 %s 匹配锁超时，不加锁继续", jobID)
			return noop
		}
		select {
		case <-ctx.Done():
			return noop
		case <-time.After(lockPollInterval):
		}
	}
}

// GetJobMatches 读取已保存的匹配结果，按分数降序。
// 简历已删除的匹配仍返回，候选人姓名为空。
func (s *MatchService) GetJobMatches(ctx context.Context, jobID string) (*StoredMatches, error) {
	rows, err := s.comp.Matches.ListMatches(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("查询匹配结果失败: %w", err)
	}
	if len(rows) == 0 {
		return nil, matching.NewNotFoundError("getJobMatches", "No matches found for this job")
	}

	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.ResumeID)
	}
	resumes, err := s.comp.Resumes.ResumesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("查询匹配简历失败: %w", err)
	}

	out := &StoredMatches{JobID: jobID, Matches: make([]CandidateMatch, 0, len(rows))}
	for i := range rows {
		r, err := rows[i].ToMatchResult()
		if err != nil {
			return nil, err
		}
		matchedAt := rows[i].MatchedAt
		cm := CandidateMatch{MatchResult: r, MatchedAt: &matchedAt}
		if resume, ok := resumes[r.ResumeID]; ok {
			cm.CandidateName = resume.Metadata().Name
			cm.ResumeName = resume.OriginalName
		}
		out.Matches = append(out.Matches, cm)
	}
	return out, nil
}

// CheckEligibility 按结构化要求评估一份简历，结果不持久化
func (s *MatchService) CheckEligibility(ctx context.Context, resumeID string, criteria matching.Criteria) (*EligibilityResponse, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	resume, err := s.comp.Resumes.GetResume(ctx, resumeID, false)
	if err != nil {
		return nil, err
	}
	meta := resume.Metadata()
	report := matching.Evaluate(resume.ResumeID, meta, resume.ParsedText, criteria)
	report.CandidateName = meta.Name
	report.ResumeName = resume.OriginalName
	return &report, nil
}
