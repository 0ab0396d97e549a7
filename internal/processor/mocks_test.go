package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/storage"
	"github.com/12222526/Rag-Resume/internal/storage/models"

	"github.com/cloudwego/eino/components/embedding"
)

// MockExtractor 模拟文本提取器，直接返回上传内容
type MockExtractor struct {
	err error
}

func (m *MockExtractor) ExtractText(ctx context.Context, filename, mimeType string, data []byte) (string, map[string]interface{}, error) {
	if m.err != nil {
		return "", nil, m.err
	}
	return string(data), map[string]interface{}{"pages": 1}, nil
}

// MockEmbedder 包装哈希向量化，可注入失败
type MockEmbedder struct {
	*matching.HashEmbedder
	err   error
	calls int
	mu    sync.Mutex
}

func newMockEmbedder() *MockEmbedder {
	return &MockEmbedder{HashEmbedder: matching.NewHashEmbedder()}
}

func (m *MockEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.HashEmbedder.EmbedStrings(ctx, texts, opts...)
}

func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// memRepo 内存版的简历/岗位/匹配仓储
type memRepo struct {
	mu         sync.Mutex
	resumes    []*models.Resume
	jobs       map[string]*models.Job
	matches    map[string][]models.JobMatch
	events     []*models.OutboxMessage
	failCreate error
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: map[string]*models.Job{}, matches: map[string][]models.JobMatch{}}
}

func (r *memRepo) addEvent(e *models.OutboxMessage) {
	if e != nil {
		r.events = append(r.events, e)
	}
}

func (r *memRepo) findResume(id string) (int, *models.Resume) {
	for i, res := range r.resumes {
		if res.ResumeID == id {
			return i, res
		}
	}
	return -1, nil
}

func (r *memRepo) CreateResume(ctx context.Context, resume *models.Resume, chunks []models.ResumeChunk, event *models.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	cp := *resume
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().Add(time.Duration(len(r.resumes)) * time.Millisecond)
	}
	cp.Chunks = append([]models.ResumeChunk(nil), chunks...)
	r.resumes = append(r.resumes, &cp)
	r.addEvent(event)
	return nil
}

func (r *memRepo) UpdateResumeChunkPointIDs(ctx context.Context, resumeID string, pointIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, res := r.findResume(resumeID)
	if res == nil {
		return matching.NewNotFoundError("updatePointIDs", "Resume not found")
	}
	for i := range res.Chunks {
		if i < len(pointIDs) {
			res.Chunks[i].PointID = pointIDs[i]
		}
	}
	return nil
}

func (r *memRepo) UpdateResumeObjectKeys(ctx context.Context, resumeID, originalKey, parsedKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, res := r.findResume(resumeID)
	if res == nil {
		return matching.NewNotFoundError("updateObjectKeys", "Resume not found")
	}
	res.OriginalObjectKey, res.ParsedTextObjectKey = originalKey, parsedKey
	return nil
}

func (r *memRepo) GetResume(ctx context.Context, resumeID string, withChunks bool) (*models.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, res := r.findResume(resumeID)
	if res == nil {
		return nil, matching.NewNotFoundError("getResume", "Resume not found")
	}
	cp := *res
	if !withChunks {
		cp.Chunks = nil
	}
	return &cp, nil
}

func (r *memRepo) CountChunks(ctx context.Context, resumeID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, res := r.findResume(resumeID)
	if res == nil {
		return 0, nil
	}
	return int64(len(res.Chunks)), nil
}

func (r *memRepo) ListResumes(ctx context.Context, q string, limit, offset int) ([]models.Resume, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q = strings.ToLower(q)
	var hits []models.Resume
	for i := len(r.resumes) - 1; i >= 0; i-- {
		res := r.resumes[i]
		if q != "" && !strings.Contains(strings.ToLower(res.OriginalName+" "+res.CandidateName+" "+string(res.MetadataJSON)), q) {
			continue
		}
		cp := *res
		cp.Chunks, cp.ParsedText = nil, ""
		hits = append(hits, cp)
	}
	return page(hits, limit, offset), int64(len(hits)), nil
}

func (r *memRepo) ListResumesWithChunks(ctx context.Context, limit, offset int) ([]models.Resume, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]models.Resume, 0, len(r.resumes))
	for _, res := range r.resumes {
		all = append(all, *res)
	}
	if limit <= 0 {
		return all, int64(len(all)), nil
	}
	return page(all, limit, offset), int64(len(all)), nil
}

func (r *memRepo) ScanResumesWithChunks(ctx context.Context, after *storage.ResumeCursor, limit int) ([]models.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]models.Resume, 0, len(r.resumes))
	for _, res := range r.resumes {
		all = append(all, *res)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ResumeID < all[j].ResumeID
	})
	out := make([]models.Resume, 0, limit)
	for _, res := range all {
		if after != nil && (res.CreatedAt.Before(after.CreatedAt) ||
			(res.CreatedAt.Equal(after.CreatedAt) && res.ResumeID <= after.ResumeID)) {
			continue
		}
		out = append(out, res)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ResumesByIDs(ctx context.Context, ids []string) (map[string]models.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.Resume, len(ids))
	for _, id := range ids {
		if _, res := r.findResume(id); res != nil {
			cp := *res
			cp.Chunks = nil
			out[id] = cp
		}
	}
	return out, nil
}

func (r *memRepo) DeleteResume(ctx context.Context, resumeID string, event *models.OutboxMessage) (*models.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, res := r.findResume(resumeID)
	if res == nil {
		return nil, matching.NewNotFoundError("deleteResume", "Resume not found")
	}
	r.resumes = append(r.resumes[:i], r.resumes[i+1:]...)
	r.addEvent(event)
	return res, nil
}

func (r *memRepo) CreateJob(ctx context.Context, job *models.Job, chunks []models.JobChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.Chunks = append([]models.JobChunk(nil), chunks...)
	r.jobs[job.JobID] = &cp
	return nil
}

func (r *memRepo) GetJob(ctx context.Context, jobID string, withChunks bool) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return nil, matching.NewNotFoundError("getJob", "Job not found")
	}
	cp := *j
	if !withChunks {
		cp.Chunks = nil
	}
	return &cp, nil
}

func (r *memRepo) UpdateJob(ctx context.Context, job *models.Job, chunks []models.JobChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.jobs[job.JobID]
	if !ok {
		return matching.NewNotFoundError("updateJob", "Job not found")
	}
	cp := *job
	cp.Chunks = old.Chunks
	if chunks != nil {
		cp.Chunks = append([]models.JobChunk(nil), chunks...)
	}
	r.jobs[job.JobID] = &cp
	return nil
}

func (r *memRepo) DeactivateJob(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return matching.NewNotFoundError("deleteJob", "Job not found")
	}
	j.IsActive = false
	return nil
}

func (r *memRepo) ListJobs(ctx context.Context, filter storage.JobFilter) ([]models.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var hits []models.Job
	for _, j := range r.jobs {
		if !j.IsActive {
			continue
		}
		if filter.Company != "" && !strings.Contains(strings.ToLower(j.Company), strings.ToLower(filter.Company)) {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(j.Title+" "+j.Description), strings.ToLower(filter.Query)) {
			continue
		}
		cp := *j
		cp.Chunks = nil
		hits = append(hits, cp)
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].JobID < hits[b].JobID })
	return page(hits, filter.Limit, filter.Offset), int64(len(hits)), nil
}

func (r *memRepo) ReplaceMatches(ctx context.Context, jobID string, matches []models.JobMatch, event *models.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[jobID] = append([]models.JobMatch(nil), matches...)
	r.addEvent(event)
	return nil
}

func (r *memRepo) ListMatches(ctx context.Context, jobID string) ([]models.JobMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.JobMatch(nil), r.matches[jobID]...), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// MockCache 内存缓存与锁
type MockCache struct {
	mu         sync.Mutex
	jobChunks  map[string][]matching.EmbeddedChunk
	ask        map[string][]byte
	locks      map[string]string
	lockErr    error
	gets       int
	version    int64
	versionErr error
}

func newMockCache() *MockCache {
	return &MockCache{
		jobChunks: map[string][]matching.EmbeddedChunk{},
		ask:       map[string][]byte{},
		locks:     map[string]string{},
	}
}

func (c *MockCache) GetJobChunks(ctx context.Context, jobID string) ([]matching.EmbeddedChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.jobChunks[jobID]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	return v, nil
}

func (c *MockCache) SetJobChunks(ctx context.Context, jobID string, chunks []matching.EmbeddedChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobChunks[jobID] = chunks
	return nil
}

func (c *MockCache) DeleteJobChunks(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobChunks, jobID)
	return nil
}

func (c *MockCache) GetAskResult(ctx context.Context, version int64, query string, k int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.ask[fmt.Sprintf("%d:%s:%d", version, query, k)]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	return v, nil
}

func (c *MockCache) SetAskResult(ctx context.Context, version int64, query string, k int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ask[fmt.Sprintf("%d:%s:%d", version, query, k)] = payload
	return nil
}

func (c *MockCache) ResumeSetVersion(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versionErr != nil {
		return 0, c.versionErr
	}
	return c.version, nil
}

func (c *MockCache) BumpResumeSetVersion(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versionErr != nil {
		return 0, c.versionErr
	}
	c.version++
	return c.version, nil
}

func (c *MockCache) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lockErr != nil {
		return "", c.lockErr
	}
	if _, held := c.locks[lockKey]; held {
		return "", nil
	}
	c.locks[lockKey] = "token-" + lockKey
	return c.locks[lockKey], nil
}

func (c *MockCache) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[lockKey] != lockValue {
		return false, nil
	}
	delete(c.locks, lockKey)
	return true, nil
}

func (c *MockCache) held(lockKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.locks[lockKey]
	return ok
}

// MockObjects 模拟对象存储
type MockObjects struct {
	uploadErr error
	deleted   []string
}

func (m *MockObjects) UploadResumeFile(ctx context.Context, resumeID, fileExt, contentType string, data []byte) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	return storage.OriginalObjectKey(resumeID, fileExt), nil
}

func (m *MockObjects) UploadParsedText(ctx context.Context, resumeID string, text string) (string, error) {
	return storage.ParsedTextObjectKey(resumeID), nil
}

func (m *MockObjects) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	return "http://minio.local/" + objectKey, nil
}

func (m *MockObjects) DeleteResumeObjects(ctx context.Context, originalKey, parsedKey string) error {
	m.deleted = append(m.deleted, originalKey, parsedKey)
	return nil
}

// MockVectors 模拟向量库
type MockVectors struct {
	upserted map[string]int
	deleted  []string
	results  []storage.SearchResult
	err      error
}

func (m *MockVectors) UpsertResumeChunks(ctx context.Context, resumeID, candidateName string, chunks []matching.EmbeddedChunk) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.upserted == nil {
		m.upserted = map[string]int{}
	}
	m.upserted[resumeID] = len(chunks)
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = storage.PointID(resumeID, i)
	}
	return ids, nil
}

func (m *MockVectors) SearchChunks(ctx context.Context, queryVector []float64, limit int) ([]storage.SearchResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > limit {
		return m.results[:limit], nil
	}
	return m.results, nil
}

func (m *MockVectors) DeleteResumePoints(ctx context.Context, resumeID string) error {
	m.deleted = append(m.deleted, resumeID)
	return m.err
}

var errBoom = errors.New("boom")

// testEnv 组装测试用的组件与服务
type testEnv struct {
	repo    *memRepo
	cache   *MockCache
	objects *MockObjects
	vectors *MockVectors
	embed   *MockEmbedder
	comp    *Components
	set     *Settings
}

func newTestEnv(withOptional bool) *testEnv {
	chunker, err := matching.NewChunker(matching.WithChunkSize(200), matching.WithChunkOverlap(40))
	if err != nil {
		panic(err)
	}
	env := &testEnv{repo: newMemRepo(), embed: newMockEmbedder()}
	env.comp = &Components{
		Extractor: &MockExtractor{},
		Chunker:   chunker,
		Embedder:  env.embed,
		Scorer:    matching.NewScorer(matching.WithRelevanceThreshold(0)),
		Resumes:   env.repo,
		Jobs:      env.repo,
		Matches:   env.repo,
	}
	if withOptional {
		env.cache = newMockCache()
		env.objects = &MockObjects{}
		env.vectors = &MockVectors{}
		env.comp.JobCache, env.comp.AskCache, env.comp.Locker = env.cache, env.cache, env.cache
		env.comp.Objects, env.comp.Vectors = env.objects, env.vectors
	}
	env.set = DefaultSettings()
	env.set.MatchLockTTL = 300 * time.Millisecond
	env.set.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return env
}
