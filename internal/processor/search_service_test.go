package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"
	"github.com/12222526/Rag-Resume/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchFixture(t *testing.T, withOptional bool) (*testEnv, *SearchService, *ResumeService) {
	t.Helper()
	env := newTestEnv(withOptional)
	resumes := newResumeService(t, env)
	svc, err := NewSearchService(env.comp, env.set)
	require.NoError(t, err)
	return env, svc, resumes
}

func TestSearchService_Ask(t *testing.T) {
	env, svc, resumes := newSearchFixture(t, true)
	ctx := context.Background()

	alice, err := resumes.Upload(ctx, "alice.txt", []byte(aliceResume))
	require.NoError(t, err)
	_, err = resumes.Upload(ctx, "bob.txt", []byte(bobResume))
	require.NoError(t, err)

	resp, err := svc.Ask(ctx, "Python engineer on AWS", 1)
	require.NoError(t, err)
	assert.Equal(t, "Python engineer on AWS", resp.Query)
	assert.Equal(t, 2, resp.TotalFound)
	require.Len(t, resp.Results, 1)
	assert.NotEmpty(t, resp.Results[0].Evidence)
	assert.LessOrEqual(t, len(resp.Results[0].Evidence), 1)

	// 第二次请求命中缓存，不再向量化
	calls := env.embed.Calls()
	cached, err := svc.Ask(ctx, "Python engineer on AWS", 1)
	require.NoError(t, err)
	assert.Equal(t, calls, env.embed.Calls())
	assert.Equal(t, resp.Results[0].ResumeID, cached.Results[0].ResumeID)

	// 查询与某一分块完全相同时，该简历排第一
	stored, err := env.repo.GetResume(ctx, alice.ID, true)
	require.NoError(t, err)
	exact, err := svc.Ask(ctx, stored.Chunks[0].ChunkText, 1)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, exact.Results[0].ResumeID)
	assert.Equal(t, "Alice Zhang", exact.Results[0].CandidateName)
	assert.Equal(t, 100, exact.Results[0].Evidence[0].Similarity)

	_, err = svc.Ask(ctx, "  ", 5)
	assert.ErrorIs(t, err, matching.ErrValidation)
	assert.Contains(t, err.Error(), "Query is required")
}

func TestSearchService_Ask_BatchedMergeMatchesSinglePass(t *testing.T) {
	env, svc, resumes := newSearchFixture(t, false)
	ctx := context.Background()

	for i := 0; i < resumeLoadBatch+5; i++ {
		text := fmt.Sprintf("Candidate %d\nEngineer number %d who writes Python and SQL daily.", i, i)
		_, err := resumes.Upload(ctx, fmt.Sprintf("r%d.txt", i), []byte(text))
		require.NoError(t, err)
	}

	resp, err := svc.Ask(ctx, "Python and SQL engineer", 7)
	require.NoError(t, err)

	all, _, err := env.repo.ListResumesWithChunks(ctx, 0, 0)
	require.NoError(t, err)
	docs := make([]matching.Document, 0, len(all))
	for i := range all {
		d, err := all[i].ToDocument()
		require.NoError(t, err)
		docs = append(docs, d)
	}
	qv, err := matching.Embed(ctx, env.embed, "Python and SQL engineer")
	require.NoError(t, err)
	want, total := matching.Ask(qv, docs, 7)

	assert.Equal(t, total, resp.TotalFound)
	assert.Equal(t, want, resp.Results)
}

func TestSearchService_Search(t *testing.T) {
	_, svc, resumes := newSearchFixture(t, false)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := resumes.Upload(ctx, name, []byte(aliceResume))
		require.NoError(t, err)
	}

	resp, err := svc.Search(ctx, "python docker", 2, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Pagination.Limit)
	assert.True(t, resp.Pagination.HasMore)
	assert.Equal(t, int64(len(resp.Results)), resp.Pagination.Total)
	for _, hit := range resp.Results {
		assert.Equal(t, "semantic", hit.MatchType)
		assert.Contains(t, hit.Skills, "python")
	}

	resp, err = svc.Search(ctx, "python docker", 2, 2, 0)
	require.NoError(t, err)
	assert.False(t, resp.Pagination.HasMore)
	assert.LessOrEqual(t, len(resp.Results), 1)

	resp, err = svc.Search(ctx, "python docker", 10, 0, 101)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 101, resp.MinScore)

	_, err = svc.Search(ctx, "", 10, 0, 0)
	assert.ErrorIs(t, err, matching.ErrValidation)
}

func TestSearchService_CandidateProfile(t *testing.T) {
	_, svc, resumes := newSearchFixture(t, true)
	ctx := context.Background()

	alice, err := resumes.Upload(ctx, "alice.txt", []byte(aliceResume))
	require.NoError(t, err)

	profile, err := svc.CandidateProfile(ctx, alice.ID, false, false)
	require.NoError(t, err)
	assert.Equal(t, "alice.txt", profile.ResumeName)
	assert.Equal(t, "Alice Zhang", profile.Metadata.Name)
	assert.Equal(t, int64(alice.ChunkCount), profile.Stats.TotalChunks)
	assert.Equal(t, matching.HashEmbeddingDimensions, profile.Stats.EmbeddingDimensions)
	assert.Equal(t, alice.TextLength, profile.Stats.TextLength)
	assert.Equal(t, "http://minio.local/resumes/"+alice.ID+"/original.txt", profile.FileInfo.DownloadURL)
	assert.Nil(t, profile.Text)

	profile, err = svc.CandidateProfile(ctx, alice.ID, true, true)
	require.NoError(t, err)
	require.NotNil(t, profile.Text)
	assert.Contains(t, *profile.Text, "[EMAIL]")
	assert.Equal(t, parser.RedactStandard, profile.RedactionLevel)

	_, err = svc.CandidateProfile(ctx, "missing", false, false)
	assert.ErrorIs(t, err, matching.ErrNotFound)
	assert.Contains(t, err.Error(), "Candidate not found")
}

func TestSearchService_VectorSearch(t *testing.T) {
	env, svc, _ := newSearchFixture(t, true)
	ctx := context.Background()

	env.vectors.results = []storage.SearchResult{
		{ResumeID: "r1", ChunkIndex: 2, Text: "go", Score: 0.876, Payload: map[string]interface{}{"candidate_name": "Alice"}},
		{ResumeID: "r2", ChunkIndex: 0, Text: "java", Score: 0.5},
	}
	resp, err := svc.VectorSearch(ctx, "golang", 1)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, VectorHit{ResumeID: "r1", CandidateName: "Alice", ChunkIndex: 2, Text: "go", Score: 88}, resp.Results[0])

	env.vectors.err = errBoom
	_, err = svc.VectorSearch(ctx, "golang", 1)
	assert.ErrorIs(t, err, ErrVectorIndexFailed)

	_, noVectors, _ := newSearchFixture(t, false)
	_, err = noVectors.VectorSearch(ctx, "golang", 1)
	assert.ErrorIs(t, err, ErrVectorSearchUnavailable)
}

func TestSearchService_AskCacheIgnoresCorruptPayload(t *testing.T) {
	env, svc, resumes := newSearchFixture(t, true)
	ctx := context.Background()
	_, err := resumes.Upload(ctx, "bob.txt", []byte(bobResume))
	require.NoError(t, err)

	version, err := env.cache.ResumeSetVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, env.cache.SetAskResult(ctx, version, "react", 3, []byte("{not json")))
	resp, err := svc.Ask(ctx, "react", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalFound)

	raw, err := env.cache.GetAskResult(ctx, version, "react", 3)
	require.NoError(t, err)
	var round AskResponse
	require.NoError(t, json.Unmarshal(raw, &round))
	assert.Equal(t, 1, round.TotalFound)
}

func TestSearchService_AskCacheFollowsResumeSet(t *testing.T) {
	env, svc, resumes := newSearchFixture(t, true)
	ctx := context.Background()

	alice, err := resumes.Upload(ctx, "alice.txt", []byte(aliceResume))
	require.NoError(t, err)
	bob, err := resumes.Upload(ctx, "bob.txt", []byte(bobResume))
	require.NoError(t, err)

	before, err := svc.Ask(ctx, "Python engineer", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, before.TotalFound)

	require.NoError(t, resumes.Delete(ctx, alice.ID))
	after, err := svc.Ask(ctx, "Python engineer", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, after.TotalFound)
	require.Len(t, after.Results, 1)
	assert.Equal(t, bob.ID, after.Results[0].ResumeID)

	// 新上传的简历立即可见
	again, err := resumes.Upload(ctx, "alice.txt", []byte(aliceResume))
	require.NoError(t, err)
	latest, err := svc.Ask(ctx, "Python engineer", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.TotalFound)
	ids := []string{latest.Results[0].ResumeID, latest.Results[1].ResumeID}
	assert.ElementsMatch(t, []string{bob.ID, again.ID}, ids)

	version, err := env.cache.ResumeSetVersion(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, version)
}

func TestSearchService_AskSkipsCacheWhenVersionUnavailable(t *testing.T) {
	env, svc, resumes := newSearchFixture(t, true)
	ctx := context.Background()
	_, err := resumes.Upload(ctx, "bob.txt", []byte(bobResume))
	require.NoError(t, err)

	env.cache.versionErr = errBoom
	_, err = svc.Ask(ctx, "react", 3)
	require.NoError(t, err)
	calls := env.embed.Calls()
	_, err = svc.Ask(ctx, "react", 3)
	require.NoError(t, err)
	assert.Greater(t, env.embed.Calls(), calls)
	assert.Empty(t, env.cache.ask)
}
