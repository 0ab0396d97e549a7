package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/12222526/Rag-Resume/internal/constants"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceResume = `Alice Zhang
alice@example.com | 555-123-4567
Senior engineer with 6 years of experience building Python services on AWS with Docker and Kubernetes.
Bachelor degree in Computer Science from Tsinghua University.
Led a team of five engineers and shipped a SQL analytics platform.`

const bobResume = `Bob Li
bob@example.com
Frontend developer with 2 years of experience in React, TypeScript, HTML and CSS.
Built design systems and accessibility tooling for a retail website.`

func newResumeService(t *testing.T, env *testEnv) *ResumeService {
	t.Helper()
	svc, err := NewResumeService(env.comp, env.set)
	require.NoError(t, err)
	return svc
}

func TestNewResumeService_RequiresComponents(t *testing.T) {
	_, err := NewResumeService(nil, DefaultSettings())
	assert.Error(t, err)

	_, err = NewResumeService(&Components{}, DefaultSettings())
	assert.Error(t, err)
}

func TestResumeService_Upload(t *testing.T) {
	env := newTestEnv(true)
	env.set.EventsExchange = constants.DefaultEventsExchange
	svc := newResumeService(t, env)

	res, err := svc.Upload(context.Background(), "alice.txt", []byte(aliceResume))
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, res.ID+".txt", res.Filename)
	assert.Equal(t, "alice.txt", res.OriginalName)
	assert.Equal(t, "Alice Zhang", res.Metadata.Name)
	assert.Equal(t, "alice@example.com", res.Metadata.Email)
	assert.Equal(t, 6, res.Metadata.Experience)
	assert.Contains(t, res.Metadata.Skills, "python")
	assert.Contains(t, res.Metadata.Skills, "docker")
	assert.Greater(t, res.ChunkCount, 1)
	assert.Empty(t, res.Warnings)

	stored, err := env.repo.GetResume(context.Background(), res.ID, true)
	require.NoError(t, err)
	assert.Equal(t, aliceResume, stored.ParsedText)
	assert.Len(t, stored.Chunks, res.ChunkCount)
	assert.Equal(t, matching.HashEmbeddingDimensions, stored.EmbeddingDimensions)
	assert.Len(t, stored.TextMD5, 32)
	assert.Equal(t, "resumes/"+res.ID+"/original.txt", stored.OriginalObjectKey)
	assert.Equal(t, "parsed/"+res.ID+"/parsed_text.txt", stored.ParsedTextObjectKey)
	for i, c := range stored.Chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.NotEmpty(t, c.PointID)
	}
	assert.Equal(t, res.ChunkCount, env.vectors.upserted[res.ID])

	require.Len(t, env.repo.events, 1)
	assert.Equal(t, constants.EventResumeIngested, env.repo.events[0].EventType)
	assert.Equal(t, res.ID, env.repo.events[0].AggregateID)
}

func TestResumeService_Upload_NoEventsWithoutExchange(t *testing.T) {
	env := newTestEnv(false)
	svc := newResumeService(t, env)

	_, err := svc.Upload(context.Background(), "bob.txt", []byte(bobResume))
	require.NoError(t, err)
	assert.Empty(t, env.repo.events)
}

func TestResumeService_Upload_Validation(t *testing.T) {
	env := newTestEnv(false)
	env.set.MaxUploadBytes = 64
	svc := newResumeService(t, env)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "a.txt", nil)
	assert.ErrorIs(t, err, matching.ErrValidation)

	_, err = svc.Upload(ctx, "a.docx", []byte("hello"))
	assert.ErrorIs(t, err, matching.ErrValidation)
	assert.Contains(t, err.Error(), "Only PDF and TXT files are allowed")

	_, err = svc.Upload(ctx, "a.txt", []byte(strings.Repeat("x", 65)))
	assert.ErrorIs(t, err, matching.ErrValidation)

	_, err = svc.Upload(ctx, "blank.txt", []byte("   \n\t  "))
	assert.ErrorIs(t, err, matching.ErrValidation)
	assert.Empty(t, env.repo.resumes)
}

func TestResumeService_Upload_EmbeddingFailureAborts(t *testing.T) {
	env := newTestEnv(true)
	env.embed.err = errBoom
	svc := newResumeService(t, env)

	_, err := svc.Upload(context.Background(), "alice.txt", []byte(aliceResume))
	require.Error(t, err)
	assert.Empty(t, env.repo.resumes)
	assert.Empty(t, env.vectors.upserted)
}

func TestResumeService_Upload_SideEffectFailuresAreWarnings(t *testing.T) {
	env := newTestEnv(true)
	env.objects.uploadErr = errBoom
	env.vectors.err = errBoom
	svc := newResumeService(t, env)

	res, err := svc.Upload(context.Background(), "alice.txt", []byte(aliceResume))
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)

	stored, err := env.repo.GetResume(context.Background(), res.ID, false)
	require.NoError(t, err)
	assert.Empty(t, stored.OriginalObjectKey)
}

func TestResumeService_ListAndGet(t *testing.T) {
	env := newTestEnv(false)
	svc := newResumeService(t, env)
	ctx := context.Background()

	a, err := svc.Upload(ctx, "alice.txt", []byte(aliceResume))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "bob.txt", []byte(bobResume))
	require.NoError(t, err)

	list, err := svc.List(ctx, "", 1, 0)
	require.NoError(t, err)
	assert.Len(t, list.Resumes, 1)
	assert.Equal(t, int64(2), list.Pagination.Total)
	assert.True(t, list.Pagination.HasMore)

	list, err = svc.List(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, list.Resumes, 1)
	assert.Equal(t, a.ID, list.Resumes[0].ID)
	assert.Equal(t, 10, list.Pagination.Limit)
	assert.False(t, list.Pagination.HasMore)

	detail, err := svc.Get(ctx, a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, aliceResume, detail.Text)
	assert.Empty(t, detail.RedactionLevel)

	redacted, err := svc.Get(ctx, a.ID, true)
	require.NoError(t, err)
	assert.Equal(t, parser.RedactStandard, redacted.RedactionLevel)
	assert.NotContains(t, redacted.Text, "alice@example.com")
	assert.Contains(t, redacted.Text, "[EMAIL]")

	_, err = svc.Get(ctx, "missing", false)
	assert.ErrorIs(t, err, matching.ErrNotFound)
}

func TestResumeService_Delete(t *testing.T) {
	env := newTestEnv(true)
	env.set.EventsExchange = constants.DefaultEventsExchange
	svc := newResumeService(t, env)
	ctx := context.Background()

	res, err := svc.Upload(ctx, "alice.txt", []byte(aliceResume))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, res.ID))
	assert.Empty(t, env.repo.resumes)
	assert.Equal(t, []string{res.ID}, env.vectors.deleted)
	assert.Contains(t, env.objects.deleted, "resumes/"+res.ID+"/original.txt")
	require.Len(t, env.repo.events, 2)
	assert.Equal(t, constants.EventResumeDeleted, env.repo.events[1].EventType)

	err = svc.Delete(ctx, res.ID)
	assert.ErrorIs(t, err, matching.ErrNotFound)
}
