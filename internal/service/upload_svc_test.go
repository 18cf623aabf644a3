package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/config"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/model"
)

type fakeDocs struct {
	docs map[uuid.UUID]*model.Document
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[uuid.UUID]*model.Document)}
}

func (f *fakeDocs) Upsert(_ context.Context, doc *model.Document) error {
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeDocs) FindByID(_ context.Context, id uuid.UUID) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return doc, nil
}

type fakeJobs struct {
	jobs map[uuid.UUID]*model.UploadJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[uuid.UUID]*model.UploadJob)}
}

func (f *fakeJobs) CreateIfNoneActive(_ context.Context, job *model.UploadJob) (bool, *model.UploadJob, error) {
	for _, existing := range f.jobs {
		if existing.DocumentID == job.DocumentID && !existing.Stage.Terminal() {
			return false, existing, nil
		}
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	f.jobs[job.ID] = job
	return true, job, nil
}

func (f *fakeJobs) FindByID(_ context.Context, id uuid.UUID) (*model.UploadJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

type fakeBlobs struct {
	saved map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{saved: make(map[string][]byte)}
}

func (f *fakeBlobs) Save(key string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.saved[key] = data
	return "/blobs/" + key, nil
}

func uploadTestConfig() *config.Config {
	return &config.Config{
		MaxUploadSize:       1024,
		ParserVersion:       "v1",
		ChunkerName:         "markdown",
		ChunkerVersion:      "v1",
		TokenCounter:        "cl100k_base",
		MaxChunkTokens:      512,
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		MaxRetries:          3,
	}
}

func TestSubmitCreatesDocumentAndJob(t *testing.T) {
	docs, jobs, blobs := newFakeDocs(), newFakeJobs(), newFakeBlobs()
	svc := NewUploadService(docs, jobs, blobs, uploadTestConfig(), nil, nil)

	owner := uuid.New()
	result, err := svc.Submit(context.Background(), owner, "policy.txt", "text/plain", strings.NewReader("policy body"))
	require.NoError(t, err)

	assert.True(t, result.JobCreated)
	assert.NotEqual(t, uuid.Nil, result.DocumentID)
	assert.NotEqual(t, uuid.Nil, result.JobID)

	doc, err := docs.FindByID(context.Background(), result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, owner, doc.OwnerID)
	assert.Equal(t, model.DocumentStatusUploaded, doc.Status)
	assert.NotEmpty(t, doc.ContentHash)
	assert.Equal(t, int64(len("policy body")), doc.SizeBytes)

	job, err := jobs.FindByID(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.StageUploaded, job.Stage)
	assert.Equal(t, "markdown", job.Spec.ChunkerName)
	assert.Equal(t, "cl100k_base", job.Spec.TokenCounter, "the counter is pinned at enqueue time")
	assert.Equal(t, 3, job.MaxRetries)
}

func TestSubmitSameContentIsIdempotent(t *testing.T) {
	docs, jobs, blobs := newFakeDocs(), newFakeJobs(), newFakeBlobs()
	svc := NewUploadService(docs, jobs, blobs, uploadTestConfig(), nil, nil)

	owner := uuid.New()
	first, err := svc.Submit(context.Background(), owner, "policy.txt", "text/plain", strings.NewReader("same bytes"))
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), owner, "renamed.txt", "text/plain", strings.NewReader("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, first.DocumentID, second.DocumentID, "same owner and content must address the same document")
	assert.Equal(t, first.JobID, second.JobID, "an active job must be reused")
	assert.False(t, second.JobCreated)
	assert.Len(t, docs.docs, 1)
	assert.Len(t, jobs.jobs, 1)
}

func TestSubmitSameContentDifferentOwners(t *testing.T) {
	docs, jobs, blobs := newFakeDocs(), newFakeJobs(), newFakeBlobs()
	svc := NewUploadService(docs, jobs, blobs, uploadTestConfig(), nil, nil)

	first, err := svc.Submit(context.Background(), uuid.New(), "policy.txt", "text/plain", strings.NewReader("shared bytes"))
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), uuid.New(), "policy.txt", "text/plain", strings.NewReader("shared bytes"))
	require.NoError(t, err)

	assert.NotEqual(t, first.DocumentID, second.DocumentID)
	assert.Len(t, docs.docs, 2)
}

func TestSubmitNewJobAfterCompletion(t *testing.T) {
	docs, jobs, blobs := newFakeDocs(), newFakeJobs(), newFakeBlobs()
	svc := NewUploadService(docs, jobs, blobs, uploadTestConfig(), nil, nil)

	owner := uuid.New()
	first, err := svc.Submit(context.Background(), owner, "policy.txt", "text/plain", strings.NewReader("content"))
	require.NoError(t, err)

	jobs.jobs[first.JobID].Stage = model.StageComplete

	second, err := svc.Submit(context.Background(), owner, "policy.txt", "text/plain", strings.NewReader("content"))
	require.NoError(t, err)

	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.True(t, second.JobCreated)
	assert.NotEqual(t, first.JobID, second.JobID)
}

func TestSubmitRejectsOversizedUpload(t *testing.T) {
	svc := NewUploadService(newFakeDocs(), newFakeJobs(), newFakeBlobs(), uploadTestConfig(), nil, nil)

	big := strings.NewReader(strings.Repeat("x", 2048))
	_, err := svc.Submit(context.Background(), uuid.New(), "big.txt", "text/plain", big)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestSubmitRequiresOwner(t *testing.T) {
	svc := NewUploadService(newFakeDocs(), newFakeJobs(), newFakeBlobs(), uploadTestConfig(), nil, nil)

	_, err := svc.Submit(context.Background(), uuid.Nil, "policy.txt", "text/plain", strings.NewReader("body"))
	assert.Error(t, err)
}

func TestSubmitStripsDirectoryFromFilename(t *testing.T) {
	docs, jobs, blobs := newFakeDocs(), newFakeJobs(), newFakeBlobs()
	svc := NewUploadService(docs, jobs, blobs, uploadTestConfig(), nil, nil)

	result, err := svc.Submit(context.Background(), uuid.New(), "../../etc/passwd", "text/plain", strings.NewReader("body"))
	require.NoError(t, err)

	doc, err := docs.FindByID(context.Background(), result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "passwd", doc.FileName)
}

func TestStatusReflectsJobState(t *testing.T) {
	docs, jobs, blobs := newFakeDocs(), newFakeJobs(), newFakeBlobs()
	svc := NewUploadService(docs, jobs, blobs, uploadTestConfig(), nil, nil)

	result, err := svc.Submit(context.Background(), uuid.New(), "policy.txt", "text/plain", strings.NewReader("body"))
	require.NoError(t, err)

	jobs.jobs[result.JobID].Stage = model.StageChunking
	jobs.jobs[result.JobID].RetryCount = 1

	status, err := svc.Status(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.Equal(t, result.DocumentID, status.DocumentID)
	assert.Equal(t, model.StageChunking, status.Stage)
	assert.Equal(t, 1, status.RetryCount)
}
