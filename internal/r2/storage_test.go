package r2

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu       sync.Mutex
	failures int
	calls    int32
	keys     []string
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	atomic.AddInt32(&f.calls, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("transient")
	}
	f.keys = append(f.keys, aws.ToString(in.Key))
	return &manager.UploadOutput{}, nil
}

func newTestStorage(up uploader, retries int) *S3 {
	s := &S3{
		Bucket:         "bucket",
		Workers:        2,
		QueueSize:      4,
		MaxRetries:     retries,
		RetryBaseDelay: time.Millisecond,
		Uploader:       up,
	}
	s.start()
	return s
}

func TestUpload_RetriesThenSucceeds(t *testing.T) {
	up := &fakeUploader{failures: 2}
	s := newTestStorage(up, 3)
	defer s.Close()

	require.NoError(t, s.Upload(context.Background(), "k", "image/png", []byte{1}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&up.calls))
	assert.Equal(t, []string{"k"}, up.keys)
}

func TestUpload_GivesUp(t *testing.T) {
	up := &fakeUploader{failures: 10}
	s := newTestStorage(up, 1)
	defer s.Close()

	err := s.Upload(context.Background(), "k", "image/png", nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&up.calls))
}

func TestUploadWithHook(t *testing.T) {
	up := &fakeUploader{failures: 0}
	s := newTestStorage(up, 0)

	done := make(chan struct{})
	err := s.UploadWithHook(context.Background(), "a", "image/png", []byte{1}, func() { close(done) }, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("success hook never ran")
	}
	s.Close()
}

func TestUploadWithHook_FailureHook(t *testing.T) {
	up := &fakeUploader{failures: 5}
	s := newTestStorage(up, 0)
	defer s.Close()

	errCh := make(chan error, 1)
	err := s.UploadWithHook(context.Background(), "a", "image/png", nil, nil, func(err error) { errCh <- err })
	require.NoError(t, err)

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("failure hook never ran")
	}
}

func TestUploadWithHook_QueueFull(t *testing.T) {
	s := &S3{queue: make(chan uploadReq)}

	err := s.UploadWithHook(context.Background(), "a", "image/png", nil, nil, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestBackoffDelay(t *testing.T) {
	s := &S3{RetryBaseDelay: 100 * time.Millisecond}

	for attempt := 1; attempt <= 4; attempt++ {
		base := 100 * time.Millisecond << (attempt - 1)
		d := s.backoffDelay(attempt)
		assert.GreaterOrEqual(t, d, base-base/20)
		assert.Less(t, d, base+base/20+1)
	}
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://acc.r2.cloudflarestorage.com", (&S3{AccountID: "acc"}).endpoint())
	assert.Equal(t, "http://localhost:9000", (&S3{AccountID: "acc", Endpoint: "http://localhost:9000"}).endpoint())
}
