package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        string
}

// fakeS3 answers path-style S3 requests and records them
type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request) bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Body:        string(body),
	})
	f.mu.Unlock()

	if f.handler != nil && f.handler(w, r) {
		return
	}
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestS3(t *testing.T, fake *fakeS3, prefix string) *S3ArtifactStorage {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	s, err := NewS3ArtifactStorage(context.Background(), &config.StorageConfig{
		Backend: BackendS3,
		Prefix:  prefix,
		S3: config.S3Config{
			Endpoint:        server.URL,
			Region:          "eu-west-1",
			Bucket:          "invoices",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			UsePathStyle:    true,
		},
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func TestNewS3ArtifactStorage_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3ArtifactStorage(ctx, nil)
	assert.ErrorContains(t, err, "configuration is required")

	_, err = NewS3ArtifactStorage(ctx, &config.StorageConfig{S3: config.S3Config{AccessKeyID: "k", SecretAccessKey: "s"}})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3ArtifactStorage(ctx, &config.StorageConfig{S3: config.S3Config{Bucket: "b", AccessKeyID: "k"}})
	assert.ErrorContains(t, err, "secret key are required")
}

func TestS3ArtifactStorage_Key(t *testing.T) {
	s := &S3ArtifactStorage{prefix: "invoices/2024"}
	assert.Equal(t, "invoices/2024/Invoice - Acme - 00000003 - 15-01-2024.pdf", s.Key("Invoice - Acme - 00000003 - 15-01-2024.pdf"))

	s.prefix = ""
	assert.Equal(t, "a.pdf", s.Key("a.pdf"))
}

func TestS3ArtifactStorage_Upload(t *testing.T) {
	fake := &fakeS3{}
	s := newTestS3(t, fake, "/issued/")
	assert.Equal(t, "invoices", s.Bucket())

	err := s.Upload(context.Background(), "Invoice - Acme - 00000003 - 15-01-2024.pdf", strings.NewReader("%PDF-1.3 body"))
	require.NoError(t, err)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/invoices/issued/Invoice - Acme - 00000003 - 15-01-2024.pdf", reqs[0].Path)
	assert.Equal(t, "application/pdf", reqs[0].ContentType)
	assert.Equal(t, "%PDF-1.3 body", reqs[0].Body)
}

func TestS3ArtifactStorage_UploadNonSeekable(t *testing.T) {
	fake := &fakeS3{}
	s := newTestS3(t, fake, "")

	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("streamed"))
		_ = pw.Close()
	}()

	require.NoError(t, s.Upload(context.Background(), "a.pdf", pr))
	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/invoices/a.pdf", reqs[0].Path)
	assert.Equal(t, "streamed", reqs[0].Body)
}

func TestS3ArtifactStorage_UploadErrors(t *testing.T) {
	fake := &fakeS3{handler: func(w http.ResponseWriter, r *http.Request) bool {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
		return true
	}}
	s := newTestS3(t, fake, "")

	err := s.Upload(context.Background(), "a.pdf", strings.NewReader("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, invoicing.ErrStorageFailed)
	assert.Contains(t, err.Error(), "AccessDenied")
	assert.Len(t, fake.recorded(), 1, "sdk retries are disabled")

	err = s.Upload(context.Background(), "", strings.NewReader("x"))
	assert.ErrorIs(t, err, invoicing.ErrStorageFailed)
}

func TestS3ArtifactStorage_EnsureBucket(t *testing.T) {
	t.Run("existing bucket", func(t *testing.T) {
		fake := &fakeS3{}
		s := newTestS3(t, fake, "")

		require.NoError(t, s.EnsureBucket(context.Background()))
		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodHead, reqs[0].Method)
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		fake := &fakeS3{handler: func(w http.ResponseWriter, r *http.Request) bool {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return true
			}
			return false
		}}
		s := newTestS3(t, fake, "")

		require.NoError(t, s.EnsureBucket(context.Background()))
		reqs := fake.recorded()
		require.Len(t, reqs, 2)
		assert.Equal(t, http.MethodPut, reqs[1].Method)
		assert.Equal(t, "/invoices", reqs[1].Path)
	})
}
