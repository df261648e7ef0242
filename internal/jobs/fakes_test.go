package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
	"github.com/joseph-ayodele/network-extractor/internal/repository"
)

type memBlob struct {
	data  map[string][]byte
	types map[string]string
	fail  error
	signs int
}

func newMemBlob() *memBlob {
	return &memBlob{data: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlob) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memBlob) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *memBlob) ContentType(_ context.Context, key string) (string, error) {
	t, ok := m.types[key]
	if !ok {
		return "", common.NotFoundError("object " + key)
	}
	return t, nil
}

func (m *memBlob) Download(_ context.Context, key string) ([]byte, error) {
	b, ok := m.data[key]
	if !ok {
		return nil, common.NotFoundError("object " + key)
	}
	return b, nil
}

func (m *memBlob) PresignedURL(_ context.Context, key string, ttl time.Duration, filename string) (string, error) {
	m.signs++
	return fmt.Sprintf("https://blob.test/%s?ttl=%s&name=%s&n=%d", key, ttl, filename, m.signs), nil
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []entity.QueueMessage
}

func (p *fakePublisher) Publish(_ context.Context, msg entity.QueueMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepo(t *testing.T) repository.JobRepository {
	t.Helper()
	repo, err := repository.NewSQLiteJobRepository(filepath.Join(t.TempDir(), "jobs.db"), newTestLogger())
	if err != nil {
		t.Fatalf("failed to open sqlite repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestService(t *testing.T) (*Service, repository.JobRepository, *memBlob, *fakePublisher) {
	t.Helper()
	repo := newTestRepo(t)
	blobs := newMemBlob()
	pub := &fakePublisher{}
	svc := NewService(repo, blobs, pub, nil, Config{
		MaxUploadBytes:   1024,
		PublishBaseDelay: time.Millisecond,
		PublishMaxDelay:  2 * time.Millisecond,
		StaleAfter:       2 * time.Hour,
	}, newTestLogger())
	return svc, repo, blobs, pub
}
