package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/async"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
	"github.com/joseph-ayodele/relief-tracker/internal/repository"
	"github.com/joseph-ayodele/relief-tracker/internal/storage"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type fixture struct {
	receipts repository.ReceiptRepository
	local    *storage.Local
	queue    *fakeQueue
	svc      *Service
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, ":memory:", quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(quietLogger()) })
	require.NoError(t, repository.Migrate(ctx, db, quietLogger()))

	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	f := &fixture{
		receipts: repository.NewReceiptRepository(db, quietLogger()),
		local:    local,
		queue:    &fakeQueue{},
	}
	f.svc = NewService(f.receipts, local, f.queue, quietLogger())
	return f
}

func (f *fixture) userReceipts(t *testing.T, userID string) []*entity.Receipt {
	t.Helper()
	rs, err := f.receipts.ListRecent(context.Background(), userID, 100)
	require.NoError(t, err)
	return rs
}

var receiptBytes = []byte("GUARDIAN PHARMACY\n15/03/2024\nTOTAL RM 45.00\n")

func TestUpload_CreatesStoresAndEnqueues(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Upload(context.Background(), "u1", "scan.txt", receiptBytes)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, "txt", res.FileExt)
	assert.Len(t, res.HashHex, 64)

	rs := f.userReceipts(t, "u1")
	require.Len(t, rs, 1)
	rec := rs[0]
	assert.Equal(t, res.ReceiptID, rec.ID.String())
	assert.Equal(t, constants.SourceUpload, rec.Source)
	assert.Equal(t, constants.StatusPending, rec.Status())
	assert.Equal(t, res.HashHex, rec.ContentHash)
	assert.Equal(t, filepath.Join(f.local.Root(), "u1", res.HashHex+".txt"), rec.StorageRef)

	stored, err := os.ReadFile(rec.StorageRef)
	require.NoError(t, err)
	assert.Equal(t, receiptBytes, stored)

	require.Equal(t, 1, f.queue.count())
	assert.Equal(t, rec.ID, f.queue.jobs[0].ReceiptID)
	assert.False(t, f.queue.jobs[0].Force)
}

func TestUpload_DeduplicatesPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, "u1", "a.txt", receiptBytes)
	require.NoError(t, err)
	again, err := f.svc.Upload(ctx, "u1", "renamed.txt", receiptBytes)
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, first.ReceiptID, again.ReceiptID)

	other, err := f.svc.Upload(ctx, "u2", "a.txt", receiptBytes)
	require.NoError(t, err)
	assert.False(t, other.Deduplicated)
	assert.NotEqual(t, first.ReceiptID, other.ReceiptID)

	assert.Len(t, f.userReceipts(t, "u1"), 1)
	assert.Equal(t, 2, f.queue.count())
}

func TestUpload_DetectsExtensionFromContent(t *testing.T) {
	f := newFixture(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

	res, err := f.svc.Forwarded(context.Background(), "u1", "", png)
	require.NoError(t, err)
	assert.Equal(t, "png", res.FileExt)

	rs := f.userReceipts(t, "u1")
	require.Len(t, rs, 1)
	assert.Equal(t, constants.SourceForwarded, rs[0].Source)
	assert.Equal(t, ".png", filepath.Ext(rs[0].StorageRef))
}

func TestUpload_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, "", "a.txt", receiptBytes)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.Upload(ctx, "u1", "a.txt", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.svc.Upload(ctx, "u1", "a.docx", receiptBytes)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	assert.Empty(t, f.userReceipts(t, "u1"))
	assert.Equal(t, 0, f.queue.count())
}

func TestUpload_ClosedQueueLeavesReceiptPending(t *testing.T) {
	f := newFixture(t)
	f.queue.err = async.ErrQueueClosed

	res, err := f.svc.Upload(context.Background(), "u1", "a.txt", receiptBytes)
	require.NoError(t, err)
	id, err := uuid.Parse(res.ReceiptID)
	require.NoError(t, err)
	rec, err := f.receipts.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, rec.Status())
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "u1", "s3://receipts/u1/abc.jpg", constants.SourceForwarded)
	require.NoError(t, err)
	assert.Equal(t, "s3://receipts/u1/abc.jpg", res.StorageRef)
	assert.Equal(t, 1, f.queue.count())

	_, err = f.svc.Register(ctx, "u1", "s3://receipts/u1/abc", constants.SourceUpload)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = f.svc.Register(ctx, "u1", "", constants.SourceUpload)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDirectory(t *testing.T) {
	f := newFixture(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "receipt a")
	writeFile(t, filepath.Join(root, "b.JPG"), "receipt b")
	writeFile(t, filepath.Join(root, "sub", "c.pdf"), "receipt c")
	writeFile(t, filepath.Join(root, "sub", "copy-of-a.txt"), "receipt a")
	writeFile(t, filepath.Join(root, "notes.docx"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden.png"), "ignored")
	writeFile(t, filepath.Join(root, ".cache", "d.png"), "ignored")
	writeFile(t, filepath.Join(root, "empty.png"), "")

	results, stats, err := f.svc.Directory(context.Background(), "u1", root, true)
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Matched)
	assert.EqualValues(t, 4, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.EqualValues(t, 1, stats.Failed)
	assert.Len(t, results, 5)
	assert.Len(t, f.userReceipts(t, "u1"), 3)

	_, _, err = f.svc.Directory(context.Background(), "u1", " ", true)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestWatcher_UserFor(t *testing.T) {
	w := NewWatcher(nil, WatchConfig{Root: "/inbox", DefaultUserID: "owner"}, quietLogger())
	assert.Equal(t, "alice", w.UserFor("/inbox/alice/r.jpg"))
	assert.Equal(t, "alice", w.UserFor("/inbox/alice/2024/r.jpg"))
	assert.Equal(t, "owner", w.UserFor("/inbox/r.jpg"))
	assert.Equal(t, "", w.UserFor("/elsewhere/r.jpg"))

	noDefault := NewWatcher(nil, WatchConfig{Root: "/inbox"}, quietLogger())
	assert.Equal(t, "", noDefault.UserFor("/inbox/r.jpg"))
}

func TestWatcher_IngestsDroppedFiles(t *testing.T) {
	f := newFixture(t)
	inbox := t.TempDir()
	writeFile(t, filepath.Join(inbox, "bob", "old.txt"), "already here")

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(f.svc, WatchConfig{Root: inbox, InitialScan: true, Debounce: 40 * time.Millisecond}, quietLogger())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.userReceipts(t, "bob")) == 1 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(inbox, "carol"), 0o755))
	// give the watcher a moment to register the new directory
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(inbox, "carol", "new.txt"), "dropped later")
	writeFile(t, filepath.Join(inbox, "carol", "skip.docx"), "ignored")

	require.Eventually(t, func() bool { return len(f.userReceipts(t, "carol")) == 1 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
