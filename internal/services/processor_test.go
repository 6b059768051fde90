package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/domain"
	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/storage"
)

type fakeDrive struct {
	mu        sync.Mutex
	contents  map[string][]byte
	mimeTypes map[string]string
	written   map[string]map[string]string
	failWrite bool
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		contents:  map[string][]byte{},
		mimeTypes: map[string]string{},
		written:   map[string]map[string]string{},
	}
}

func (d *fakeDrive) addFile(id, mime string, data []byte) {
	d.contents[id] = data
	d.mimeTypes[id] = mime
}

func (d *fakeDrive) Status(ctx context.Context) (DriveStatus, error) {
	return DriveStatus{Connected: true, Email: "test@example.com"}, nil
}

func (d *fakeDrive) ListFolders(ctx context.Context, parentID string) ([]DriveFolder, error) {
	return nil, nil
}

func (d *fakeDrive) ListFiles(ctx context.Context, folderID string) ([]DriveFile, error) {
	return nil, nil
}

func (d *fakeDrive) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, ok := d.contents[fileID]
	if !ok {
		return nil, "", fmt.Errorf("file %s not found", fileID)
	}
	return data, d.mimeTypes[fileID], nil
}

func (d *fakeDrive) WriteProperties(ctx context.Context, fileID string, props map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failWrite {
		return errors.New("write quota exceeded")
	}
	copied := make(map[string]string, len(props))
	for k, v := range props {
		copied[k] = v
	}
	d.written[fileID] = copied
	return nil
}

func (d *fakeDrive) writtenProps(fileID string) map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written[fileID]
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]bool
	block   chan struct{}
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, req MetadataRequest) (map[string]string, error) {
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	g.calls++
	fail := g.failFor[req.FileName]
	g.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("model refused %s", req.FileName)
	}
	return map[string]string{"title": "Generated " + req.FileName}, nil
}

func setupProcessor(t *testing.T, drive Drive, gen MetadataGenerator) (*Processor, *storage.Store) {
	t.Helper()

	store := storage.NewStore()
	proc := NewProcessor(store, drive, gen, NewExtractor(zap.NewNop()), 0, zap.NewNop())
	return proc, store
}

func createJobWithFiles(t *testing.T, store *storage.Store, names []string, autoExport bool) domain.ProcessingJob {
	t.Helper()

	job, err := store.CreateJob(domain.ProcessingJob{TemplateID: 1, AutoExport: autoExport, TotalFiles: len(names)})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	for _, name := range names {
		if _, err := store.CreateFile(domain.FileRecord{
			DriveID:  "drive-" + name,
			Name:     name,
			MimeType: "text/plain",
			JobID:    job.ID,
		}); err != nil {
			t.Fatalf("create file: %v", err)
		}
	}
	return job
}

func TestProcessJobAllSucceed(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("drive-a.txt", "text/plain", []byte("alpha document"))
	drive.addFile("drive-b.txt", "text/plain", []byte("beta document"))

	proc, store := setupProcessor(t, drive, &fakeGenerator{})
	job := createJobWithFiles(t, store, []string{"a.txt", "b.txt"}, false)

	if err := proc.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	done, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error %q)", done.Status, done.Error)
	}
	if done.ProcessedFiles != 2 || done.FailedFiles != 0 {
		t.Fatalf("unexpected counters: %+v", done)
	}
	if done.StartedAt == 0 || done.FinishedAt == 0 {
		t.Fatalf("timestamps not recorded: %+v", done)
	}

	for _, file := range store.ListFilesByJob(job.ID) {
		if file.Status != domain.FileStatusCompleted {
			t.Fatalf("file %s is %s", file.Name, file.Status)
		}
		if file.Metadata["title"] != "Generated "+file.Name {
			t.Fatalf("metadata missing for %s: %v", file.Name, file.Metadata)
		}
	}
}

func TestProcessJobPartialFailure(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("drive-good.txt", "text/plain", []byte("fine"))
	drive.addFile("drive-bad.txt", "text/plain", []byte("doomed"))

	gen := &fakeGenerator{failFor: map[string]bool{"bad.txt": true}}
	proc, store := setupProcessor(t, drive, gen)
	job := createJobWithFiles(t, store, []string{"good.txt", "bad.txt"}, false)

	if err := proc.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	done, _ := store.GetJob(job.ID)
	if done.Status != domain.JobStatusCompletedWithError {
		t.Fatalf("expected completed_with_errors, got %s", done.Status)
	}
	if done.ProcessedFiles != 1 || done.FailedFiles != 1 {
		t.Fatalf("unexpected counters: processed=%d failed=%d", done.ProcessedFiles, done.FailedFiles)
	}

	files := store.ListFilesByJob(job.ID)
	var failed *domain.FileRecord
	for i := range files {
		if files[i].Name == "bad.txt" {
			failed = &files[i]
		}
	}
	if failed == nil || failed.Status != domain.FileStatusFailed {
		t.Fatalf("bad.txt should be failed: %+v", failed)
	}
	if failed.Error == "" {
		t.Fatalf("failed file should carry the error message")
	}
}

func TestProcessJobAllFail(t *testing.T) {
	drive := newFakeDrive()
	// No drive contents registered: every download fails.

	proc, store := setupProcessor(t, drive, &fakeGenerator{})
	job := createJobWithFiles(t, store, []string{"a.txt"}, false)

	if err := proc.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	done, _ := store.GetJob(job.ID)
	if done.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if done.Error == "" {
		t.Fatalf("job error should be set when everything fails")
	}
}

func TestProcessJobAutoExport(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("drive-a.txt", "text/plain", []byte("alpha"))

	proc, store := setupProcessor(t, drive, &fakeGenerator{})
	job := createJobWithFiles(t, store, []string{"a.txt"}, true)

	if err := proc.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	props := drive.writtenProps("drive-a.txt")
	if props["title"] != "Generated a.txt" {
		t.Fatalf("properties not written back: %v", props)
	}

	files := store.ListFilesByJob(job.ID)
	if files[0].ExportedAt == 0 {
		t.Fatalf("exportedAt not recorded")
	}
}

func TestProcessJobExportFailureMarksFile(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("drive-a.txt", "text/plain", []byte("alpha"))
	drive.failWrite = true

	proc, store := setupProcessor(t, drive, &fakeGenerator{})
	job := createJobWithFiles(t, store, []string{"a.txt"}, true)

	if err := proc.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	done, _ := store.GetJob(job.ID)
	if done.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed job, got %s", done.Status)
	}

	files := store.ListFilesByJob(job.ID)
	if files[0].Status != domain.FileStatusFailed {
		t.Fatalf("file should be failed, got %s", files[0].Status)
	}
	// The generated metadata is kept so a later manual export can retry.
	if files[0].Metadata["title"] == "" {
		t.Fatalf("metadata should survive an export failure")
	}
}

func TestProcessJobCancelledContext(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("drive-a.txt", "text/plain", []byte("alpha"))

	proc, store := setupProcessor(t, drive, &fakeGenerator{})
	job := createJobWithFiles(t, store, []string{"a.txt"}, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := proc.ProcessJob(ctx, job.ID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	done, _ := store.GetJob(job.ID)
	if done.Status != domain.JobStatusCancelled {
		t.Fatalf("expected cancelled, got %s", done.Status)
	}

	files := store.ListFilesByJob(job.ID)
	if files[0].Status != domain.FileStatusPending {
		t.Fatalf("unprocessed file should stay pending, got %s", files[0].Status)
	}
}

func TestCancelDuringFileInFlight(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("drive-a.txt", "text/plain", []byte("alpha"))

	gen := &fakeGenerator{block: make(chan struct{})}
	proc, store := setupProcessor(t, drive, gen)
	job := createJobWithFiles(t, store, []string{"a.txt"}, false)

	if err := proc.StartJob(job.ID); err != nil {
		t.Fatalf("start job: %v", err)
	}

	// Wait until the file is inside Generate, then cancel mid-file.
	waitFor(t, func() bool {
		files := store.ListFilesByJob(job.ID)
		return len(files) == 1 && files[0].Status == domain.FileStatusProcessing
	})
	if err := proc.Cancel(job.ID); err != nil {
		t.Fatalf("cancel job: %v", err)
	}

	waitFor(t, func() bool {
		done, err := store.GetJob(job.ID)
		return err == nil && done.Status == domain.JobStatusCancelled
	})

	done, _ := store.GetJob(job.ID)
	if done.ProcessedFiles != 0 || done.FailedFiles != 0 {
		t.Fatalf("counters should be untouched: processed=%d failed=%d", done.ProcessedFiles, done.FailedFiles)
	}
	if done.Error != "" {
		t.Fatalf("cancelled job should carry no error, got %q", done.Error)
	}

	files := store.ListFilesByJob(job.ID)
	if files[0].Status != domain.FileStatusPending {
		t.Fatalf("interrupted file should return to pending, got %s", files[0].Status)
	}
	if files[0].Error != "" {
		t.Fatalf("interrupted file should carry no error, got %q", files[0].Error)
	}
}

func TestStartJobRejectsSecondRun(t *testing.T) {
	drive := newFakeDrive()
	drive.addFile("drive-a.txt", "text/plain", []byte("alpha"))
	drive.addFile("drive-b.txt", "text/plain", []byte("beta"))

	gen := &fakeGenerator{block: make(chan struct{})}
	proc, store := setupProcessor(t, drive, gen)

	first := createJobWithFiles(t, store, []string{"a.txt"}, false)
	second := createJobWithFiles(t, store, []string{"b.txt"}, false)

	if err := proc.StartJob(first.ID); err != nil {
		t.Fatalf("start first job: %v", err)
	}

	// The first job is parked inside Generate; a second start must be refused.
	waitFor(t, func() bool {
		_, busy := proc.Running()
		return busy
	})
	if err := proc.StartJob(second.ID); err == nil {
		t.Fatalf("expected second start to be rejected")
	}

	close(gen.block)

	waitFor(t, func() bool {
		job, err := store.GetJob(first.ID)
		return err == nil && job.Status == domain.JobStatusCompleted
	})

	if err := proc.StartJob(second.ID); err != nil {
		t.Fatalf("start second job after first finished: %v", err)
	}
	waitFor(t, func() bool {
		job, err := store.GetJob(second.ID)
		return err == nil && job.Status == domain.JobStatusCompleted
	})
}

func TestStartJobValidation(t *testing.T) {
	proc, store := setupProcessor(t, newFakeDrive(), &fakeGenerator{})

	if err := proc.StartJob(42); err == nil {
		t.Fatalf("expected error for unknown job")
	}

	job, _ := store.CreateJob(domain.ProcessingJob{TemplateID: 1, Status: domain.JobStatusCompleted})
	if err := proc.StartJob(job.ID); err == nil {
		t.Fatalf("expected error for non-pending job")
	}
}

func TestExportJob(t *testing.T) {
	drive := newFakeDrive()
	proc, store := setupProcessor(t, drive, &fakeGenerator{})

	job := createJobWithFiles(t, store, []string{"a.txt", "b.txt"}, false)
	files := store.ListFilesByJob(job.ID)

	files[0].Status = domain.FileStatusCompleted
	files[0].Metadata = map[string]string{"title": "First"}
	if _, err := store.UpdateFile(files[0]); err != nil {
		t.Fatalf("update file: %v", err)
	}
	// files[1] stays pending and must be skipped.

	exported, err := proc.ExportJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("export job: %v", err)
	}
	if exported != 1 {
		t.Fatalf("expected 1 exported file, got %d", exported)
	}
	if drive.writtenProps(files[0].DriveID)["title"] != "First" {
		t.Fatalf("properties not written for completed file")
	}
	if drive.writtenProps(files[1].DriveID) != nil {
		t.Fatalf("pending file should not be exported")
	}
}

func TestExportFileWithoutMetadata(t *testing.T) {
	proc, store := setupProcessor(t, newFakeDrive(), &fakeGenerator{})

	file, _ := store.CreateFile(domain.FileRecord{DriveID: "d", Name: "a.txt"})
	if _, err := proc.ExportFile(context.Background(), file.ID); err == nil {
		t.Fatalf("expected error exporting file without metadata")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
