package storage

import (
	"strings"
	"testing"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/domain"
)

func TestSeedData(t *testing.T) {
	store := NewStore()

	users := store.ListUsers()
	if len(users) != 1 {
		t.Fatalf("expected 1 seeded user, got %d", len(users))
	}
	if users[0].ID != 1 {
		t.Fatalf("expected seeded user id 1, got %d", users[0].ID)
	}

	templates := store.ListTemplates()
	if len(templates) != 1 {
		t.Fatalf("expected 1 seeded template, got %d", len(templates))
	}
	if len(templates[0].Fields) == 0 {
		t.Fatalf("seeded template has no fields")
	}
}

func TestTemplateIDsAutoIncrement(t *testing.T) {
	store := NewStore()

	first, err := store.CreateTemplate(domain.Template{Name: "A"})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	second, err := store.CreateTemplate(domain.Template{Name: "B"})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	if first.ID != 2 || second.ID != 3 {
		t.Fatalf("expected ids 2 and 3 after the seeded template, got %d and %d", first.ID, second.ID)
	}
}

func TestFileCRUD(t *testing.T) {
	store := NewStore()

	file, err := store.CreateFile(domain.FileRecord{DriveID: "d1", Name: "photo.jpg", MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if file.ID != 1 {
		t.Fatalf("expected file id 1, got %d", file.ID)
	}
	if file.Status != domain.FileStatusPending {
		t.Fatalf("expected pending status, got %s", file.Status)
	}
	if file.CreatedAt == 0 {
		t.Fatalf("expected createdAt to be set")
	}

	file.Metadata = map[string]string{"title": "Sunset"}
	file.Status = domain.FileStatusCompleted
	updated, err := store.UpdateFile(file)
	if err != nil {
		t.Fatalf("update file: %v", err)
	}
	if updated.Metadata["title"] != "Sunset" {
		t.Fatalf("metadata not stored: %v", updated.Metadata)
	}
	if updated.CreatedAt != file.CreatedAt {
		t.Fatalf("createdAt changed on update")
	}

	if err := store.DeleteFile(file.ID); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := store.GetFile(file.ID); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestUpdateFileKeepsStatusWhenEmpty(t *testing.T) {
	store := NewStore()

	file, err := store.CreateFile(domain.FileRecord{DriveID: "d1", Name: "a.txt"})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	file.Status = ""
	file.Name = "b.txt"
	updated, err := store.UpdateFile(file)
	if err != nil {
		t.Fatalf("update file: %v", err)
	}
	if updated.Status != domain.FileStatusPending {
		t.Fatalf("expected status to persist, got %q", updated.Status)
	}
}

func TestListFilesByJob(t *testing.T) {
	store := NewStore()

	for i := 0; i < 3; i++ {
		if _, err := store.CreateFile(domain.FileRecord{DriveID: "x", Name: "f", JobID: 7}); err != nil {
			t.Fatalf("create file: %v", err)
		}
	}
	if _, err := store.CreateFile(domain.FileRecord{DriveID: "y", Name: "g", JobID: 8}); err != nil {
		t.Fatalf("create file: %v", err)
	}

	files := store.ListFilesByJob(7)
	if len(files) != 3 {
		t.Fatalf("expected 3 files for job 7, got %d", len(files))
	}
	for i := 1; i < len(files); i++ {
		if files[i].ID <= files[i-1].ID {
			t.Fatalf("files not sorted by id: %v", files)
		}
	}
}

func TestJobBookkeeping(t *testing.T) {
	store := NewStore()

	job, err := store.CreateJob(domain.ProcessingJob{TemplateID: 1, TotalFiles: 2})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != domain.JobStatusPending {
		t.Fatalf("expected pending job, got %s", job.Status)
	}

	job.Status = domain.JobStatusRunning
	job.ProcessedFiles = 1
	if job, err = store.UpdateJob(job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	loaded, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if loaded.ProcessedFiles != 1 || loaded.Status != domain.JobStatusRunning {
		t.Fatalf("job not updated: %+v", loaded)
	}

	if _, err := store.GetJob(99); err == nil {
		t.Fatalf("expected error for missing job")
	}
}
