package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/domain"
)

// Store holds all application records in memory, keyed by auto-incrementing
// IDs. It stands in for a database; every collection has its own counter so
// IDs are stable for the lifetime of the process.
type Store struct {
	mu sync.RWMutex

	users     map[int64]domain.User
	templates map[int64]domain.Template
	files     map[int64]domain.FileRecord
	jobs      map[int64]domain.ProcessingJob

	nextUserID     int64
	nextTemplateID int64
	nextFileID     int64
	nextJobID      int64
}

func NewStore() *Store {
	s := &Store{
		users:          map[int64]domain.User{},
		templates:      map[int64]domain.Template{},
		files:          map[int64]domain.FileRecord{},
		jobs:           map[int64]domain.ProcessingJob{},
		nextUserID:     1,
		nextTemplateID: 1,
		nextFileID:     1,
		nextJobID:      1,
	}
	s.seed()
	return s
}

// seed installs the default user and a starter template so the dashboard is
// usable before anything has been configured.
func (s *Store) seed() {
	now := time.Now().Unix()

	s.users[s.nextUserID] = domain.User{
		ID:          s.nextUserID,
		Email:       "",
		DisplayName: "Default User",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextUserID++

	s.templates[s.nextTemplateID] = domain.Template{
		ID:          s.nextTemplateID,
		Name:        "General",
		Description: "Generic descriptive metadata for any file type",
		Fields: []domain.TemplateField{
			{Name: "title", Type: "text", Description: "A short human-readable title", Required: true},
			{Name: "description", Type: "text", Description: "One or two sentences describing the content"},
			{Name: "keywords", Type: "text", Description: "Comma-separated keywords"},
			{Name: "category", Type: "select", Description: "Broad content category",
				Options: []string{"document", "photo", "artwork", "recording", "presentation", "other"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextTemplateID++
}

// Users ------------------------------------------------------------------

func (s *Store) GetUser(id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d not found", id)
	}
	return user, nil
}

func (s *Store) ListUsers() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (s *Store) UpdateUser(user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d not found", user.ID)
	}

	if user.CreatedAt == 0 {
		user.CreatedAt = existing.CreatedAt
	}
	user.UpdatedAt = time.Now().Unix()
	s.users[user.ID] = user
	return user, nil
}

// Templates --------------------------------------------------------------

func (s *Store) CreateTemplate(tpl domain.Template) (domain.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl.ID = s.nextTemplateID
	s.nextTemplateID++

	now := time.Now().Unix()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	s.templates[tpl.ID] = tpl
	return tpl, nil
}

func (s *Store) GetTemplate(id int64) (domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[id]
	if !ok {
		return domain.Template{}, fmt.Errorf("template %d not found", id)
	}
	return tpl, nil
}

func (s *Store) ListTemplates() []domain.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]domain.Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		templates = append(templates, tpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates
}

func (s *Store) UpdateTemplate(tpl domain.Template) (domain.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.templates[tpl.ID]
	if !ok {
		return domain.Template{}, fmt.Errorf("template %d not found", tpl.ID)
	}

	if tpl.CreatedAt == 0 {
		tpl.CreatedAt = existing.CreatedAt
	}
	tpl.UpdatedAt = time.Now().Unix()
	s.templates[tpl.ID] = tpl
	return tpl, nil
}

func (s *Store) DeleteTemplate(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template %d not found", id)
	}
	delete(s.templates, id)
	return nil
}

// Files ------------------------------------------------------------------

func (s *Store) CreateFile(file domain.FileRecord) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file.ID = s.nextFileID
	s.nextFileID++

	if file.Status == "" {
		file.Status = domain.FileStatusPending
	}
	now := time.Now().Unix()
	file.CreatedAt = now
	file.UpdatedAt = now

	s.files[file.ID] = file
	return file, nil
}

func (s *Store) GetFile(id int64) (domain.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files[id]
	if !ok {
		return domain.FileRecord{}, fmt.Errorf("file %d not found", id)
	}
	return file, nil
}

func (s *Store) ListFiles() []domain.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]domain.FileRecord, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files
}

func (s *Store) ListFilesByJob(jobID int64) []domain.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]domain.FileRecord, 0)
	for _, f := range s.files {
		if f.JobID == jobID {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files
}

func (s *Store) UpdateFile(file domain.FileRecord) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.files[file.ID]
	if !ok {
		return domain.FileRecord{}, fmt.Errorf("file %d not found", file.ID)
	}

	if file.CreatedAt == 0 {
		file.CreatedAt = existing.CreatedAt
	}
	if file.Status == "" {
		file.Status = existing.Status
	}
	file.UpdatedAt = time.Now().Unix()
	s.files[file.ID] = file
	return file, nil
}

func (s *Store) DeleteFile(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file %d not found", id)
	}
	delete(s.files, id)
	return nil
}

// Jobs -------------------------------------------------------------------

func (s *Store) CreateJob(job domain.ProcessingJob) (domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.ID = s.nextJobID
	s.nextJobID++

	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	now := time.Now().Unix()
	job.CreatedAt = now
	job.UpdatedAt = now

	s.jobs[job.ID] = job
	return job, nil
}

func (s *Store) GetJob(id int64) (domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ProcessingJob{}, fmt.Errorf("job %d not found", id)
	}
	return job, nil
}

func (s *Store) ListJobs() []domain.ProcessingJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.ProcessingJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

func (s *Store) UpdateJob(job domain.ProcessingJob) (domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[job.ID]
	if !ok {
		return domain.ProcessingJob{}, fmt.Errorf("job %d not found", job.ID)
	}

	if job.CreatedAt == 0 {
		job.CreatedAt = existing.CreatedAt
	}
	if job.Status == "" {
		job.Status = existing.Status
	}
	job.UpdatedAt = time.Now().Unix()
	s.jobs[job.ID] = job
	return job, nil
}
