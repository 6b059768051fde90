package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/domain"
	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/storage"
)

// Processor drives batch metadata generation: one job at a time, one file
// at a time, with a pause between files so the external APIs are not
// hammered. Every file updates the job's progress counters as it finishes,
// so the dashboard can poll the job record.
type Processor struct {
	store     *storage.Store
	drive     Drive
	generator MetadataGenerator
	extractor *Extractor
	logger    *zap.Logger
	delay     time.Duration

	mu         sync.Mutex
	runningJob int64
	cancelRun  context.CancelFunc
}

func NewProcessor(store *storage.Store, drive Drive, generator MetadataGenerator, extractor *Extractor, delay time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		store:     store,
		drive:     drive,
		generator: generator,
		extractor: extractor,
		delay:     delay,
		logger:    logger,
	}
}

// Running reports the job currently being processed, if any.
func (p *Processor) Running() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningJob, p.runningJob != 0
}

// StartJob launches background processing for a pending job. Only one job
// may run at a time; a second start is rejected rather than queued.
func (p *Processor) StartJob(jobID int64) error {
	if p.drive == nil {
		return fmt.Errorf("google drive is not connected")
	}
	if p.generator == nil {
		return fmt.Errorf("no AI provider is configured")
	}

	job, err := p.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("job %d is %s, only pending jobs can be started", jobID, job.Status)
	}

	p.mu.Lock()
	if p.runningJob != 0 {
		running := p.runningJob
		p.mu.Unlock()
		return fmt.Errorf("job %d is already running", running)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.runningJob = jobID
	p.cancelRun = cancel
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.runningJob = 0
			p.cancelRun = nil
			p.mu.Unlock()
			cancel()
		}()

		if err := p.ProcessJob(ctx, jobID); err != nil {
			p.logger.Error("job processing failed", zap.Int64("jobId", jobID), zap.Error(err))
		}
	}()

	return nil
}

// Cancel stops the given job between files. Files already processed keep
// their results; the rest stay pending.
func (p *Processor) Cancel(jobID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runningJob != jobID || p.cancelRun == nil {
		return fmt.Errorf("job %d is not running", jobID)
	}
	p.cancelRun()
	return nil
}

// ProcessJob runs the batch loop to completion. It is exported so callers
// that want synchronous processing (and tests) can bypass StartJob.
func (p *Processor) ProcessJob(ctx context.Context, jobID int64) error {
	job, err := p.store.GetJob(jobID)
	if err != nil {
		return err
	}

	template, err := p.store.GetTemplate(job.TemplateID)
	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Error = err.Error()
		job.FinishedAt = time.Now().Unix()
		_, _ = p.store.UpdateJob(job)
		return err
	}

	files := p.store.ListFilesByJob(jobID)

	job.Status = domain.JobStatusRunning
	job.TotalFiles = len(files)
	job.StartedAt = time.Now().Unix()
	if job, err = p.store.UpdateJob(job); err != nil {
		return err
	}

	p.logger.Info("job started",
		zap.Int64("jobId", jobID),
		zap.Int("files", len(files)),
		zap.String("template", template.Name))

	cancelled := false
	for i, file := range files {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if file.Status != domain.FileStatusPending {
			continue
		}

		if err := p.processFile(ctx, job, template, file); err != nil {
			// A cancellation surfacing mid-file through Download or Generate
			// is not a file failure: put the file back to pending so a rerun
			// picks it up.
			if ctx.Err() != nil {
				p.resetInterruptedFile(file.ID)
				cancelled = true
				break
			}
			job.FailedFiles++
			p.logger.Warn("file processing failed",
				zap.Int64("jobId", jobID),
				zap.Int64("fileId", file.ID),
				zap.String("name", file.Name),
				zap.Error(err))
		} else {
			job.ProcessedFiles++
		}

		if job, err = p.store.UpdateJob(job); err != nil {
			return err
		}

		if p.delay > 0 && i < len(files)-1 {
			select {
			case <-ctx.Done():
				cancelled = true
			case <-time.After(p.delay):
			}
			if cancelled {
				break
			}
		}
	}

	job.FinishedAt = time.Now().Unix()
	switch {
	case cancelled:
		job.Status = domain.JobStatusCancelled
	case job.ProcessedFiles == 0 && job.FailedFiles > 0:
		job.Status = domain.JobStatusFailed
		job.Error = "all files failed"
	case job.FailedFiles > 0:
		job.Status = domain.JobStatusCompletedWithError
	default:
		job.Status = domain.JobStatusCompleted
	}

	if _, err = p.store.UpdateJob(job); err != nil {
		return err
	}

	p.logger.Info("job finished",
		zap.Int64("jobId", jobID),
		zap.String("status", job.Status),
		zap.Int("processed", job.ProcessedFiles),
		zap.Int("failed", job.FailedFiles))

	return nil
}

// resetInterruptedFile undoes the failed marking of a file whose processing
// was cut short by cancellation.
func (p *Processor) resetInterruptedFile(fileID int64) {
	file, err := p.store.GetFile(fileID)
	if err != nil {
		return
	}
	file.Status = domain.FileStatusPending
	file.Error = ""
	if _, err := p.store.UpdateFile(file); err != nil {
		p.logger.Warn("failed to reset interrupted file", zap.Int64("fileId", fileID), zap.Error(err))
	}
}

// processFile walks one file through download → extract → generate →
// store, and optionally exports the result back to Drive. Any error marks
// the file failed with the error text and the batch moves on.
func (p *Processor) processFile(ctx context.Context, job domain.ProcessingJob, template domain.Template, file domain.FileRecord) error {
	file.Status = domain.FileStatusProcessing
	file.Error = ""
	file, err := p.store.UpdateFile(file)
	if err != nil {
		return err
	}

	metadata, err := p.generateMetadata(ctx, template, &file)
	if err != nil {
		file.Status = domain.FileStatusFailed
		file.Error = err.Error()
		_, _ = p.store.UpdateFile(file)
		return err
	}

	file.Metadata = metadata
	file.Status = domain.FileStatusCompleted

	if job.AutoExport {
		if err := p.drive.WriteProperties(ctx, file.DriveID, metadata); err != nil {
			file.Status = domain.FileStatusFailed
			file.Error = fmt.Sprintf("metadata generated but export failed: %v", err)
			_, _ = p.store.UpdateFile(file)
			return err
		}
		file.ExportedAt = time.Now().Unix()
	}

	_, err = p.store.UpdateFile(file)
	return err
}

func (p *Processor) generateMetadata(ctx context.Context, template domain.Template, file *domain.FileRecord) (map[string]string, error) {
	data, mimeType, err := p.drive.Download(ctx, file.DriveID)
	if err != nil {
		return nil, err
	}
	if mimeType != "" && mimeType != file.MimeType {
		file.MimeType = mimeType
	}

	content, err := p.extractor.Extract(file.Name, file.MimeType, data)
	if err != nil {
		return nil, err
	}

	return p.generator.Generate(ctx, MetadataRequest{
		FileName: file.Name,
		Content:  content,
		Fields:   template.Fields,
	})
}

// ExportFile writes a file's stored metadata back to Drive on demand.
func (p *Processor) ExportFile(ctx context.Context, fileID int64) (domain.FileRecord, error) {
	if p.drive == nil {
		return domain.FileRecord{}, fmt.Errorf("google drive is not connected")
	}

	file, err := p.store.GetFile(fileID)
	if err != nil {
		return domain.FileRecord{}, err
	}
	if len(file.Metadata) == 0 {
		return domain.FileRecord{}, fmt.Errorf("file %d has no metadata to export", fileID)
	}

	if err := p.drive.WriteProperties(ctx, file.DriveID, file.Metadata); err != nil {
		return domain.FileRecord{}, err
	}

	file.ExportedAt = time.Now().Unix()
	return p.store.UpdateFile(file)
}

// ExportJob writes back every completed file of a job and returns how many
// files were exported.
func (p *Processor) ExportJob(ctx context.Context, jobID int64) (int, error) {
	if p.drive == nil {
		return 0, fmt.Errorf("google drive is not connected")
	}

	if _, err := p.store.GetJob(jobID); err != nil {
		return 0, err
	}

	exported := 0
	for _, file := range p.store.ListFilesByJob(jobID) {
		if file.Status != domain.FileStatusCompleted || len(file.Metadata) == 0 {
			continue
		}
		if err := p.drive.WriteProperties(ctx, file.DriveID, file.Metadata); err != nil {
			return exported, fmt.Errorf("export file %d: %w", file.ID, err)
		}
		file.ExportedAt = time.Now().Unix()
		if _, err := p.store.UpdateFile(file); err != nil {
			return exported, err
		}
		exported++
	}

	return exported, nil
}
