package domain

// User is the account that connected a Google Drive. The dashboard is
// single-tenant today but records are kept per user so that multi-account
// support does not require a schema change.
type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	DriveConnected bool   `json:"driveConnected"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// TemplateField describes one metadata field the AI must fill in.
type TemplateField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // text, number, date, select
	Description string   `json:"description,omitempty"`
	Options     []string `json:"options,omitempty"` // allowed values for select fields
	Required    bool     `json:"required,omitempty"`
}

// Template groups the fields generated for a batch of files.
type Template struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Fields      []TemplateField `json:"fields"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt"`
}

// FileRecord tracks one Drive file through the processing pipeline.
type FileRecord struct {
	ID            int64             `json:"id"`
	DriveID       string            `json:"driveId"`
	Name          string            `json:"name"`
	MimeType      string            `json:"mimeType"`
	Size          int64             `json:"size"`
	DriveFolderID string            `json:"driveFolderId,omitempty"`
	TemplateID    int64             `json:"templateId,omitempty"`
	JobID         int64             `json:"jobId,omitempty"`
	Status        string            `json:"status"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ExportedAt    int64             `json:"exportedAt,omitempty"`
	CreatedAt     int64             `json:"createdAt"`
	UpdatedAt     int64             `json:"updatedAt"`
}

// ProcessingJob is the bookkeeping record for one batch run.
type ProcessingJob struct {
	ID             int64   `json:"id"`
	TemplateID     int64   `json:"templateId"`
	DriveFolderID  string  `json:"driveFolderId,omitempty"`
	FileIDs        []int64 `json:"fileIds"`
	Status         string  `json:"status"`
	TotalFiles     int     `json:"totalFiles"`
	ProcessedFiles int     `json:"processedFiles"`
	FailedFiles    int     `json:"failedFiles"`
	AutoExport     bool    `json:"autoExport"`
	Error          string  `json:"error,omitempty"`
	ReportPath     string  `json:"reportPath,omitempty"`
	StartedAt      int64   `json:"startedAt,omitempty"`
	FinishedAt     int64   `json:"finishedAt,omitempty"`
	CreatedAt      int64   `json:"createdAt"`
	UpdatedAt      int64   `json:"updatedAt"`
}

const (
	FileStatusPending    = "pending"
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

const (
	JobStatusPending            = "pending"
	JobStatusRunning            = "running"
	JobStatusCompleted          = "completed"
	JobStatusCompletedWithError = "completed_with_errors"
	JobStatusFailed             = "failed"
	JobStatusCancelled          = "cancelled"
)
