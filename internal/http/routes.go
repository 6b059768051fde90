package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/config"
	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/domain"
	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/services"
	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/storage"
)

type API struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	files     *storage.FileManager
	drive     services.Drive
	processor *services.Processor
	report    *services.ReportService
	share     *services.ShareService
}

func NewAPI(cfg config.Config, logger *zap.Logger, store *storage.Store, files *storage.FileManager, drive services.Drive, processor *services.Processor, report *services.ReportService, share *services.ShareService) *API {
	return &API{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		files:     files,
		drive:     drive,
		processor: processor,
		report:    report,
		share:     share,
	}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)
		apiGroup.GET("/account", api.handleGetAccount)

		apiGroup.GET("/drive/status", api.handleDriveStatus)
		apiGroup.GET("/drive/folders", api.handleDriveFolders)
		apiGroup.GET("/drive/folders/:id/files", api.handleDriveFiles)

		apiGroup.GET("/files", api.handleListFiles)
		apiGroup.GET("/files/:id", api.handleGetFile)
		apiGroup.PATCH("/files/:id/metadata", api.handlePatchFileMetadata)
		apiGroup.POST("/files/:id/export", api.handleExportFile)
		apiGroup.DELETE("/files/:id", api.handleDeleteFile)

		apiGroup.GET("/templates", api.handleListTemplates)
		apiGroup.POST("/templates", api.handleCreateTemplate)
		apiGroup.GET("/templates/:id", api.handleGetTemplate)
		apiGroup.PUT("/templates/:id", api.handleUpdateTemplate)
		apiGroup.DELETE("/templates/:id", api.handleDeleteTemplate)

		apiGroup.GET("/jobs", api.handleListJobs)
		apiGroup.POST("/jobs", api.handleCreateJob)
		apiGroup.GET("/jobs/:id", api.handleGetJob)
		apiGroup.POST("/jobs/:id/cancel", api.handleCancelJob)
		apiGroup.POST("/jobs/:id/export", api.handleExportJob)
		apiGroup.POST("/jobs/:id/report", api.handleGenerateReport)
	}

	r.GET("/report/:id", api.handleServeReport)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleGetAccount(c *gin.Context) {
	user, err := a.store.GetUser(1)
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, user)
}

// Drive ------------------------------------------------------------------

func (a *API) handleDriveStatus(c *gin.Context) {
	if a.drive == nil {
		c.JSON(http.StatusOK, services.DriveStatus{Connected: false})
		return
	}

	status, err := a.drive.Status(c.Request.Context())
	if err != nil {
		a.logger.Warn("drive status check failed", zap.Error(err))
		c.JSON(http.StatusOK, services.DriveStatus{Connected: false})
		return
	}

	// Keep the stored account record in sync with what Drive reports.
	if user, err := a.store.GetUser(1); err == nil {
		if user.Email != status.Email || !user.DriveConnected {
			user.Email = status.Email
			user.DisplayName = status.DisplayName
			user.DriveConnected = true
			_, _ = a.store.UpdateUser(user)
		}
	}

	c.JSON(http.StatusOK, status)
}

func (a *API) handleDriveFolders(c *gin.Context) {
	if a.drive == nil {
		respondMessage(c, http.StatusServiceUnavailable, "google drive is not connected")
		return
	}

	folders, err := a.drive.ListFolders(c.Request.Context(), c.Query("parent"))
	if err != nil {
		respondError(c, http.StatusBadGateway, err)
		return
	}

	c.JSON(http.StatusOK, folders)
}

func (a *API) handleDriveFiles(c *gin.Context) {
	if a.drive == nil {
		respondMessage(c, http.StatusServiceUnavailable, "google drive is not connected")
		return
	}

	files, err := a.drive.ListFiles(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadGateway, err)
		return
	}

	c.JSON(http.StatusOK, files)
}

// Files ------------------------------------------------------------------

func (a *API) handleListFiles(c *gin.Context) {
	if jobParam := c.Query("job"); jobParam != "" {
		jobID, err := strconv.ParseInt(jobParam, 10, 64)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "invalid job id")
			return
		}
		c.JSON(http.StatusOK, a.store.ListFilesByJob(jobID))
		return
	}

	c.JSON(http.StatusOK, a.store.ListFiles())
}

func (a *API) handleGetFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	file, err := a.store.GetFile(id)
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	c.JSON(http.StatusOK, file)
}

func (a *API) handlePatchFileMetadata(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var payload struct {
		Metadata map[string]string `json:"metadata" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	file, err := a.store.GetFile(id)
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	if file.Metadata == nil {
		file.Metadata = map[string]string{}
	}
	for key, value := range payload.Metadata {
		value = strings.TrimSpace(value)
		if value == "" {
			delete(file.Metadata, key)
			continue
		}
		file.Metadata[key] = value
	}

	updated, err := a.store.UpdateFile(file)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (a *API) handleExportFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	file, err := a.processor.ExportFile(c.Request.Context(), id)
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		} else if strings.Contains(err.Error(), "no metadata") || strings.Contains(err.Error(), "not connected") {
			status = http.StatusBadRequest
		}
		respondMessage(c, status, err.Error())
		return
	}

	c.JSON(http.StatusOK, file)
}

func (a *API) handleDeleteFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := a.store.DeleteFile(id); err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// Templates --------------------------------------------------------------

func (a *API) handleListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, a.store.ListTemplates())
}

func (a *API) handleCreateTemplate(c *gin.Context) {
	var payload struct {
		Name        string                 `json:"name" binding:"required"`
		Description string                 `json:"description"`
		Fields      []domain.TemplateField `json:"fields" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if msg := validateFields(payload.Fields); msg != "" {
		respondMessage(c, http.StatusBadRequest, msg)
		return
	}

	tpl, err := a.store.CreateTemplate(domain.Template{
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(payload.Description),
		Fields:      payload.Fields,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, tpl)
}

func (a *API) handleGetTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	tpl, err := a.store.GetTemplate(id)
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	c.JSON(http.StatusOK, tpl)
}

func (a *API) handleUpdateTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var payload struct {
		Name        string                 `json:"name" binding:"required"`
		Description string                 `json:"description"`
		Fields      []domain.TemplateField `json:"fields" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if msg := validateFields(payload.Fields); msg != "" {
		respondMessage(c, http.StatusBadRequest, msg)
		return
	}

	tpl, err := a.store.UpdateTemplate(domain.Template{
		ID:          id,
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(payload.Description),
		Fields:      payload.Fields,
	})
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	c.JSON(http.StatusOK, tpl)
}

func (a *API) handleDeleteTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := a.store.DeleteTemplate(id); err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// Jobs -------------------------------------------------------------------

type jobFilePayload struct {
	DriveID  string `json:"driveId" binding:"required"`
	Name     string `json:"name" binding:"required"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

func (a *API) handleCreateJob(c *gin.Context) {
	var payload struct {
		TemplateID    int64            `json:"templateId" binding:"required"`
		DriveFolderID string           `json:"driveFolderId"`
		Files         []jobFilePayload `json:"files"`
		AutoExport    bool             `json:"autoExport"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if _, err := a.store.GetTemplate(payload.TemplateID); err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	if _, busy := a.processor.Running(); busy {
		respondMessage(c, http.StatusConflict, "another job is already running")
		return
	}

	files := payload.Files
	if len(files) == 0 {
		if payload.DriveFolderID == "" {
			respondMessage(c, http.StatusBadRequest, "provide files or a driveFolderId")
			return
		}
		if a.drive == nil {
			respondMessage(c, http.StatusServiceUnavailable, "google drive is not connected")
			return
		}

		listed, err := a.drive.ListFiles(c.Request.Context(), payload.DriveFolderID)
		if err != nil {
			respondError(c, http.StatusBadGateway, err)
			return
		}
		for _, f := range listed {
			// Skip types the pipeline cannot handle instead of failing them later.
			if _, err := services.ClassifyMIME(f.MimeType, f.Name); err != nil {
				continue
			}
			files = append(files, jobFilePayload{DriveID: f.ID, Name: f.Name, MimeType: f.MimeType, Size: f.Size})
		}
	}

	if len(files) == 0 {
		respondMessage(c, http.StatusBadRequest, "no processable files in the selection")
		return
	}

	job, err := a.store.CreateJob(domain.ProcessingJob{
		TemplateID:    payload.TemplateID,
		DriveFolderID: payload.DriveFolderID,
		AutoExport:    payload.AutoExport,
		TotalFiles:    len(files),
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	fileIDs := make([]int64, 0, len(files))
	for _, f := range files {
		record, err := a.store.CreateFile(domain.FileRecord{
			DriveID:       f.DriveID,
			Name:          f.Name,
			MimeType:      f.MimeType,
			Size:          f.Size,
			DriveFolderID: payload.DriveFolderID,
			TemplateID:    payload.TemplateID,
			JobID:         job.ID,
		})
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		fileIDs = append(fileIDs, record.ID)
	}

	job.FileIDs = fileIDs
	if job, err = a.store.UpdateJob(job); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := a.processor.StartJob(job.ID); err != nil {
		job.Status = domain.JobStatusFailed
		job.Error = err.Error()
		_, _ = a.store.UpdateJob(job)
		respondMessage(c, http.StatusConflict, err.Error())
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (a *API) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, a.store.ListJobs())
}

func (a *API) handleGetJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	job, err := a.store.GetJob(id)
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	if c.Query("includeFiles") == "true" {
		c.JSON(http.StatusOK, gin.H{"job": job, "files": a.store.ListFilesByJob(id)})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (a *API) handleCancelJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := a.processor.Cancel(id); err != nil {
		respondMessage(c, http.StatusConflict, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (a *API) handleExportJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	exported, err := a.processor.ExportJob(c.Request.Context(), id)
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		} else if strings.Contains(err.Error(), "not connected") {
			status = http.StatusBadRequest
		}
		respondMessage(c, status, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"exported": exported})
}

// Reports ----------------------------------------------------------------

func (a *API) handleGenerateReport(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	job, err := a.store.GetJob(id)
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	// The processor writes the job record back after every file, so a report
	// path set on a still-running job would be overwritten. Reports are only
	// available once the job has reached a terminal state.
	if job.Status == domain.JobStatusPending || job.Status == domain.JobStatusRunning {
		respondMessage(c, http.StatusConflict, "job "+job.Status+": reports are generated once the job has finished")
		return
	}

	template, err := a.store.GetTemplate(job.TemplateID)
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	if job.ReportPath != "" {
		_ = a.files.RemoveReport(job.ReportPath)
	}

	reportPath := a.files.NewReportPath(job.ID)
	if err := a.report.GenerateReport(job, template, a.store.ListFilesByJob(job.ID), reportPath); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	job.ReportPath = reportPath
	if _, err := a.store.UpdateJob(job); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	url, expiresAt, err := a.share.Generate(job.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expiresAt": expiresAt.UTC()})
}

func (a *API) handleServeReport(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	expiresParam := c.Query("exp")
	signature := c.Query("sig")
	if expiresParam == "" || signature == "" {
		respondMessage(c, http.StatusBadRequest, "missing signature")
		return
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid expiration")
		return
	}

	if expires < time.Now().Unix() {
		respondMessage(c, http.StatusGone, "link expired")
		return
	}

	if !a.share.Validate(c.Request.URL.Path, expires, signature) {
		respondMessage(c, http.StatusForbidden, "invalid signature")
		return
	}

	job, err := a.store.GetJob(id)
	if err != nil {
		respondMessage(c, http.StatusNotFound, err.Error())
		return
	}

	if job.ReportPath == "" {
		respondMessage(c, http.StatusNotFound, "no report generated for this job")
		return
	}

	if _, err := os.Stat(job.ReportPath); err != nil {
		respondMessage(c, http.StatusNotFound, "report not found")
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(job.ReportPath, filepath.Base(job.ReportPath))
}

// Helpers ----------------------------------------------------------------

func validateFields(fields []domain.TemplateField) string {
	if len(fields) == 0 {
		return "template needs at least one field"
	}

	seen := map[string]struct{}{}
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return "field names must not be empty"
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			return "duplicate field name: " + name
		}
		seen[strings.ToLower(name)] = struct{}{}

		switch f.Type {
		case "text", "number", "date", "select":
		default:
			return "unknown field type: " + f.Type
		}
		if f.Type == "select" && len(f.Options) == 0 {
			return "select field " + name + " needs options"
		}
	}
	return ""
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondMessage(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
