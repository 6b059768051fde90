package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/domain"
)

type ReportService struct{}

func NewReportService() *ReportService {
	return &ReportService{}
}

// GenerateReport renders a job summary with the generated metadata of every
// file into a PDF at outPath.
func (s *ReportService) GenerateReport(job domain.ProcessingJob, template domain.Template, files []domain.FileRecord, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Processing job %d", job.ID), false)
	pdf.SetAuthor("MetadataEnhancer", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, fmt.Sprintf("Metadata report - job %d", job.ID))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Template: %s", template.Name))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", job.Status))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Files: %d total, %d processed, %d failed", job.TotalFiles, job.ProcessedFiles, job.FailedFiles))
	pdf.Ln(6)
	if job.FinishedAt > 0 {
		finished := time.Unix(job.FinishedAt, 0).Local()
		pdf.Cell(0, 6, fmt.Sprintf("Finished: %s", finished.Format("02 Jan 2006 15:04")))
		pdf.Ln(6)
	}
	pdf.Ln(6)

	for _, file := range files {
		s.writeFileSection(pdf, file)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func (s *ReportService) writeFileSection(pdf *gofpdf.Fpdf, file domain.FileRecord) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.MultiCell(0, 7, file.Name, "", "L", false)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 5, fmt.Sprintf("Status: %s", file.Status))
	pdf.Ln(6)

	if file.Error != "" {
		pdf.MultiCell(0, 5, fmt.Sprintf("Error: %s", file.Error), "", "L", false)
	}

	if len(file.Metadata) > 0 {
		keys := make([]string, 0, len(file.Metadata))
		for k := range file.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := strings.TrimSpace(file.Metadata[key])
			if value == "" {
				continue
			}
			pdf.MultiCell(0, 5, fmt.Sprintf("%s: %s", key, value), "", "L", false)
		}
	}

	pdf.Ln(6)
}
