package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
	"github.com/noah-isme/gradebook-sync-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

type gradebookViewer interface {
	View(ctx context.Context, assignmentID, period string) (*dto.GradebookView, error)
}

// ExportFile is a rendered gradebook document.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders gradebook views as downloadable documents.
type ExportService struct {
	gradebook gradebookViewer
	renderers map[string]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(gradebook gradebookViewer, logger *zap.Logger, csv, pdf export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		gradebook: gradebook,
		renderers: map[string]export.Renderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:    logger,
		now:       time.Now,
	}
}

// ExportGradebook renders one assignment and period in the requested format.
func (s *ExportService) ExportGradebook(ctx context.Context, assignmentID, period, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	view, err := s.gradebook.View(ctx, assignmentID, period)
	if err != nil {
		return nil, err
	}

	sheet := export.Sheet{
		Title:   fmt.Sprintf("%s - Period %s", view.AssignmentName, view.Period),
		Headers: []string{"Student", "Grade", "Extra Points", "Total", "Tags"},
		Rows:    make([][]string, 0, len(view.Rows)),
	}
	for _, row := range view.Rows {
		sheet.Rows = append(sheet.Rows, []string{
			row.StudentName,
			row.Grade,
			row.ExtraPoints,
			strconv.Itoa(row.Total),
			strings.Join(row.Tags, ", "),
		})
	}

	body, err := renderer.Render(sheet)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	name := strings.Trim(unsafeFilename.ReplaceAllString(view.AssignmentName, "_"), "_")
	if name == "" {
		name = "gradebook"
	}
	filename := fmt.Sprintf("%s_period-%s_%s.%s", name, unsafeFilename.ReplaceAllString(view.Period, "_"), s.now().UTC().Format("20060102"), renderer.Extension())

	s.logger.Info("gradebook exported",
		zap.String("assignment_id", assignmentID),
		zap.String("period", period),
		zap.String("format", format),
		zap.Int("rows", len(sheet.Rows)))
	return &ExportFile{Filename: filename, ContentType: renderer.ContentType(), Body: body}, nil
}
