package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
	"github.com/noah-isme/thesis-progress-api/pkg/export"
)

const gradeSheetTitle = "Grade Sheet"

type progressBoard interface {
	Board(ctx context.Context, actor models.Actor, cohort string) ([]models.StudentProgress, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the grade sheet built from the progress board.
type ExportService struct {
	board     progressBoard
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs the service with CSV, PDF and XLSX renderers.
func NewExportService(board progressBoard, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		board: board,
		renderers: map[export.Format]export.Renderer{
			export.FormatCSV:  export.NewCSVExporter(),
			export.FormatPDF:  export.NewPDFExporter(),
			export.FormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// GradeSheet renders one row per student with slot statuses and the grade.
func (s *ExportService) GradeSheet(ctx context.Context, actor models.Actor, rawFormat, cohort string) (*ExportFile, error) {
	if err := requireRole(actor, models.RoleCommittee, models.RoleAdmin); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	board, err := s.board.Board(ctx, actor, cohort)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(gradeSheetDataset(board))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade sheet")
	}

	s.logger.Info("grade sheet exported",
		zap.String("format", string(format)),
		zap.String("cohort", cohort),
		zap.Int("rows", len(board)),
		zap.Int64("actor_id", actor.ID),
	)
	return &ExportFile{
		Filename:    s.filename(format, cohort),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) filename(format export.Format, cohort string) string {
	parts := []string{"grade-sheet"}
	if cohort != "" {
		parts = append(parts, strings.ReplaceAll(strings.ToLower(cohort), " ", "-"))
	}
	parts = append(parts, s.now().UTC().Format("20060102"))
	return fmt.Sprintf("%s.%s", strings.Join(parts, "-"), format)
}

func gradeSheetDataset(board []models.StudentProgress) export.Dataset {
	headers := []string{"Student ID", "Cohort"}
	for _, docType := range models.DocumentTypes {
		headers = append(headers, docType.Label())
	}
	headers = append(headers, "Average", "Letter", "Reason")

	rows := make([]map[string]string, 0, len(board))
	for _, entry := range board {
		row := map[string]string{"Student ID": strconv.FormatInt(entry.StudentID, 10)}
		if entry.Cohort != nil {
			row["Cohort"] = *entry.Cohort
		}
		for _, slot := range entry.Slots {
			row[slot.DocumentType.Label()] = string(slot.Status)
		}
		if entry.Grade != nil {
			if entry.Grade.Average != nil {
				row["Average"] = strconv.FormatFloat(*entry.Grade.Average, 'f', 2, 64)
			}
			row["Letter"] = string(entry.Grade.Letter)
			row["Reason"] = string(entry.Grade.Reason)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Title: gradeSheetTitle, Headers: headers, Rows: rows}
}
