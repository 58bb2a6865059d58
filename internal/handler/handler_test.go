package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-progress-api/internal/dto"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/internal/service"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

type fakeSubmissionSrv struct {
	err        error
	lastActor  models.Actor
	lastDoc    models.DocumentType
	lastFileID string
	lastNote   *string
}

func (f *fakeSubmissionSrv) Submit(_ context.Context, actor models.Actor, studentID int64, docType models.DocumentType, fileID string) (*models.Submission, error) {
	f.lastActor, f.lastDoc, f.lastFileID = actor, docType, fileID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Submission{ID: "sub-1", StudentID: studentID, DocumentType: docType, FileID: fileID, ApprovalStatus: models.StatusPendingApproval}, nil
}

func (f *fakeSubmissionSrv) Approve(_ context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error) {
	f.lastActor, f.lastDoc, f.lastNote = actor, docType, note
	if f.err != nil {
		return nil, f.err
	}
	return &models.Submission{ID: "sub-1", StudentID: studentID, DocumentType: docType, ApprovalStatus: models.StatusApproved}, nil
}

func (f *fakeSubmissionSrv) Slots(_ context.Context, _ models.Actor, studentID int64) ([]models.Slot, error) {
	slots := make([]models.Slot, 0, len(models.DocumentTypes))
	for _, doc := range models.DocumentTypes {
		slots = append(slots, models.Slot{StudentID: studentID, DocumentType: doc, Status: models.StatusNoSubmission})
	}
	return slots, f.err
}

func (f *fakeSubmissionSrv) Slot(_ context.Context, _ models.Actor, studentID int64, docType models.DocumentType) (*models.Slot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Slot{StudentID: studentID, DocumentType: docType, Status: models.StatusNoSubmission}, nil
}

func (f *fakeSubmissionSrv) History(context.Context, models.Actor, int64, models.DocumentType) ([]models.Submission, error) {
	return []models.Submission{}, f.err
}

type fakeRevisionSrv struct {
	err      error
	lastNote *string
	reopened int
}

func (f *fakeRevisionSrv) RequestRevision(_ context.Context, _ models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error) {
	f.lastNote = note
	if f.err != nil {
		return nil, f.err
	}
	return &models.Submission{StudentID: studentID, DocumentType: docType, ApprovalStatus: models.StatusRevisionRequested, Note: note}, nil
}

func (f *fakeRevisionSrv) ReopenApproved(ctx context.Context, actor models.Actor, studentID int64, docType models.DocumentType, note *string) (*models.Submission, error) {
	f.reopened++
	return f.RequestRevision(ctx, actor, studentID, docType, note)
}

type fakeGradingSrv struct {
	lastScores []int
}

func (f *fakeGradingSrv) Grade(_ context.Context, actor models.Actor, studentID int64, scores []int) (*models.Grade, error) {
	f.lastScores = scores
	rubric, err := service.ValidateRubric(scores)
	if err != nil {
		return nil, err
	}
	letter, avg := service.ComputeLetter(rubric)
	return &models.Grade{StudentID: studentID, Rubric: &rubric, Average: &avg, Letter: letter, Reason: models.GradeReasonRubric, GradedBy: actor.ID}, nil
}

func (f *fakeGradingSrv) Get(context.Context, models.Actor, int64) (*models.Grade, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
}

func (f *fakeGradingSrv) History(context.Context, models.Actor, int64) ([]models.Grade, error) {
	return []models.Grade{}, nil
}

type fakeExporter struct {
	lastFormat string
	lastCohort string
}

func (f *fakeExporter) GradeSheet(_ context.Context, _ models.Actor, format, cohort string) (*service.ExportFile, error) {
	f.lastFormat, f.lastCohort = format, cohort
	return &service.ExportFile{Filename: "grade-sheet-20261019.csv", ContentType: "text/csv", Data: []byte("Student ID\n7\n")}, nil
}

type fakeSweepSrv struct {
	result *models.SweepResult
	err    error
	runs   int
}

func (f *fakeSweepSrv) Run(context.Context, models.Actor) (*models.SweepResult, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	f.result = &models.SweepResult{AffectedCount: 2, OverduePairs: 3}
	return f.result, nil
}

func (f *fakeSweepSrv) LastResult() (*models.SweepResult, bool) {
	return f.result, f.result != nil
}

type fakeNotificationSrv struct {
	lastQuery dto.NotificationQuery
	read      map[string]bool
}

func (f *fakeNotificationSrv) List(_ context.Context, actor models.Actor, query dto.NotificationQuery) (*dto.NotificationPage, error) {
	f.lastQuery = query
	return &dto.NotificationPage{
		Items:      []models.Notification{{ID: "n-2", RecipientID: actor.ID}, {ID: "n-1", RecipientID: actor.ID}},
		NextCursor: "next",
	}, nil
}

func (f *fakeNotificationSrv) MarkRead(_ context.Context, _ models.Actor, id string) error {
	if id == "missing" {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	if f.read == nil {
		f.read = map[string]bool{}
	}
	f.read[id] = true
	return nil
}

func (f *fakeNotificationSrv) MarkAllRead(context.Context, models.Actor) (int64, error) {
	return 3, nil
}

func (f *fakeNotificationSrv) UnreadCount(context.Context, models.Actor) (int, error) {
	return 5, nil
}

type testServer struct {
	router        *gin.Engine
	tokens        *service.TokenService
	submissions   *fakeSubmissionSrv
	revisions     *fakeRevisionSrv
	grading       *fakeGradingSrv
	exporter      *fakeExporter
	sweeps        *fakeSweepSrv
	notifications *fakeNotificationSrv
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		tokens:        service.NewTokenService(service.TokenConfig{Secret: "test-secret", Issuer: "thesis-progress-api", Expiry: time.Hour}),
		submissions:   &fakeSubmissionSrv{},
		revisions:     &fakeRevisionSrv{},
		grading:       &fakeGradingSrv{},
		exporter:      &fakeExporter{},
		sweeps:        &fakeSweepSrv{},
		notifications: &fakeNotificationSrv{},
	}
	ts.router = gin.New()
	RegisterRoutes(ts.router.Group("/api/v1"), ts.tokens, Handlers{
		Submissions:   NewSubmissionHandler(ts.submissions, ts.revisions),
		Grades:        NewGradeHandler(ts.grading, ts.exporter),
		Sweeps:        NewSweepHandler(ts.sweeps),
		Notifications: NewNotificationHandler(ts.notifications),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, actor *models.Actor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		token, _, err := ts.tokens.Issue(*actor)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

var (
	student7   = models.Actor{ID: 7, Role: models.RoleStudent}
	student8   = models.Actor{ID: 8, Role: models.RoleStudent}
	supervisor = models.Actor{ID: 42, Role: models.RoleSupervisor}
	committee  = models.Actor{ID: 43, Role: models.RoleCommittee}
	admin      = models.Actor{ID: 1, Role: models.RoleAdmin}
)
