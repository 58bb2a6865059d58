package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/internal/repository"
)

var (
	student7   = models.Actor{ID: 7, Role: models.RoleStudent}
	supervisor = models.Actor{ID: 42, Role: models.RoleSupervisor}
	committee  = models.Actor{ID: 43, Role: models.RoleCommittee}
	admin      = models.Actor{ID: 1, Role: models.RoleAdmin}
)

type memStudents struct {
	mu       sync.Mutex
	students map[int64]models.Student
}

func newMemStudents(ids ...int64) *memStudents {
	m := &memStudents{students: make(map[int64]models.Student)}
	for _, id := range ids {
		m.students[id] = models.Student{ID: id}
	}
	return m
}

func (m *memStudents) Exists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.students[id]
	return ok, nil
}

func (m *memStudents) List(ctx context.Context, filter repository.StudentFilter) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Student
	for _, st := range m.students {
		if st.ID <= filter.AfterID {
			continue
		}
		if filter.Cohort != "" && (st.Cohort == nil || *st.Cohort != filter.Cohort) {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// memSubmissions serialises every call, which gives the same per-slot
// atomicity the row lock and conditional update provide in Postgres.
type memSubmissions struct {
	mu   sync.Mutex
	rows []models.Submission
}

func (m *memSubmissions) currentIndex(studentID int64, docType models.DocumentType) int {
	for i := range m.rows {
		if m.rows[i].StudentID == studentID && m.rows[i].DocumentType == docType && m.rows[i].IsCurrent {
			return i
		}
	}
	return -1
}

func (m *memSubmissions) Create(ctx context.Context, sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx := m.currentIndex(sub.StudentID, sub.DocumentType); idx >= 0 {
		if !m.rows[idx].ApprovalStatus.AcceptsSubmission() {
			return repository.ErrSlotOccupied
		}
		m.rows[idx].IsCurrent = false
	}
	sub.ID = uuid.NewString()
	sub.ApprovalStatus = models.StatusPendingApproval
	sub.IsCurrent = true
	m.rows = append(m.rows, *sub)
	return nil
}

func (m *memSubmissions) GetCurrent(ctx context.Context, studentID int64, docType models.DocumentType) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.currentIndex(studentID, docType)
	if idx < 0 {
		return nil, sql.ErrNoRows
	}
	sub := m.rows[idx]
	return &sub, nil
}

func (m *memSubmissions) ListCurrent(ctx context.Context, studentIDs []int64) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[int64]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	var out []models.Submission
	for _, row := range m.rows {
		if row.IsCurrent && wanted[row.StudentID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memSubmissions) History(ctx context.Context, studentID int64, docType models.DocumentType) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].StudentID == studentID && m.rows[i].DocumentType == docType {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memSubmissions) Transition(ctx context.Context, params repository.TransitionParams) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.currentIndex(params.StudentID, params.DocumentType)
	if idx < 0 {
		return nil, sql.ErrNoRows
	}
	allowed := false
	for _, from := range params.From {
		if m.rows[idx].ApprovalStatus == from {
			allowed = true
		}
	}
	if !allowed {
		return nil, sql.ErrNoRows
	}
	reviewer := params.ReviewedBy
	reviewedAt := params.ReviewedAt
	m.rows[idx].ApprovalStatus = params.To
	m.rows[idx].ReviewedBy = &reviewer
	m.rows[idx].ReviewedAt = &reviewedAt
	if params.Note != nil {
		m.rows[idx].Note = params.Note
	}
	sub := m.rows[idx]
	return &sub, nil
}

func (m *memSubmissions) status(studentID int64, docType models.DocumentType) models.ApprovalStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.currentIndex(studentID, docType)
	if idx < 0 {
		return models.StatusNoSubmission
	}
	return m.rows[idx].ApprovalStatus
}

type memGrades struct {
	mu        sync.Mutex
	current   map[int64]models.Grade
	records   []models.Grade
	failFor   map[int64]error
	createOps int
}

func newMemGrades() *memGrades {
	return &memGrades{current: make(map[int64]models.Grade), failFor: make(map[int64]error)}
}

func (m *memGrades) Get(ctx context.Context, studentID int64) (*models.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.current[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &g, nil
}

func (m *memGrades) ListCurrent(ctx context.Context, studentIDs []int64) (map[int64]models.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]models.Grade)
	for _, id := range studentIDs {
		if g, ok := m.current[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

func (m *memGrades) History(ctx context.Context, studentID int64) ([]models.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Grade
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].StudentID == studentID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memGrades) Save(ctx context.Context, g *models.Grade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.RecordID = uuid.NewString()
	g.Version = m.current[g.StudentID].Version + 1
	m.current[g.StudentID] = *g
	m.records = append(m.records, *g)
	return nil
}

func (m *memGrades) CreateIfAbsent(ctx context.Context, g *models.Grade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createOps++
	if err := m.failFor[g.StudentID]; err != nil {
		return err
	}
	if _, ok := m.current[g.StudentID]; ok {
		return repository.ErrGradeExists
	}
	g.RecordID = uuid.NewString()
	g.Version = 1
	m.current[g.StudentID] = *g
	m.records = append(m.records, *g)
	return nil
}

func (m *memGrades) grade(studentID int64) (models.Grade, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.current[studentID]
	return g, ok
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) ofType(t models.NotificationType) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// memNotifications is an in-memory notification store ordered like the SQL query.
type memNotifications struct {
	mu        sync.Mutex
	items     []models.Notification
	createErr error
}

func (m *memNotifications) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	m.items = append(m.items, *n)
	return nil
}

func (m *memNotifications) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			n := n
			return &n, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memNotifications) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.items {
		if n.RecipientID != filter.RecipientID || (filter.UnreadOnly && n.Read) {
			continue
		}
		if filter.Before != nil {
			before := n.CreatedAt.Before(filter.Before.CreatedAt) ||
				(n.CreatedAt.Equal(filter.Before.CreatedAt) && n.ID < filter.Before.ID)
			if !before {
				continue
			}
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memNotifications) MarkRead(ctx context.Context, id string, recipientID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].RecipientID == recipientID && !m.items[i].Read {
			m.items[i].Read = true
			m.items[i].ReadAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) MarkAllRead(ctx context.Context, recipientID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.items {
		if m.items[i].RecipientID == recipientID && !m.items[i].Read {
			m.items[i].Read = true
			m.items[i].ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

// memOverdue serves a fixed overdue list, dropping slots the submission store
// reports as approved so approvals between runs are observed.
type memOverdue struct {
	slots       []models.OverdueSlot
	submissions *memSubmissions
	listErr     error
	onPage      func()
}

func (m *memOverdue) ListOverdue(ctx context.Context, now time.Time, after repository.OverdueCursor, limit int) ([]models.OverdueSlot, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	sorted := append([]models.OverdueSlot(nil), m.slots...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StudentID == sorted[j].StudentID {
			return sorted[i].DocumentType < sorted[j].DocumentType
		}
		return sorted[i].StudentID < sorted[j].StudentID
	})
	var out []models.OverdueSlot
	for _, slot := range sorted {
		if !slot.DueDate.Before(now) {
			continue
		}
		if slot.StudentID < after.StudentID || (slot.StudentID == after.StudentID && slot.DocumentType <= after.DocumentType) {
			continue
		}
		if m.submissions != nil && m.submissions.status(slot.StudentID, slot.DocumentType) == models.StatusApproved {
			continue
		}
		out = append(out, slot)
		if len(out) == limit {
			break
		}
	}
	if m.onPage != nil {
		m.onPage()
	}
	return out, nil
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func (m *memLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]string)
	}
	if _, ok := m.held[key]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	m.held[key] = token
	return token, true, nil
}

func (m *memLocker) ReleaseLock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

var errBoom = errors.New("boom")
