package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/courseportal/portal/internal/latedays"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/repository"
)

type fakeLateDays struct {
	assignments map[string]*models.Assignment
	claims      []models.Claim
	adjustments []models.Adjustment

	claimResult *models.ClaimResult
	claimErr    error
	claimCalls  int
	onClaim     func()
	deleted     []string
}

func newFakeLateDays() *fakeLateDays {
	return &fakeLateDays{assignments: make(map[string]*models.Assignment)}
}

func (f *fakeLateDays) ListAssignments(_ context.Context, includeArchived bool) ([]models.Assignment, error) {
	out := []models.Assignment{}
	for _, a := range f.assignments {
		if includeArchived || a.Active {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLateDays) GetAssignment(_ context.Context, id string) (*models.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeLateDays) CreateAssignment(_ context.Context, a *models.Assignment) error {
	cp := *a
	f.assignments[a.ID] = &cp
	return nil
}

func (f *fakeLateDays) UpdateAssignment(_ context.Context, a *models.Assignment) error {
	cp := *a
	f.assignments[a.ID] = &cp
	return nil
}

func (f *fakeLateDays) SetAssignmentActive(_ context.Context, id string, active bool, _ time.Time) error {
	f.assignments[id].Active = active
	return nil
}

func (f *fakeLateDays) ListClaimsByStudent(_ context.Context, erp string) ([]models.Claim, error) {
	out := []models.Claim{}
	for _, c := range f.claims {
		if c.StudentERP == erp {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeLateDays) ListAllClaims(context.Context) ([]models.ClaimWithDetails, error) {
	out := []models.ClaimWithDetails{}
	for _, c := range f.claims {
		out = append(out, models.ClaimWithDetails{Claim: c})
	}
	return out, nil
}

func (f *fakeLateDays) GetClaim(_ context.Context, id string) (*models.Claim, error) {
	for _, c := range f.claims {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLateDays) DeleteClaim(_ context.Context, id string) (bool, error) {
	for i, c := range f.claims {
		if c.ID == id {
			f.claims = append(f.claims[:i], f.claims[i+1:]...)
			f.deleted = append(f.deleted, id)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLateDays) ListAdjustmentsByStudent(_ context.Context, erp string) ([]models.Adjustment, error) {
	out := []models.Adjustment{}
	for _, a := range f.adjustments {
		if a.StudentERP == erp {
			out = append(out, a)
		}
	}
	return out, nil
}

// ClaimLateDays returns the canned result when one is set and otherwise
// applies the same rules as the database procedure.
func (f *fakeLateDays) ClaimLateDays(_ context.Context, erp, assignmentID string, days int, now time.Time) (*models.ClaimResult, error) {
	f.claimCalls++
	if f.onClaim != nil {
		f.onClaim()
	}
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if f.claimResult != nil {
		return f.claimResult, nil
	}

	claims, _ := f.ListClaimsByStudent(context.Background(), erp)
	adjustments, _ := f.ListAdjustmentsByStudent(context.Background(), erp)
	balance := latedays.ComputeBalance(claims, adjustments)
	if days > balance.Remaining {
		return nil, &repository.ProcedureError{Procedure: "claim_late_days", Message: "Only 0 late day(s) remaining"}
	}
	a := f.assignments[assignmentID]
	before, after, err := latedays.PlanClaim(*a, latedays.GroupClaims(claims)[assignmentID], days)
	if err != nil {
		return nil, err
	}
	c := models.Claim{
		ID:               fmt.Sprintf("claim-%d", len(f.claims)+1),
		AssignmentID:     assignmentID,
		StudentERP:       erp,
		DaysUsed:         days,
		ClaimedAt:        now,
		DueAtBeforeClaim: before,
		DueAtAfterClaim:  after,
	}
	f.claims = append([]models.Claim{c}, f.claims...)
	remaining := balance.Remaining - days
	return &models.ClaimResult{Claim: &c, RemainingLateDays: &remaining}, nil
}

func (f *fakeLateDays) AddLateDays(_ context.Context, a *models.Adjustment) error {
	if a.StudentERP == "missing" {
		return &repository.ProcedureError{Procedure: "ta_add_late_day", Message: "Student missing is not on the roster"}
	}
	f.adjustments = append(f.adjustments, *a)
	return nil
}

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) List(context.Context) ([]models.Setting, error) {
	out := []models.Setting{}
	for k, v := range f.values {
		out = append(out, models.Setting{Key: k, Value: v})
	}
	return out, nil
}

func (f *fakeSettings) Get(_ context.Context, key string) (*models.Setting, error) {
	v, ok := f.values[key]
	if !ok {
		return nil, nil
	}
	return &models.Setting{Key: key, Value: v}, nil
}

func (f *fakeSettings) Set(_ context.Context, key, value string, _ time.Time) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
	return nil
}

type fakeRoster struct {
	students []models.Student
	replaced [][]models.Student
}

func (f *fakeRoster) CheckRoster(_ context.Context, erp string) (*models.RosterCheck, error) {
	for _, s := range f.students {
		if s.ERP == erp {
			return &models.RosterCheck{Found: true, StudentName: s.StudentName, ClassNo: s.ClassNo}, nil
		}
	}
	return &models.RosterCheck{}, nil
}

func (f *fakeRoster) GetByERP(_ context.Context, erp string) (*models.Student, error) {
	for _, s := range f.students {
		if s.ERP == erp {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRoster) GetByEmail(_ context.Context, email string) (*models.Student, error) {
	for _, s := range f.students {
		if strings.EqualFold(s.Email, email) {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRoster) List(context.Context) ([]models.Student, error) {
	return append([]models.Student{}, f.students...), nil
}

func (f *fakeRoster) Count(context.Context) (int, error) {
	return len(f.students), nil
}

func (f *fakeRoster) Replace(_ context.Context, students []models.Student) error {
	f.replaced = append(f.replaced, students)
	f.students = append([]models.Student{}, students...)
	return nil
}

type fakeSessions struct {
	sessions map[string]models.Session
}

func (f *fakeSessions) Create(_ context.Context, s *models.Session) error {
	for _, existing := range f.sessions {
		if existing.SessionNumber == s.SessionNumber {
			return repository.ErrDuplicate
		}
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSessions) List(context.Context) ([]models.Session, error) {
	out := []models.Session{}
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) (bool, error) {
	_, ok := f.sessions[id]
	delete(f.sessions, id)
	return ok, nil
}

type fakeAttendance struct {
	rows          map[string][]models.Attendance
	replaceCalls  int
	board         *models.AttendanceBoard
	beforeReplace func()
}

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{rows: make(map[string][]models.Attendance)}
}

func (f *fakeAttendance) ListBySession(_ context.Context, sessionID string) ([]models.Attendance, error) {
	return append([]models.Attendance{}, f.rows[sessionID]...), nil
}

func (f *fakeAttendance) CountBySession(_ context.Context, sessionID string) (int, error) {
	return len(f.rows[sessionID]), nil
}

func (f *fakeAttendance) ReplaceSession(_ context.Context, sessionID string, expected int, rows []models.Attendance) error {
	if f.beforeReplace != nil {
		f.beforeReplace()
	}
	if got := len(f.rows[sessionID]); got != expected {
		return fmt.Errorf("%w: expected %d, found %d", repository.ErrRowCountChanged, expected, got)
	}
	f.replaceCalls++
	f.rows[sessionID] = append([]models.Attendance{}, rows...)
	return nil
}

func (f *fakeAttendance) Upsert(_ context.Context, row *models.Attendance) error {
	rows := f.rows[row.SessionID]
	for i := range rows {
		if rows[i].StudentERP == row.StudentERP {
			rows[i].Status = row.Status
			return nil
		}
	}
	f.rows[row.SessionID] = append(rows, *row)
	return nil
}

func (f *fakeAttendance) SetNamingPenalty(_ context.Context, sessionID, erp string, penalty bool, _ string, _ time.Time) (bool, error) {
	rows := f.rows[sessionID]
	for i := range rows {
		if rows[i].StudentERP == erp {
			rows[i].NamingPenalty = penalty
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAttendance) GetStudentAttendance(_ context.Context, erp string) (*models.StudentAttendance, error) {
	out := &models.StudentAttendance{Records: []models.StudentAttendanceRecord{}}
	for sessionID, rows := range f.rows {
		for _, r := range rows {
			if r.StudentERP == erp {
				out.Records = append(out.Records, models.StudentAttendanceRecord{SessionID: sessionID, Status: r.Status})
				if r.Status == models.StatusAbsent {
					out.TotalAbsences++
				}
			}
		}
	}
	return out, nil
}

func (f *fakeAttendance) GetPublicBoard(context.Context) (*models.AttendanceBoard, error) {
	if f.board == nil {
		return &models.AttendanceBoard{}, nil
	}
	cp := *f.board
	return &cp, nil
}

type fakeTickets struct {
	tickets map[string]models.Ticket
}

func (f *fakeTickets) Create(_ context.Context, t *models.Ticket) error {
	f.tickets[t.ID] = *t
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTickets) ListByStudent(_ context.Context, erp string) ([]models.Ticket, error) {
	out := []models.Ticket{}
	for _, t := range f.tickets {
		if t.StudentERP == erp {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTickets) ListAll(_ context.Context, status string) ([]models.Ticket, error) {
	out := []models.Ticket{}
	for _, t := range f.tickets {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTickets) Update(_ context.Context, t *models.Ticket) error {
	f.tickets[t.ID] = *t
	return nil
}

type fakeTAs struct {
	accounts map[string]models.TAAccount
}

func (f *fakeTAs) IsAllowlisted(_ context.Context, email string) (bool, error) {
	_, ok := f.accounts[strings.ToLower(email)]
	return ok, nil
}

func (f *fakeTAs) Get(_ context.Context, email string) (*models.TAAccount, error) {
	a, ok := f.accounts[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *fakeTAs) List(context.Context) ([]models.TAAccount, error) {
	out := []models.TAAccount{}
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeTAs) Add(_ context.Context, email string, at time.Time) error {
	if _, ok := f.accounts[email]; !ok {
		f.accounts[email] = models.TAAccount{Email: email, CreatedAt: at}
	}
	return nil
}

func (f *fakeTAs) Remove(_ context.Context, email string) (bool, error) {
	_, ok := f.accounts[email]
	delete(f.accounts, email)
	return ok, nil
}

func (f *fakeTAs) SetPasswordCipher(_ context.Context, email, cipher string) (bool, error) {
	a, ok := f.accounts[email]
	if !ok {
		return false, nil
	}
	a.PasswordCipher = cipher
	f.accounts[email] = a
	return true, nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt models.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) tables() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Table+":"+string(e.Type))
	}
	return out
}
