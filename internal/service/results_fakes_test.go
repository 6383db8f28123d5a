package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/exam-results-api/internal/models"
	"github.com/noah-isme/exam-results-api/internal/repository"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
	"github.com/noah-isme/exam-results-api/pkg/jobs"
)

func f(v float64) *float64 { return &v }

type examStub struct {
	exams     map[string]*models.Exam
	grades    []models.ExamGrade
	divisions []models.ExamDivision
	subjects  []models.ExamSubject
}

func newExamStub(exam models.Exam) *examStub {
	return &examStub{
		exams: map[string]*models.Exam{exam.ID: &exam},
		grades: []models.ExamGrade{
			{Grade: "A", LowestMarks: 81, HighestMarks: 100, GradePoints: 1},
			{Grade: "B", LowestMarks: 61, HighestMarks: 80, GradePoints: 2},
			{Grade: "C", LowestMarks: 41, HighestMarks: 60, GradePoints: 3},
			{Grade: "D", LowestMarks: 21, HighestMarks: 40, GradePoints: 4},
			{Grade: "F", LowestMarks: 0, HighestMarks: 20, GradePoints: 5},
		},
		divisions: []models.ExamDivision{
			{Division: models.DivisionI, LowestPoints: 1, HighestPoints: 17, DivisionPoints: 1},
			{Division: models.DivisionII, LowestPoints: 18, HighestPoints: 21, DivisionPoints: 2},
			{Division: models.DivisionIII, LowestPoints: 22, HighestPoints: 25, DivisionPoints: 3},
			{Division: models.DivisionIV, LowestPoints: 26, HighestPoints: 33, DivisionPoints: 4},
			{Division: models.DivisionZero, LowestPoints: 34, HighestPoints: 60, DivisionPoints: 5},
		},
		subjects: []models.ExamSubject{
			{Code: "ENG", Name: "English"},
			{Code: "MAT", Name: "Mathematics"},
		},
	}
}

func csee() models.Exam {
	return models.Exam{
		ID:           "exam-1",
		Name:         "CSEE 2024",
		Level:        models.LevelCSEE,
		Year:         2024,
		AvgStyle:     models.AvgStyleAuto,
		RankingStyle: models.RankingAverageOnly,
	}
}

func (s *examStub) FindByID(_ context.Context, id string) (*models.Exam, error) {
	exam, ok := s.exams[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}
	copied := *exam
	return &copied, nil
}

func (s *examStub) ListGrades(context.Context, string) ([]models.ExamGrade, error) {
	return s.grades, nil
}

func (s *examStub) ListDivisions(context.Context, string) ([]models.ExamDivision, error) {
	return s.divisions, nil
}

func (s *examStub) ListSubjects(context.Context, string) ([]models.ExamSubject, error) {
	return s.subjects, nil
}

type runRepoStub struct {
	mu       sync.Mutex
	runs     map[string]*models.ProcessingRun
	stale    int64
	updates  int
	failNext error
}

func newRunRepoStub() *runRepoStub {
	return &runRepoStub{runs: map[string]*models.ProcessingRun{}}
}

func (r *runRepoStub) Create(_ context.Context, run *models.ProcessingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now().UTC()
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *runRepoStub) GetByID(_ context.Context, id string) (*models.ProcessingRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "processing run not found")
	}
	copied := *run
	return &copied, nil
}

func (r *runRepoStub) FindActive(_ context.Context, examID string) (*models.ProcessingRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ExamID == examID && !run.Status.Terminal() {
			copied := *run
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *runRepoStub) Update(_ context.Context, id string, params repository.UpdateProcessingRunParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	run, ok := r.runs[id]
	if !ok {
		return appErrors.ErrNotFound
	}
	r.updates++
	if params.Status != nil {
		run.Status = *params.Status
	}
	if params.Progress != nil {
		run.Progress = *params.Progress
	}
	if params.SchoolCount != nil {
		run.SchoolCount = *params.SchoolCount
	}
	if params.StudentCount != nil {
		run.StudentCount = *params.StudentCount
	}
	if params.StartedAt != nil {
		run.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		run.FinishedAt = params.FinishedAt
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		run.ErrorMessage = &msg
	}
	return nil
}

func (r *runRepoStub) ListQueued(_ context.Context, _ int) ([]models.ProcessingRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var queued []models.ProcessingRun
	for _, run := range r.runs {
		if run.Status == models.ProcessingStatusQueued {
			queued = append(queued, *run)
		}
	}
	return queued, nil
}

func (r *runRepoStub) FailStale(_ context.Context, message string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, run := range r.runs {
		if run.Status == models.ProcessingStatusProcessing {
			run.Status = models.ProcessingStatusFailed
			msg := message
			run.ErrorMessage = &msg
			n++
		}
	}
	r.stale = n
	return n, nil
}

type resultStoreStub struct {
	replaced   map[string]repository.ResultSet
	cleared    []string
	replaceErr error

	student   *models.StudentResult
	positions []models.RankingPosition
	summaries map[string]models.LocationSummary
	subjects  []models.SubjectSummary
	schools   []models.SchoolRankingRow
	subjectRk []models.SubjectRankingRow
	filters   []models.RankingFilter
	calls     int
}

func newResultStoreStub() *resultStoreStub {
	return &resultStoreStub{replaced: map[string]repository.ResultSet{}, summaries: map[string]models.LocationSummary{}}
}

func (r *resultStoreStub) Replace(_ context.Context, examID string, set repository.ResultSet) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.replaced[examID] = set
	return nil
}

func (r *resultStoreStub) Clear(_ context.Context, examID string) error {
	r.cleared = append(r.cleared, examID)
	delete(r.replaced, examID)
	return nil
}

func (r *resultStoreStub) GetStudentResult(_ context.Context, _, _ string) (*models.StudentResult, error) {
	r.calls++
	if r.student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student result not found")
	}
	return r.student, nil
}

func (r *resultStoreStub) ListPositions(_ context.Context, _ string, entity models.RankEntity, id string) ([]models.RankingPosition, error) {
	var out []models.RankingPosition
	for _, p := range r.positions {
		if p.EntityType == entity && p.EntityID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *resultStoreStub) GetLocationSummary(_ context.Context, _ string, t models.LocationType, id string) (*models.LocationSummary, error) {
	r.calls++
	summary, ok := r.summaries[string(t)+"/"+id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "summary not found")
	}
	return &summary, nil
}

func (r *resultStoreStub) ListChildSummaries(_ context.Context, _ string, t models.LocationType, parentID string) ([]models.LocationSummary, error) {
	var out []models.LocationSummary
	for _, s := range r.summaries {
		if s.LocationType == t && s.ParentID != nil && *s.ParentID == parentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *resultStoreStub) ListLocationSummaries(_ context.Context, _ string) ([]models.LocationSummary, error) {
	r.calls++
	order := []models.LocationType{models.LocationNational, models.LocationRegion, models.LocationCouncil, models.LocationWard}
	var out []models.LocationSummary
	for _, t := range order {
		for _, s := range r.summaries {
			if s.LocationType == t {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (r *resultStoreStub) ListSubjectSummaries(context.Context, string, models.LocationType, string) ([]models.SubjectSummary, error) {
	return r.subjects, nil
}

func (r *resultStoreStub) ListSchoolRanking(_ context.Context, filter models.RankingFilter) ([]models.SchoolRankingRow, error) {
	r.calls++
	r.filters = append(r.filters, filter)
	return r.schools, nil
}

func (r *resultStoreStub) ListSubjectRanking(_ context.Context, filter models.RankingFilter) ([]models.SubjectRankingRow, error) {
	r.calls++
	r.filters = append(r.filters, filter)
	return r.subjectRk, nil
}

type markStub struct {
	schools  []models.School
	marks    []models.StudentMark
	students map[string]*models.Student
}

func (m *markStub) ListSchools(context.Context, string) ([]models.School, error) {
	return m.schools, nil
}

func (m *markStub) ListMarks(context.Context, string) ([]models.StudentMark, error) {
	return m.marks, nil
}

func (m *markStub) FindStudent(_ context.Context, _ string, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return student, nil
}

func (m *markStub) FindSchool(_ context.Context, id string) (*models.School, error) {
	for i := range m.schools {
		if m.schools[i].ID == id {
			return &m.schools[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type stubCacheRepo struct {
	store     map[string][]byte
	deleted   []string
	deleteErr error
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	prefix := pattern[:len(pattern)-1]
	for key := range s.store {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.store, key)
		}
	}
	return nil
}

func testSchools() []models.School {
	return []models.School{
		{ID: "sch-1", Name: "Azania", RegistrationNo: "S0101", WardID: "w1", WardName: "Kariakoo", CouncilID: "c1", CouncilName: "Ilala", RegionID: "r1", RegionName: "Dar es Salaam"},
		{ID: "sch-2", Name: "Jangwani", RegistrationNo: "S0102", WardID: "w1", WardName: "Kariakoo", CouncilID: "c1", CouncilName: "Ilala", RegionID: "r1", RegionName: "Dar es Salaam"},
		{ID: "sch-3", Name: "Mzumbe", RegistrationNo: "S0202", WardID: "w2", WardName: "Mzumbe", CouncilID: "c2", CouncilName: "Mvomero", RegionID: "r2", RegionName: "Morogoro"},
	}
}

func mark(student, school, sex, subject string, marks *float64, absent bool) models.StudentMark {
	return models.StudentMark{ExamID: "exam-1", StudentID: student, SchoolID: school, Sex: sex, SubjectCode: subject, Marks: marks, Absent: absent}
}

// testMarks gives sch-1 averages 85 and 45, sch-2 average 70 and sch-3 one
// absent candidate.
func testMarks() []models.StudentMark {
	return []models.StudentMark{
		mark("st-1", "sch-1", models.SexFemale, "ENG", f(90), false),
		mark("st-1", "sch-1", models.SexFemale, "MAT", f(80), false),
		mark("st-2", "sch-1", models.SexMale, "ENG", f(50), false),
		mark("st-2", "sch-1", models.SexMale, "MAT", f(40), false),
		mark("st-3", "sch-2", models.SexFemale, "ENG", f(70), false),
		mark("st-3", "sch-2", models.SexFemale, "MAT", f(70), false),
		mark("st-4", "sch-3", models.SexMale, "ENG", nil, true),
		mark("st-4", "sch-3", models.SexMale, "MAT", nil, true),
	}
}
