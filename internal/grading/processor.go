package grading

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/exam-results-api/internal/models"
)

// SchoolInput is one school's complete set of student marks.
type SchoolInput struct {
	School   models.School
	Students []StudentMarks
}

// SchoolOutcome is one school's scored students and summary.
type SchoolOutcome struct {
	School   models.School
	Students []StudentResult
	Summary  Summary
}

// SubjectPosition is a school's position in a subject ranking.
type SubjectPosition struct {
	SubjectCode string
	ScopedPosition
}

// Outcome is the full output of processing one exam.
type Outcome struct {
	Schools          []SchoolOutcome
	StudentPositions []ScopedPosition
	SchoolPositions  []ScopedPosition
	SubjectPositions []SubjectPosition
	Hierarchy        *Node
}

// StudentCount returns the number of scored students.
func (o *Outcome) StudentCount() int {
	n := 0
	for _, school := range o.Schools {
		n += len(school.Students)
	}
	return n
}

var (
	studentScopes = []models.RankScope{models.ScopeSchool, models.ScopeWard, models.ScopeCouncil, models.ScopeRegion, models.ScopeNational}
	schoolScopes  = []models.RankScope{models.ScopeWard, models.ScopeCouncil, models.ScopeRegion, models.ScopeNational}
)

// Processor runs the results pipeline for an exam: per-school scoring and
// summaries fan out across workers, then ranking and roll-up run once every
// school has finished.
type Processor struct {
	workers       int
	includeAbsent bool
}

// NewProcessor constructs a Processor with the given fan-out width.
func NewProcessor(workers int, includeAbsent bool) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{workers: workers, includeAbsent: includeAbsent}
}

// Run processes every school. The first scoring error cancels the remaining
// schools and is returned.
func (p *Processor) Run(ctx context.Context, cfg *ExamConfig, schools []SchoolInput) (*Outcome, error) {
	outcomes := make([]SchoolOutcome, len(schools))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range schools {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := p.processSchool(cfg, schools[i])
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.rank(cfg, outcomes), nil
}

func (p *Processor) processSchool(cfg *ExamConfig, in SchoolInput) (SchoolOutcome, error) {
	results := make([]StudentResult, 0, len(in.Students))
	for _, student := range in.Students {
		if student.SchoolID == "" {
			student.SchoolID = in.School.ID
		}
		result, err := ScoreStudent(cfg, student)
		if err != nil {
			return SchoolOutcome{}, fmt.Errorf("school %s: %w", in.School.ID, err)
		}
		results = append(results, result)
	}
	return SchoolOutcome{
		School:   in.School,
		Students: results,
		Summary:  SchoolSummary(cfg, results, p.includeAbsent),
	}, nil
}

func (p *Processor) rank(cfg *ExamConfig, schools []SchoolOutcome) *Outcome {
	out := &Outcome{Schools: schools}

	var studentEntries, schoolEntries []ScopedEntry
	refs := make([]SchoolSummaryRef, 0, len(schools))
	for _, school := range schools {
		scopes := map[models.RankScope]string{
			models.ScopeWard:     school.School.WardID,
			models.ScopeCouncil:  school.School.CouncilID,
			models.ScopeRegion:   school.School.RegionID,
			models.ScopeNational: models.NationalID,
		}
		schoolEntries = append(schoolEntries, ScopedEntry{
			Entry:  Entry{ID: school.School.ID, Keys: school.Summary.Keys()},
			Scopes: scopes,
		})

		studentScopesFor := map[models.RankScope]string{models.ScopeSchool: school.School.ID}
		for k, v := range scopes {
			studentScopesFor[k] = v
		}
		for _, student := range school.Students {
			studentEntries = append(studentEntries, ScopedEntry{
				Entry:  Entry{ID: student.StudentID, Keys: StudentKeys(student)},
				Scopes: studentScopesFor,
			})
		}
		refs = append(refs, SchoolSummaryRef{School: school.School, Summary: school.Summary})
	}

	out.StudentPositions = RankScopes(cfg.Exam.RankingStyle, studentEntries, studentScopes)
	out.SchoolPositions = RankScopes(cfg.Exam.RankingStyle, schoolEntries, schoolScopes)

	for _, code := range cfg.SubjectCodes() {
		entries := make([]ScopedEntry, 0, len(schoolEntries))
		for i, entry := range schoolEntries {
			if agg, ok := schools[i].Summary.Subjects[code]; !ok || agg.Registered == 0 {
				continue
			}
			entries = append(entries, ScopedEntry{
				Entry:  Entry{ID: entry.ID, Keys: schools[i].Summary.SubjectKeys(code)},
				Scopes: entry.Scopes,
			})
		}
		for _, pos := range RankScopes(cfg.Exam.SubjectRankingStyle, entries, schoolScopes) {
			out.SubjectPositions = append(out.SubjectPositions, SubjectPosition{SubjectCode: code, ScopedPosition: pos})
		}
	}

	out.Hierarchy = BuildHierarchy(refs)
	return out
}
