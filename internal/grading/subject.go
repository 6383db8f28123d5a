package grading

// SubjectAggregate summarises one subject across a student population. The
// sums are kept so aggregates of disjoint populations can be merged.
type SubjectAggregate struct {
	SubjectCode  string
	Registered   int
	Sat          int
	Absent       int
	StudentCount int
	Passed       int
	MarksSum     float64
	PointsSum    int
	GradeCounts  map[string]int

	Average  float64
	GPA      *float64
	PassRate float64

	secondary bool
}

// AggregateSubject computes average mark, GPA, pass rate and student count
// for one subject. Absent students only count, as a zero mark at the worst
// grade, when includeAbsent is set. An empty population yields zero average
// and pass rate with an undefined GPA.
func AggregateSubject(cfg *ExamConfig, code string, results []StudentResult, includeAbsent bool) SubjectAggregate {
	agg := newSubjectAggregate(code, cfg.Secondary())
	worst := cfg.Grades.Worst()

	for _, result := range results {
		for _, subject := range result.Subjects {
			if subject.SubjectCode != code {
				continue
			}
			agg.Registered++
			switch {
			case subject.Absent:
				agg.Absent++
				agg.GradeCounts[subject.Grade]++
				if includeAbsent {
					agg.StudentCount++
					agg.PointsSum += worst.GradePoints
				}
			case subject.Marks != nil:
				agg.Sat++
				agg.StudentCount++
				agg.MarksSum += *subject.Marks
				agg.PointsSum += *subject.GradePoints
				agg.GradeCounts[subject.Grade]++
				if band, ok := cfg.Grades.Lookup(subject.Grade); ok && cfg.Passes(band) {
					agg.Passed++
				}
			}
		}
	}

	agg.finalize()
	return agg
}

func newSubjectAggregate(code string, secondary bool) SubjectAggregate {
	return SubjectAggregate{SubjectCode: code, GradeCounts: map[string]int{}, secondary: secondary}
}

// Merge adds another population's aggregate for the same subject.
func (a *SubjectAggregate) Merge(b SubjectAggregate) {
	a.Registered += b.Registered
	a.Sat += b.Sat
	a.Absent += b.Absent
	a.StudentCount += b.StudentCount
	a.Passed += b.Passed
	a.MarksSum += b.MarksSum
	a.PointsSum += b.PointsSum
	for grade, n := range b.GradeCounts {
		a.GradeCounts[grade] += n
	}
	a.secondary = a.secondary || b.secondary
	a.finalize()
}

func (a *SubjectAggregate) finalize() {
	a.Average, a.GPA, a.PassRate = 0, nil, 0
	if a.StudentCount == 0 {
		return
	}
	n := float64(a.StudentCount)
	a.Average = round4(a.MarksSum / n)
	a.PassRate = round4(float64(a.Passed) / n)
	if a.secondary {
		gpa := round4(float64(a.PointsSum) / n)
		a.GPA = &gpa
	}
}

func (a SubjectAggregate) clone() SubjectAggregate {
	out := a
	out.GradeCounts = make(map[string]int, len(a.GradeCounts))
	for grade, n := range a.GradeCounts {
		out.GradeCounts[grade] = n
	}
	if a.GPA != nil {
		gpa := *a.GPA
		out.GPA = &gpa
	}
	return out
}
