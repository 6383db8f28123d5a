package service

import (
	"sort"

	"github.com/noah-isme/exam-results-api/internal/grading"
	"github.com/noah-isme/exam-results-api/internal/models"
	"github.com/noah-isme/exam-results-api/internal/repository"
)

// buildInputs groups flat mark rows into per-school student marks. Schools
// with candidates but no mark rows are kept so they still appear in the
// hierarchy.
func buildInputs(schools []models.School, marks []models.StudentMark) []grading.SchoolInput {
	bySchool := make(map[string]*grading.SchoolInput, len(schools))
	inputs := make([]grading.SchoolInput, len(schools))
	for i, school := range schools {
		inputs[i] = grading.SchoolInput{School: school}
		bySchool[school.ID] = &inputs[i]
	}

	studentIndex := make(map[string]int)
	for _, m := range marks {
		in, ok := bySchool[m.SchoolID]
		if !ok {
			continue
		}
		key := m.SchoolID + "/" + m.StudentID
		idx, seen := studentIndex[key]
		if !seen {
			in.Students = append(in.Students, grading.StudentMarks{StudentID: m.StudentID, SchoolID: m.SchoolID, Sex: m.Sex})
			idx = len(in.Students) - 1
			studentIndex[key] = idx
		}
		in.Students[idx].Marks = append(in.Students[idx].Marks, grading.Mark{
			SubjectCode: m.SubjectCode,
			Marks:       m.Marks,
			Absent:      m.Absent,
		})
	}
	return inputs
}

func toResultSet(examID string, out *grading.Outcome) repository.ResultSet {
	set := repository.ResultSet{}

	for _, school := range out.Schools {
		for _, student := range school.Students {
			set.Students = append(set.Students, toStudentRow(examID, student))
		}
	}

	appendPositions := func(entity models.RankEntity, subject string, positions []grading.ScopedPosition) {
		for _, p := range positions {
			set.Positions = append(set.Positions, models.RankingPosition{
				ExamID:      examID,
				EntityType:  entity,
				EntityID:    p.ID,
				Scope:       p.Scope,
				ScopeID:     p.ScopeID,
				SubjectCode: subject,
				Position:    p.Rank,
				Total:       p.Total,
			})
		}
	}
	appendPositions(models.EntityStudent, "", out.StudentPositions)
	appendPositions(models.EntitySchool, "", out.SchoolPositions)
	for _, sp := range out.SubjectPositions {
		appendPositions(models.EntitySchool, sp.SubjectCode, []grading.ScopedPosition{sp.ScopedPosition})
	}

	if out.Hierarchy != nil {
		out.Hierarchy.Walk(func(n *grading.Node) {
			set.Locations = append(set.Locations, toLocationRow(examID, n))
			set.Subjects = append(set.Subjects, toSubjectRows(examID, n)...)
		})
	}
	return set
}

func toStudentRow(examID string, r grading.StudentResult) models.StudentResult {
	row := models.StudentResult{
		ExamID:          examID,
		StudentID:       r.StudentID,
		SchoolID:        r.SchoolID,
		Sex:             r.Sex,
		Level:           r.Level,
		CountedSubjects: r.Counted,
		Total:           r.Total,
		Average:         r.Average,
		Subjects:        make(models.SubjectResultItems, 0, len(r.Subjects)),
	}
	if grade := r.OverallGrade(); grade != "" {
		row.Grade = &grade
	}
	if r.Secondary != nil {
		row.GPA = r.Secondary.GPA
		row.Points = r.Secondary.Points
		division := r.Secondary.Division
		row.Division = &division
	}
	for _, s := range r.Subjects {
		row.Subjects = append(row.Subjects, models.SubjectResultItem{
			SubjectCode: s.SubjectCode,
			Marks:       s.Marks,
			Grade:       s.Grade,
			GradePoints: s.GradePoints,
			Absent:      s.Absent,
			Counted:     s.Counted,
		})
	}
	return row
}

func toLocationRow(examID string, n *grading.Node) models.LocationSummary {
	row := models.LocationSummary{
		ExamID:          examID,
		LocationType:    n.Type,
		LocationID:      n.ID,
		Name:            n.Name,
		TotalSchools:    n.Summary.TotalSchools,
		TotalStudents:   n.Summary.TotalStudents,
		RankedStudents:  n.Summary.RankedStudents,
		AverageSum:      n.Summary.AverageSum,
		TotalSum:        n.Summary.TotalSum,
		GPASum:          n.Summary.GPASum,
		GPACount:        n.Summary.GPACount,
		Average:         n.Summary.Average,
		GPA:             n.Summary.GPA,
		DivisionSummary: models.Counts(n.Summary.DivisionSummary),
		GradesSummary:   models.Counts(n.Summary.GradesSummary),
	}
	if n.ParentID != "" {
		parent := n.ParentID
		row.ParentID = &parent
	}
	return row
}

func toSubjectRows(examID string, n *grading.Node) []models.SubjectSummary {
	codes := make([]string, 0, len(n.Summary.Subjects))
	for code := range n.Summary.Subjects {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([]models.SubjectSummary, 0, len(codes))
	for _, code := range codes {
		agg := n.Summary.Subjects[code]
		rows = append(rows, models.SubjectSummary{
			ExamID:       examID,
			LocationType: n.Type,
			LocationID:   n.ID,
			SubjectCode:  code,
			Registered:   agg.Registered,
			Sat:          agg.Sat,
			Absent:       agg.Absent,
			StudentCount: agg.StudentCount,
			Passed:       agg.Passed,
			MarksSum:     agg.MarksSum,
			PointsSum:    agg.PointsSum,
			Average:      agg.Average,
			GPA:          agg.GPA,
			PassRate:     agg.PassRate,
			GradeCounts:  models.Counts(agg.GradeCounts),
		})
	}
	return rows
}
