package grading

import (
	"math"
	"sort"

	"github.com/noah-isme/exam-results-api/internal/models"
)

const (
	minMark = 0
	maxMark = 100
)

// GradeScale maps marks to grade bands. Bands are held worst first.
type GradeScale struct {
	examID string
	bands  []models.ExamGrade
	byName map[string]models.ExamGrade
}

// NewGradeScale validates that the bands partition the whole marks 0..100 and
// that grade points strictly increase as the grade worsens.
func NewGradeScale(examID string, grades []models.ExamGrade) (*GradeScale, error) {
	if len(grades) == 0 {
		return nil, configError(examID, "grades", "no grade bands configured")
	}

	bands := make([]models.ExamGrade, len(grades))
	copy(bands, grades)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].LowestMarks < bands[j].LowestMarks })

	byName := make(map[string]models.ExamGrade, len(bands))
	for i, band := range bands {
		if band.Grade == "" || band.Grade == models.GradeAbsent {
			return nil, configError(examID, "grades", "band %d has reserved or empty grade %q", i, band.Grade)
		}
		if _, dup := byName[band.Grade]; dup {
			return nil, configError(examID, "grades", "grade %s configured twice", band.Grade)
		}
		byName[band.Grade] = band

		if band.LowestMarks > band.HighestMarks {
			return nil, configError(examID, "grades", "grade %s range %d-%d is inverted", band.Grade, band.LowestMarks, band.HighestMarks)
		}
		if i == 0 {
			if band.LowestMarks != minMark {
				return nil, configError(examID, "grades", "marks below %d are not covered", band.LowestMarks)
			}
			continue
		}

		prev := bands[i-1]
		switch {
		case band.LowestMarks <= prev.HighestMarks:
			return nil, configError(examID, "grades", "grades %s and %s overlap", prev.Grade, band.Grade)
		case band.LowestMarks > prev.HighestMarks+1:
			return nil, configError(examID, "grades", "marks %d-%d are not covered", prev.HighestMarks+1, band.LowestMarks-1)
		}
		if band.GradePoints >= prev.GradePoints {
			return nil, configError(examID, "grades", "grade %s must carry fewer points than %s", band.Grade, prev.Grade)
		}
	}

	if last := bands[len(bands)-1]; last.HighestMarks != maxMark {
		return nil, configError(examID, "grades", "marks above %d are not covered", last.HighestMarks)
	}

	return &GradeScale{examID: examID, bands: bands, byName: byName}, nil
}

// Grade returns the band containing mark. Fractional marks are rounded half
// up to a whole mark before lookup.
func (s *GradeScale) Grade(mark float64) (models.ExamGrade, error) {
	if math.IsNaN(mark) || mark < minMark || mark > maxMark {
		return models.ExamGrade{}, configError(s.examID, "marks", "mark %v is outside %d-%d", mark, minMark, maxMark)
	}
	whole := int(math.Floor(mark + 0.5))

	idx := sort.Search(len(s.bands), func(i int) bool { return s.bands[i].HighestMarks >= whole })
	if idx == len(s.bands) || s.bands[idx].LowestMarks > whole {
		return models.ExamGrade{}, configError(s.examID, "grades", "no band matches mark %d", whole)
	}
	return s.bands[idx], nil
}

// Lookup returns the band for a grade letter.
func (s *GradeScale) Lookup(grade string) (models.ExamGrade, bool) {
	band, ok := s.byName[grade]
	return band, ok
}

// Worst returns the band with the highest grade points.
func (s *GradeScale) Worst() models.ExamGrade {
	return s.bands[0]
}

// Best returns the band with the lowest grade points.
func (s *GradeScale) Best() models.ExamGrade {
	return s.bands[len(s.bands)-1]
}

// Bands returns the bands best first.
func (s *GradeScale) Bands() []models.ExamGrade {
	out := make([]models.ExamGrade, len(s.bands))
	for i := range s.bands {
		out[i] = s.bands[len(s.bands)-1-i]
	}
	return out
}

var divisionRank = map[string]int{
	models.DivisionI:    1,
	models.DivisionII:   2,
	models.DivisionIII:  3,
	models.DivisionIV:   4,
	models.DivisionZero: 5,
}

// DivisionScale maps summed grade points to a division. Bands are held in
// ascending point order, which is also best division first.
type DivisionScale struct {
	examID string
	bands  []models.ExamDivision
}

// NewDivisionScale validates that the bands are contiguous, that the division
// tags worsen as points grow and that division points increase with them.
func NewDivisionScale(examID string, divisions []models.ExamDivision) (*DivisionScale, error) {
	if len(divisions) == 0 {
		return nil, configError(examID, "divisions", "no division bands configured")
	}

	bands := make([]models.ExamDivision, len(divisions))
	copy(bands, divisions)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].LowestPoints < bands[j].LowestPoints })

	seen := make(map[string]struct{}, len(bands))
	for i, band := range bands {
		if _, ok := divisionRank[band.Division]; !ok {
			return nil, configError(examID, "divisions", "unknown division %q", band.Division)
		}
		if _, dup := seen[band.Division]; dup {
			return nil, configError(examID, "divisions", "division %s configured twice", band.Division)
		}
		seen[band.Division] = struct{}{}

		if band.LowestPoints > band.HighestPoints {
			return nil, configError(examID, "divisions", "division %s range %d-%d is inverted", band.Division, band.LowestPoints, band.HighestPoints)
		}
		if i == 0 {
			continue
		}

		prev := bands[i-1]
		switch {
		case band.LowestPoints <= prev.HighestPoints:
			return nil, configError(examID, "divisions", "divisions %s and %s overlap", prev.Division, band.Division)
		case band.LowestPoints > prev.HighestPoints+1:
			return nil, configError(examID, "divisions", "points %d-%d are not covered", prev.HighestPoints+1, band.LowestPoints-1)
		}
		if divisionRank[band.Division] <= divisionRank[prev.Division] {
			return nil, configError(examID, "divisions", "division %s follows %s in point order", band.Division, prev.Division)
		}
		if band.DivisionPoints <= prev.DivisionPoints {
			return nil, configError(examID, "divisions", "division %s must carry more division points than %s", band.Division, prev.Division)
		}
	}

	return &DivisionScale{examID: examID, bands: bands}, nil
}

// Division returns the band containing points.
func (s *DivisionScale) Division(points int) (models.ExamDivision, error) {
	idx := sort.Search(len(s.bands), func(i int) bool { return s.bands[i].HighestPoints >= points })
	if idx == len(s.bands) || s.bands[idx].LowestPoints > points {
		return models.ExamDivision{}, configError(s.examID, "divisions", "no band matches %d points", points)
	}
	return s.bands[idx], nil
}

// Covers reports whether every total in lo..hi falls inside a band.
func (s *DivisionScale) Covers(lo, hi int) bool {
	return s.bands[0].LowestPoints <= lo && s.bands[len(s.bands)-1].HighestPoints >= hi
}

// Bands returns the bands best first.
func (s *DivisionScale) Bands() []models.ExamDivision {
	out := make([]models.ExamDivision, len(s.bands))
	copy(out, s.bands)
	return out
}

// CompareDivisions orders division tags best first. Tags outside the banded
// divisions sort after 0, INC before ABS.
func CompareDivisions(a, b string) int {
	ra, rb := divisionOrder(a), divisionOrder(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

func divisionOrder(tag string) int {
	if r, ok := divisionRank[tag]; ok {
		return r
	}
	if tag == models.DivisionIncomplete {
		return len(divisionRank) + 1
	}
	return len(divisionRank) + 2
}
