package grading

import (
	"sort"

	"github.com/noah-isme/exam-results-api/internal/models"
)

// Summary is the roll-up of a school or of any location above it. Means are
// population means over students, kept as sums so that Merge is associative.
type Summary struct {
	TotalSchools    int
	TotalStudents   int
	RankedStudents  int
	AverageSum      float64
	TotalSum        float64
	GPASum          float64
	GPACount        int
	DivisionSummary map[string]int
	GradesSummary   map[string]int
	Subjects        map[string]SubjectAggregate

	Average *float64
	GPA     *float64
	Total   *float64
}

// NewSummary returns an empty summary.
func NewSummary() Summary {
	return Summary{
		DivisionSummary: map[string]int{},
		GradesSummary:   map[string]int{},
		Subjects:        map[string]SubjectAggregate{},
	}
}

// SchoolSummary aggregates one school's scored students.
func SchoolSummary(cfg *ExamConfig, results []StudentResult, includeAbsent bool) Summary {
	s := NewSummary()
	s.TotalSchools = 1
	s.TotalStudents = len(results)

	for _, r := range results {
		if r.Average != nil {
			s.RankedStudents++
			s.AverageSum += *r.Average
			s.TotalSum += *r.Total
		}
		if gpa := r.GPA(); gpa != nil {
			s.GPASum += *gpa
			s.GPACount++
		}
		if division := r.Division(); division != "" {
			s.DivisionSummary[division]++
		}
		if grade := r.OverallGrade(); grade != "" {
			s.GradesSummary[grade]++
		}
	}

	for _, code := range cfg.SubjectCodes() {
		s.Subjects[code] = AggregateSubject(cfg, code, results, includeAbsent)
	}

	s.finalize()
	return s
}

// Merge adds b into s.
func (s *Summary) Merge(b Summary) {
	s.TotalSchools += b.TotalSchools
	s.TotalStudents += b.TotalStudents
	s.RankedStudents += b.RankedStudents
	s.AverageSum += b.AverageSum
	s.TotalSum += b.TotalSum
	s.GPASum += b.GPASum
	s.GPACount += b.GPACount
	for k, n := range b.DivisionSummary {
		s.DivisionSummary[k] += n
	}
	for k, n := range b.GradesSummary {
		s.GradesSummary[k] += n
	}
	for code, agg := range b.Subjects {
		existing, ok := s.Subjects[code]
		if !ok {
			s.Subjects[code] = agg.clone()
			continue
		}
		existing.Merge(agg)
		s.Subjects[code] = existing
	}
	s.finalize()
}

// RollUp merges summaries into a new one without modifying them.
func RollUp(parts ...Summary) Summary {
	out := NewSummary()
	for _, part := range parts {
		out.Merge(part)
	}
	return out
}

func (s *Summary) finalize() {
	s.Average, s.GPA, s.Total = nil, nil, nil
	if s.RankedStudents > 0 {
		avg := round4(s.AverageSum / float64(s.RankedStudents))
		total := round4(s.TotalSum / float64(s.RankedStudents))
		s.Average = &avg
		s.Total = &total
	}
	if s.GPACount > 0 {
		gpa := round4(s.GPASum / float64(s.GPACount))
		s.GPA = &gpa
	}
}

// Keys returns the ranking keys of the summarised population.
func (s Summary) Keys() Keys {
	return Keys{Average: s.Average, GPA: s.GPA, Total: s.Total}
}

// SubjectKeys returns the ranking keys of one subject within the population.
func (s Summary) SubjectKeys(code string) Keys {
	agg, ok := s.Subjects[code]
	if !ok || agg.StudentCount == 0 {
		return Keys{}
	}
	avg := agg.Average
	return Keys{Average: &avg, GPA: agg.GPA}
}

// Node is one location in the national hierarchy.
type Node struct {
	Type     models.LocationType
	ID       string
	Name     string
	ParentID string
	Summary  Summary
	Children []*Node
}

// SchoolSummaryRef pairs a school with its summary.
type SchoolSummaryRef struct {
	School  models.School
	Summary Summary
}

// BuildHierarchy rolls school summaries up into wards, councils, regions and
// the national node. Children are ordered by name, then id.
func BuildHierarchy(schools []SchoolSummaryRef) *Node {
	national := &Node{Type: models.LocationNational, ID: models.NationalID, Name: "National", Summary: NewSummary()}
	regions := map[string]*Node{}
	councils := map[string]*Node{}
	wards := map[string]*Node{}

	child := func(index map[string]*Node, parent *Node, typ models.LocationType, id, name string) *Node {
		if node, ok := index[id]; ok {
			return node
		}
		node := &Node{Type: typ, ID: id, Name: name, ParentID: parent.ID, Summary: NewSummary()}
		index[id] = node
		parent.Children = append(parent.Children, node)
		return node
	}

	for _, ref := range schools {
		region := child(regions, national, models.LocationRegion, ref.School.RegionID, ref.School.RegionName)
		council := child(councils, region, models.LocationCouncil, ref.School.CouncilID, ref.School.CouncilName)
		ward := child(wards, council, models.LocationWard, ref.School.WardID, ref.School.WardName)
		ward.Children = append(ward.Children, &Node{
			Type:     models.LocationSchool,
			ID:       ref.School.ID,
			Name:     ref.School.Name,
			ParentID: ward.ID,
			Summary:  RollUp(ref.Summary),
		})
	}

	rollUpNode(national)
	return national
}

func rollUpNode(node *Node) {
	sort.Slice(node.Children, func(i, j int) bool {
		if node.Children[i].Name != node.Children[j].Name {
			return node.Children[i].Name < node.Children[j].Name
		}
		return node.Children[i].ID < node.Children[j].ID
	})
	if node.Type == models.LocationSchool {
		return
	}
	for _, c := range node.Children {
		rollUpNode(c)
		node.Summary.Merge(c.Summary)
	}
}

// Walk visits node and its descendants depth first, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
