package grading

import (
	"sort"

	"github.com/noah-isme/exam-results-api/internal/models"
)

// Keys are the sort keys an entity can be ranked by. A nil key is undefined.
type Keys struct {
	Average *float64
	GPA     *float64
	Total   *float64
}

// Entry is one rankable entity.
type Entry struct {
	ID   string
	Keys Keys
}

// Position is an entity's standing within one ranked population. Unranked
// entities have Rank and Total 0.
type Position struct {
	ID    string
	Rank  int
	Total int
}

type sortKey struct {
	get        func(Keys) *float64
	descending bool
}

var (
	byAverage = sortKey{get: func(k Keys) *float64 { return k.Average }, descending: true}
	byGPA     = sortKey{get: func(k Keys) *float64 { return k.GPA }}
	byTotal   = sortKey{get: func(k Keys) *float64 { return k.Total }, descending: true}
)

func styleKeys(style models.RankingStyle) []sortKey {
	switch style {
	case models.RankingGPAThenAverage:
		return []sortKey{byGPA, byAverage}
	case models.RankingAverageThenGPA:
		return []sortKey{byAverage, byGPA}
	case models.RankingTotalOnly:
		return []sortKey{byTotal}
	case models.RankingTotalThenAverage:
		return []sortKey{byTotal, byAverage}
	default:
		return []sortKey{byAverage}
	}
}

// Compare orders two key sets under a ranking style: negative when a ranks
// ahead of b, zero when they tie. Undefined keys rank behind defined ones.
func Compare(style models.RankingStyle, a, b Keys) int {
	for _, key := range styleKeys(style) {
		if c := compareKey(key, a, b); c != 0 {
			return c
		}
	}
	return 0
}

func compareKey(key sortKey, a, b Keys) int {
	va, vb := key.get(a), key.get(b)
	switch {
	case va == nil && vb == nil:
		return 0
	case va == nil:
		return 1
	case vb == nil:
		return -1
	}

	c := 0
	switch {
	case *va < *vb:
		c = -1
	case *va > *vb:
		c = 1
	}
	if key.descending {
		c = -c
	}
	return c
}

// Rankable reports whether the entity's primary sort key is defined.
func Rankable(style models.RankingStyle, keys Keys) bool {
	return styleKeys(style)[0].get(keys) != nil
}

// Rank assigns standard competition positions: tied entities share a position
// and the next distinct entity is placed after the whole tie group. Entities
// whose primary key is undefined are left unranked and excluded from the
// total. The result is in rank order, ties and unranked entities by ID.
func Rank(style models.RankingStyle, entries []Entry) []Position {
	ranked := make([]Entry, 0, len(entries))
	unranked := make([]Entry, 0)
	for _, entry := range entries {
		if Rankable(style, entry.Keys) {
			ranked = append(ranked, entry)
		} else {
			unranked = append(unranked, entry)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if c := Compare(style, ranked[i].Keys, ranked[j].Keys); c != 0 {
			return c < 0
		}
		return ranked[i].ID < ranked[j].ID
	})
	sort.SliceStable(unranked, func(i, j int) bool { return unranked[i].ID < unranked[j].ID })

	out := make([]Position, 0, len(entries))
	total := len(ranked)
	position := 0
	for i, entry := range ranked {
		if i == 0 || Compare(style, ranked[i-1].Keys, entry.Keys) != 0 {
			position = i + 1
		}
		out = append(out, Position{ID: entry.ID, Rank: position, Total: total})
	}
	for _, entry := range unranked {
		out = append(out, Position{ID: entry.ID})
	}
	return out
}

// ScopedEntry is an entity together with the id of each scope it belongs to.
type ScopedEntry struct {
	Entry
	Scopes map[models.RankScope]string
}

// ScopedPosition is a Position tagged with the scope it was computed in.
type ScopedPosition struct {
	Scope   models.RankScope
	ScopeID string
	Position
}

// RankScopes ranks every requested scope independently: each entity is only
// compared with the entities sharing its scope id. Entities without an id for
// a scope get no position in it.
func RankScopes(style models.RankingStyle, entries []ScopedEntry, scopes []models.RankScope) []ScopedPosition {
	var out []ScopedPosition
	for _, scope := range scopes {
		groups := make(map[string][]Entry)
		var order []string
		for _, entry := range entries {
			id, ok := entry.Scopes[scope]
			if !ok || id == "" {
				continue
			}
			if _, exists := groups[id]; !exists {
				order = append(order, id)
			}
			groups[id] = append(groups[id], entry.Entry)
		}
		sort.Strings(order)

		for _, id := range order {
			for _, pos := range Rank(style, groups[id]) {
				out = append(out, ScopedPosition{Scope: scope, ScopeID: id, Position: pos})
			}
		}
	}
	return out
}

// StudentKeys returns the ranking keys of a scored student.
func StudentKeys(r StudentResult) Keys {
	return Keys{Average: r.Average, GPA: r.GPA(), Total: r.Total}
}
