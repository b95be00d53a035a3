// Package matching pairs local roster entries with platform roster entries by name.
package matching

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultThreshold is the score an automatic match must exceed.
const DefaultThreshold = 0.8

// ExternalStudent is one platform roster entry.
type ExternalStudent struct {
	ID         string `json:"id"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
}

// LocalStudent is one local roster entry; Name is "Last, First".
type LocalStudent struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Match pairs a local student with a platform user.
type Match struct {
	StudentID     int64   `json:"student_id"`
	ExternalID    string  `json:"external_id"`
	ExternalEmail string  `json:"external_email"`
	ExternalName  string  `json:"external_name"`
	Score         float64 `json:"score"`
	Manual        bool    `json:"manual"`
}

// Candidate is a partial-credit suggestion offered for manual resolution.
type Candidate struct {
	ExternalID   string  `json:"external_id"`
	ExternalName string  `json:"external_name"`
	Score        float64 `json:"score"`
}

// Unresolved is a local student that needs manual matching.
type Unresolved struct {
	Student    LocalStudent `json:"student"`
	Candidates []Candidate  `json:"candidates,omitempty"`
}

// Result is the outcome of one matching run.
type Result struct {
	Matches           []Match           `json:"matches"`
	Unmatched         []Unresolved      `json:"unmatched"`
	UnclaimedExternal []ExternalStudent `json:"unclaimed_external"`
}

type name struct {
	first string
	last  string
}

// Normalize lower-cases s, drops punctuation and symbols and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SplitLocalName splits "Last, First" on the first comma. Names without a
// comma are read as "First Last".
func SplitLocalName(raw string) (first, last string) {
	if before, after, found := strings.Cut(raw, ","); found {
		return Normalize(after), Normalize(before)
	}
	fields := strings.Fields(Normalize(raw))
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return "", fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
}

func localName(s LocalStudent) name {
	first, last := SplitLocalName(s.Name)
	return name{first: first, last: last}
}

func externalName(s ExternalStudent) name {
	n := name{first: Normalize(s.GivenName), last: Normalize(s.FamilyName)}
	if n.first == "" && n.last == "" && s.FullName != "" {
		fields := strings.Fields(Normalize(s.FullName))
		if len(fields) > 0 {
			n.last = fields[len(fields)-1]
			n.first = strings.Join(fields[:len(fields)-1], " ")
		}
	}
	return n
}

// DisplayName is the platform name shown to teachers.
func (s ExternalStudent) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	return strings.TrimSpace(s.GivenName + " " + s.FamilyName)
}

// Score rates how well a local student matches a platform user: 1.0 for an
// exact first and last name match, otherwise 0.5 for each of first and last
// name where one side contains the other.
func Score(local LocalStudent, external ExternalStudent) float64 {
	return score(localName(local), externalName(external))
}

func score(l, e name) float64 {
	if l.first != "" && l.last != "" && l.first == e.first && l.last == e.last {
		return 1.0
	}
	var s float64
	if overlaps(l.first, e.first) {
		s += 0.5
	}
	if overlaps(l.last, e.last) {
		s += 0.5
	}
	return s
}

func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// MatchRoster auto-matches every local student whose best platform candidate scores
// above threshold. Locals are visited in id order and candidates in external id
// order, so equal scores resolve to the lowest external id and the result does
// not depend on input order. A platform user is claimed at most once.
func MatchRoster(locals []LocalStudent, externals []ExternalStudent, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	ls := append([]LocalStudent(nil), locals...)
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].ID < ls[j].ID })
	es := append([]ExternalStudent(nil), externals...)
	sort.SliceStable(es, func(i, j int) bool { return es[i].ID < es[j].ID })

	names := make([]name, len(es))
	for i, e := range es {
		names[i] = externalName(e)
	}

	claimed := make(map[string]bool, len(es))
	result := Result{Matches: []Match{}, Unmatched: []Unresolved{}, UnclaimedExternal: []ExternalStudent{}}

	for _, local := range ls {
		ln := localName(local)
		best, bestScore := -1, 0.0
		var candidates []Candidate
		for i, e := range es {
			if claimed[e.ID] {
				continue
			}
			s := score(ln, names[i])
			if s == 0 {
				continue
			}
			if s > threshold && s > bestScore {
				best, bestScore = i, s
			}
			candidates = append(candidates, Candidate{ExternalID: e.ID, ExternalName: e.DisplayName(), Score: s})
		}

		if best < 0 {
			sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
			result.Unmatched = append(result.Unmatched, Unresolved{Student: local, Candidates: candidates})
			continue
		}

		e := es[best]
		claimed[e.ID] = true
		result.Matches = append(result.Matches, Match{
			StudentID:     local.ID,
			ExternalID:    e.ID,
			ExternalEmail: e.Email,
			ExternalName:  e.DisplayName(),
			Score:         bestScore,
		})
	}

	for _, e := range es {
		if !claimed[e.ID] {
			result.UnclaimedExternal = append(result.UnclaimedExternal, e)
		}
	}
	return result
}

// Manual records a teacher-chosen pairing.
func Manual(local LocalStudent, external ExternalStudent) Match {
	return Match{
		StudentID:     local.ID,
		ExternalID:    external.ID,
		ExternalEmail: external.Email,
		ExternalName:  external.DisplayName(),
		Score:         Score(local, external),
		Manual:        true,
	}
}
