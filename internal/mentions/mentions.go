package mentions

import "regexp"

var tokenPattern = regexp.MustCompile(`@([A-Za-z0-9_-]+)`)

// Candidate is a course-roster entry eligible for mentioning.
type Candidate struct {
	ID       int
	Username string
}

// Resolve scans raw text left to right for @name tokens and resolves them
// against the course roster. Matching is case-sensitive and exact; tokens that
// match no known username are left as plain text and produce nothing. The
// result keeps first-occurrence order with duplicates removed. The text itself
// is never rewritten.
func Resolve(text string, candidates []Candidate) []int {
	if text == "" || len(candidates) == 0 {
		return nil
	}

	byName := make(map[string]int, len(candidates))
	for _, c := range candidates {
		byName[c.Username] = c.ID
	}

	var ids []int
	seen := make(map[int]struct{})
	for _, match := range tokenPattern.FindAllStringSubmatch(text, -1) {
		id, ok := byName[match[1]]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
