// Package completion decides whether every scorer has answered for a comment.
package completion

import "github.com/okian/moderator/internal/domain/model"

// ScoresComplete reports whether every distinct scorer among requests has
// at least one finished request. Duplicate rows left behind by a redispatch
// do not block completion as long as one row of the group is done.
func ScoresComplete(requests []model.ScoreRequest) bool {
	if len(requests) == 0 {
		return false
	}

	satisfied := make(map[string]bool, len(requests))
	for _, r := range requests {
		if r.Done() {
			satisfied[r.ScorerID] = true
		} else if _, ok := satisfied[r.ScorerID]; !ok {
			satisfied[r.ScorerID] = false
		}
	}

	for _, done := range satisfied {
		if !done {
			return false
		}
	}
	return true
}

// Pending returns the scorer ids that still have no finished request.
func Pending(requests []model.ScoreRequest) []string {
	done := make(map[string]bool, len(requests))
	order := make([]string, 0, len(requests))
	for _, r := range requests {
		if _, ok := done[r.ScorerID]; !ok {
			order = append(order, r.ScorerID)
			done[r.ScorerID] = false
		}
		if r.Done() {
			done[r.ScorerID] = true
		}
	}

	var pending []string
	for _, id := range order {
		if !done[id] {
			pending = append(pending, id)
		}
	}
	return pending
}
