package model

import (
	"sort"
	"time"
)

// Action is what a moderation rule does when it matches.
type Action string

// Rule actions.
const (
	ActionAccept    Action = "Accept"
	ActionReject    Action = "Reject"
	ActionDefer     Action = "Defer"
	ActionHighlight Action = "Highlight"
)

// ModerationRule matches a tag score range and proposes an action.
type ModerationRule struct {
	ID             string
	TagID          string
	CategoryID     string // empty for global rules
	LowerThreshold float64
	UpperThreshold float64
	Action         Action
	CreatedAt      time.Time
}

// Global reports whether the rule applies regardless of category.
func (r ModerationRule) Global() bool {
	return r.CategoryID == ""
}

// DecisionStatus is the recorded outcome of a moderation decision.
type DecisionStatus string

// Decision statuses.
const (
	StatusAccept DecisionStatus = "Accept"
	StatusReject DecisionStatus = "Reject"
	StatusDefer  DecisionStatus = "Defer"
)

// SourceKind identifies who produced a decision.
type SourceKind string

// Source kinds.
const (
	SourceSystem SourceKind = "System"
	SourceUser   SourceKind = "User"
	SourceRule   SourceKind = "Rule"
)

// Source is the provenance of a state change: a user, a rule, or the
// system itself.
type Source struct {
	Kind SourceKind
	ID   string
}

// UserSource returns a source for a human moderator.
func UserSource(id string) Source { return Source{Kind: SourceUser, ID: id} }

// RuleSource returns a source for an automatic rule.
func RuleSource(id string) Source { return Source{Kind: SourceRule, ID: id} }

// SystemSource returns the source used when no user or rule is responsible.
func SystemSource() Source { return Source{Kind: SourceSystem} }

// Decision is an audit row of a moderation outcome.
type Decision struct {
	ID                string
	CommentID         string
	Status            DecisionStatus
	Source            Source
	IsCurrentDecision bool
	CreatedAt         time.Time
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
