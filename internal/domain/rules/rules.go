// Package rules resolves a comment's summary scores against moderation
// rules into an automatic decision.
package rules

import (
	"sort"
	"strings"

	"github.com/okian/moderator/internal/domain/model"
)

// Resolution is the outcome of rule resolution.
type Resolution struct {
	Status model.DecisionStatus
	// Rule is the applied rule. It is nil when the winning rules disagree.
	Rule *model.ModerationRule
	// Highlighted is set when any winning rule literally asked to highlight.
	Highlighted bool
	// Winning lists the rules of the tier that decided, in precedence order.
	Winning []model.ModerationRule
}

// Source returns the provenance to record for the resolution.
func (r Resolution) Source() model.Source {
	if r.Rule == nil {
		return model.SystemSource()
	}
	return model.RuleSource(r.Rule.ID)
}

// Input bundles what resolution needs to know about a comment.
type Input struct {
	// CategoryID is the category of the comment's article, empty if none.
	CategoryID    string
	SummaryScores []model.SummaryScore
	// SummaryTag is the SUMMARY_SCORE tag if it exists.
	SummaryTag      *model.Tag
	MaxSummaryScore *float64
	Rules           []model.ModerationRule
}

// Resolve runs threshold matching, tier precedence and consensus. It
// returns false when no rule matches.
func Resolve(in Input) (Resolution, bool) {
	scores := in.SummaryScores
	if in.SummaryTag != nil && in.MaxSummaryScore != nil {
		scores = append(append([]model.SummaryScore(nil), scores...), model.SummaryScore{
			TagID: in.SummaryTag.ID,
			Score: *in.MaxSummaryScore,
		})
	}

	matching := Match(in.Rules, Compile(scores))
	global, category := Partition(matching, in.CategoryID)
	winning := Winning(global, category)
	if len(winning) == 0 {
		return Resolution{}, false
	}
	return Consensus(winning), true
}

// Compile folds summary scores into the maximum score per tag.
func Compile(scores []model.SummaryScore) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for _, s := range scores {
		if cur, ok := out[s.TagID]; !ok || s.Score > cur {
			out[s.TagID] = s.Score
		}
	}
	return out
}

// Match returns the rules whose tag has a compiled score inside the rule's
// inclusive threshold range. Rules with an unknown action never match.
func Match(rules []model.ModerationRule, compiled map[string]float64) []model.ModerationRule {
	var out []model.ModerationRule
	for _, r := range rules {
		if _, ok := fold(r.Action); !ok {
			continue
		}
		score, ok := compiled[r.TagID]
		if !ok {
			continue
		}
		if score >= r.LowerThreshold && score <= r.UpperThreshold {
			out = append(out, r)
		}
	}
	return out
}

// Partition splits matching rules into global rules and rules scoped to
// categoryID. Rules scoped to other categories are dropped.
func Partition(matching []model.ModerationRule, categoryID string) (global, category []model.ModerationRule) {
	for _, r := range matching {
		switch {
		case r.Global():
			global = append(global, r)
		case categoryID != "" && r.CategoryID == categoryID:
			category = append(category, r)
		}
	}
	return global, category
}

// Winning applies tier precedence: category rules override global ones
// whenever any matched. The result is sorted by precedence, lowest first.
func Winning(global, category []model.ModerationRule) []model.ModerationRule {
	winning := global
	if len(category) > 0 {
		winning = category
	}
	out := append([]model.ModerationRule(nil), winning...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Consensus requires every winning rule to agree once highlight is folded
// into accept. Disagreement defers the comment with no applied rule.
// Otherwise the last rule in precedence order is the applied one.
func Consensus(winning []model.ModerationRule) Resolution {
	actions := make(map[string]struct{}, len(winning))
	highlighted := false
	for _, r := range winning {
		folded, _ := fold(r.Action)
		actions[folded] = struct{}{}
		if strings.EqualFold(string(r.Action), string(model.ActionHighlight)) {
			highlighted = true
		}
	}

	if len(actions) != 1 {
		return Resolution{Status: model.StatusDefer, Winning: winning}
	}

	applied := winning[len(winning)-1]
	var status model.DecisionStatus
	for a := range actions {
		status = statuses[a]
	}
	return Resolution{
		Status:      status,
		Rule:        &applied,
		Highlighted: highlighted,
		Winning:     winning,
	}
}

var statuses = map[string]model.DecisionStatus{
	"accept": model.StatusAccept,
	"reject": model.StatusReject,
	"defer":  model.StatusDefer,
}

func fold(a model.Action) (string, bool) {
	folded := strings.ToLower(string(a))
	if folded == "highlight" {
		folded = "accept"
	}
	_, ok := statuses[folded]
	return folded, ok
}
