// Package state defines the moderation state bundles a comment moves
// between and how they are merged onto a comment.
//
// States: Unmoderated -> {Accepted, Rejected, Deferred}. Highlighting is an
// orthogonal flag that is only set while a comment is accepted. Reset returns
// a comment to the unmoderated defaults.
package state

import "github.com/okian/moderator/internal/domain/model"

// Acceptance is the tri-state value a bundle assigns to isAccepted.
type Acceptance int

// Acceptance values. AcceptanceUnchanged leaves the field alone.
const (
	AcceptanceUnchanged Acceptance = iota
	AcceptancePending
	AcceptanceAccepted
	AcceptanceRejected
)

// Bundle is a partial assignment of moderation flags. Nil fields are not
// part of the bundle.
type Bundle struct {
	IsModerated     *bool
	IsAccepted      Acceptance
	IsDeferred      *bool
	IsHighlighted   *bool
	IsAutoResolved  *bool
	IsBatchResolved *bool
}

func flag(v bool) *bool { return &v }

// Accept marks a comment accepted.
func Accept() Bundle {
	return Bundle{
		IsModerated: flag(true),
		IsAccepted:  AcceptanceAccepted,
		IsDeferred:  flag(false),
	}
}

// Reject marks a comment rejected and clears highlighting.
func Reject() Bundle {
	return Bundle{
		IsModerated:   flag(true),
		IsAccepted:    AcceptanceRejected,
		IsDeferred:    flag(false),
		IsHighlighted: flag(false),
	}
}

// Defer parks a comment for later review.
func Defer() Bundle {
	return Bundle{
		IsModerated:   flag(true),
		IsAccepted:    AcceptancePending,
		IsDeferred:    flag(true),
		IsHighlighted: flag(false),
	}
}

// Highlight accepts a comment and highlights it.
func Highlight() Bundle {
	return Bundle{
		IsModerated:   flag(true),
		IsAccepted:    AcceptanceAccepted,
		IsDeferred:    flag(false),
		IsHighlighted: flag(true),
	}
}

// Reset returns a comment to the unmoderated defaults.
func Reset() Bundle {
	return Bundle{
		IsModerated:     flag(false),
		IsAccepted:      AcceptancePending,
		IsDeferred:      flag(false),
		IsHighlighted:   flag(false),
		IsAutoResolved:  flag(false),
		IsBatchResolved: flag(false),
	}
}

// AutoResolved is the extra bundle applied by rule decisions.
func AutoResolved(highlighted bool) Bundle {
	b := Bundle{IsAutoResolved: flag(true)}
	if highlighted {
		b.IsHighlighted = flag(true)
	}
	return b
}

// Merge combines bundle with extra. Fields set in bundle win; extra only
// fills the fields bundle leaves out.
func Merge(bundle, extra Bundle) Bundle {
	out := bundle
	if out.IsModerated == nil {
		out.IsModerated = extra.IsModerated
	}
	if out.IsAccepted == AcceptanceUnchanged {
		out.IsAccepted = extra.IsAccepted
	}
	if out.IsDeferred == nil {
		out.IsDeferred = extra.IsDeferred
	}
	if out.IsHighlighted == nil {
		out.IsHighlighted = extra.IsHighlighted
	}
	if out.IsAutoResolved == nil {
		out.IsAutoResolved = extra.IsAutoResolved
	}
	if out.IsBatchResolved == nil {
		out.IsBatchResolved = extra.IsBatchResolved
	}
	return out
}

// Apply writes the bundle onto a copy of c and returns it.
func Apply(c model.Comment, b Bundle) model.Comment {
	if b.IsModerated != nil {
		c.IsModerated = *b.IsModerated
	}
	switch b.IsAccepted {
	case AcceptancePending:
		c.IsAccepted = nil
	case AcceptanceAccepted:
		c.IsAccepted = flag(true)
	case AcceptanceRejected:
		c.IsAccepted = flag(false)
	case AcceptanceUnchanged:
	}
	if b.IsDeferred != nil {
		c.IsDeferred = *b.IsDeferred
	}
	if b.IsHighlighted != nil {
		c.IsHighlighted = *b.IsHighlighted
	}
	if b.IsAutoResolved != nil {
		c.IsAutoResolved = *b.IsAutoResolved
	}
	if b.IsBatchResolved != nil {
		c.IsBatchResolved = *b.IsBatchResolved
	}
	return c
}

// ForStatus returns the bundle that realizes a decision status.
func ForStatus(status model.DecisionStatus) (Bundle, bool) {
	switch status {
	case model.StatusAccept:
		return Accept(), true
	case model.StatusReject:
		return Reject(), true
	case model.StatusDefer:
		return Defer(), true
	default:
		return Bundle{}, false
	}
}
