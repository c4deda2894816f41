package regrade

import (
	"errors"
	"fmt"
)

// ErrInvalidScope is returned for a scope that cannot select attempts.
var ErrInvalidScope = errors.New("regrade: invalid scope")

// ScopeKind is the closed set of ways a batch selects its attempts.
type ScopeKind int

const (
	// ScopeAll selects every non-preview attempt of the quiz.
	ScopeAll ScopeKind = iota + 1
	// ScopeGroup selects attempts of users in a group or an explicit user list.
	ScopeGroup
	// ScopeExplicit selects attempts by id.
	ScopeExplicit
	// ScopeNeedingRegrade selects attempts with uncommitted deltas, limited to the pending slots.
	ScopeNeedingRegrade
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeAll:
		return "all"
	case ScopeGroup:
		return "group"
	case ScopeExplicit:
		return "explicit"
	case ScopeNeedingRegrade:
		return "needing_regrade"
	default:
		return fmt.Sprintf("ScopeKind(%d)", int(k))
	}
}

// Scope selects the attempts of one quiz a batch operates on. Build one with
// AllAttempts, GroupAttempts, UserAttempts, ExplicitAttempts or NeedingRegrade.
type Scope struct {
	kind       ScopeKind
	quizID     int64
	groupID    int64
	userIDs    []int64
	attemptIDs []int64
}

func AllAttempts(quizID int64) Scope {
	return Scope{kind: ScopeAll, quizID: quizID}
}

func GroupAttempts(quizID, groupID int64) Scope {
	return Scope{kind: ScopeGroup, quizID: quizID, groupID: groupID}
}

func UserAttempts(quizID int64, userIDs []int64) Scope {
	return Scope{kind: ScopeGroup, quizID: quizID, userIDs: userIDs}
}

func ExplicitAttempts(quizID int64, attemptIDs []int64) Scope {
	return Scope{kind: ScopeExplicit, quizID: quizID, attemptIDs: attemptIDs}
}

func NeedingRegrade(quizID int64) Scope {
	return Scope{kind: ScopeNeedingRegrade, quizID: quizID}
}

// InGroup restricts any scope to members of groupID. Zero leaves it unrestricted.
func (s Scope) InGroup(groupID int64) Scope {
	s.groupID = groupID
	return s
}

func (s Scope) Kind() ScopeKind     { return s.kind }
func (s Scope) QuizID() int64       { return s.quizID }
func (s Scope) GroupID() int64      { return s.groupID }
func (s Scope) UserIDs() []int64    { return s.userIDs }
func (s Scope) AttemptIDs() []int64 { return s.attemptIDs }

// Validate checks that the scope is one of the constructed variants.
func (s Scope) Validate() error {
	if s.quizID <= 0 {
		return fmt.Errorf("%w: quiz id required", ErrInvalidScope)
	}
	switch s.kind {
	case ScopeAll, ScopeNeedingRegrade:
		return nil
	case ScopeGroup:
		if s.groupID <= 0 && len(s.userIDs) == 0 {
			return fmt.Errorf("%w: group scope needs a group or users", ErrInvalidScope)
		}
		return nil
	case ScopeExplicit:
		if len(s.attemptIDs) == 0 {
			return fmt.Errorf("%w: explicit scope needs attempt ids", ErrInvalidScope)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidScope, s.kind)
	}
}

func (s Scope) String() string {
	out := fmt.Sprintf("%s(quiz=%d", s.kind, s.quizID)
	if s.groupID > 0 {
		out += fmt.Sprintf(" group=%d", s.groupID)
	}
	if len(s.userIDs) > 0 {
		out += fmt.Sprintf(" users=%d", len(s.userIDs))
	}
	if len(s.attemptIDs) > 0 {
		out += fmt.Sprintf(" attempts=%d", len(s.attemptIDs))
	}
	return out + ")"
}
