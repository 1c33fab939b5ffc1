// Package policy holds the membership authorization rules for
// conversations. Decisions are pure functions of the inputs — no I/O —
// so the full rule table is unit-testable.
package policy

import (
	"teamhub-backend/internal/domain"
)

// Action is a policy-gated operation on a conversation
type Action string

const (
	ActionEditMeta          Action = "editMeta"
	ActionAddParticipant    Action = "addParticipant"
	ActionRemoveParticipant Action = "removeParticipant"
)

// Input captures everything a decision depends on. IsSelf is only
// meaningful for ActionRemoveParticipant (actor removing themselves).
type Input struct {
	Role             string
	IsCreator        bool
	IsProjectManager bool
	IsSelf           bool
	Kind             domain.ConversationKind
	Action           Action
}

// Allow decides whether the actor may perform the action.
//
//	kind     | editMeta                 | addParticipant           | removeParticipant
//	group    | creator or admin         | creator or admin         | creator or admin (or self)
//	project  | admin or project manager | admin or project manager | admin or project manager (or self)
//	direct   | not permitted            | not permitted            | not permitted
//
// Admin role is authorized for any action regardless of the table.
func Allow(in Input) bool {
	if in.Role == domain.RoleAdmin {
		return true
	}

	switch in.Kind {
	case domain.ConversationGroup:
		if in.Action == ActionRemoveParticipant && in.IsSelf {
			return true
		}
		return in.IsCreator
	case domain.ConversationProject:
		if in.Action == ActionRemoveParticipant && in.IsSelf {
			return true
		}
		return in.IsProjectManager
	case domain.ConversationDirect:
		return false
	}
	return false
}
