package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Proposal status values. Accepted and rejected are terminal; withdrawn,
// rejected and not-selected rows may be reopened by resubmission, which
// overwrites the same row back to pending instead of inserting a duplicate.
const (
	ProposalStatusPending     = "pending"
	ProposalStatusAccepted    = "accepted"
	ProposalStatusRejected    = "rejected"
	ProposalStatusWithdrawn   = "withdrawn"
	ProposalStatusNotSelected = "not-selected"
)

// Proposal is a provider's bid on a task. At most one proposal per task may
// ever hold status accepted, and at most one per (task, fromUser) pair may
// be in a non-terminal state.
type Proposal struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TaskID           primitive.ObjectID `json:"taskId" bson:"task_id"`
	FromUser         string             `json:"fromUser" bson:"from_user"`
	ToUser           string             `json:"toUser" bson:"to_user"`
	Message          string             `json:"message" bson:"message"`
	Attachments      []Attachment       `json:"attachments" bson:"attachments"`
	ProposedBudget   *float64           `json:"proposedBudget,omitempty" bson:"proposed_budget,omitempty"`
	ProposedDuration string             `json:"proposedDuration,omitempty" bson:"proposed_duration,omitempty"`
	Status           string             `json:"status" bson:"status"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updated_at"`
}

// Resubmittable reports whether a proposal in status s may be overwritten
// back to pending.
func Resubmittable(s string) bool {
	switch s {
	case ProposalStatusWithdrawn, ProposalStatusRejected, ProposalStatusNotSelected:
		return true
	}
	return false
}

// CanTransition reports whether a proposal may move from -> to. The accept
// transition additionally requires the cross-document exclusivity check that
// only the transactional accept path performs.
func CanTransition(from, to string) bool {
	switch to {
	case ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusWithdrawn, ProposalStatusNotSelected:
		return from == ProposalStatusPending
	case ProposalStatusPending:
		return Resubmittable(from)
	}
	return false
}
