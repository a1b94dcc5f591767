package service

import (
	"context"
	"fmt"
	"time"

	"workbridge/internal/apperrors"
	"workbridge/internal/db"
	"workbridge/internal/model"
	"workbridge/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreateProposalInput carries a new bid on a task.
type CreateProposalInput struct {
	TaskID           string
	FromUser         string
	Message          string
	Attachments      []model.Attachment
	ProposedBudget   *float64
	ProposedDuration string
}

type ProposalService interface {
	Create(ctx context.Context, in CreateProposalInput) (*model.Proposal, error)
	Accept(ctx context.Context, proposalID, callerID string) (*model.Proposal, error)
	Reject(ctx context.Context, proposalID, callerID string) error
	Withdraw(ctx context.Context, proposalID, callerID string) error
	Resubmit(ctx context.Context, proposalID, callerID, message string, budget *float64, duration string) (*model.Proposal, error)
	ListForTask(ctx context.Context, taskID, callerID string) ([]model.Proposal, error)
	ListMine(ctx context.Context, callerID string, page int64) (*db.PaginatedResult[model.Proposal], error)
}

type proposalService struct {
	proposals repo.ProposalRepository
	tasks     repo.TaskRepository
	txn       db.TxnRunner
	notifier  Notifier
	logger    *zap.Logger
}

func NewProposalService(
	proposals repo.ProposalRepository,
	tasks repo.TaskRepository,
	txn db.TxnRunner,
	notifier Notifier,
	logger *zap.Logger,
) ProposalService {
	return &proposalService{
		proposals: proposals,
		tasks:     tasks,
		txn:       txn,
		notifier:  notifier,
		logger:    logger,
	}
}

func (s *proposalService) Create(ctx context.Context, in CreateProposalInput) (*model.Proposal, error) {
	if in.Message == "" {
		return nil, fmt.Errorf("%w: proposal message is required", apperrors.ErrValidation)
	}
	for _, a := range in.Attachments {
		if !model.ValidAttachmentType(a.Type) {
			return nil, fmt.Errorf("%w: unknown attachment type %q", apperrors.ErrValidation, a.Type)
		}
	}

	task, err := s.tasks.GetByID(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task", apperrors.ErrNotFound)
	}
	if task.OwnerID == in.FromUser {
		return nil, fmt.Errorf("%w: cannot propose on your own task", apperrors.ErrValidation)
	}
	if task.Status != model.TaskStatusPublished {
		return nil, fmt.Errorf("%w: task is not open for proposals", apperrors.ErrValidation)
	}

	// One row per (task, fromUser): a terminal row is reopened in place,
	// a live one is a duplicate.
	existing, err := s.proposals.FindByTaskAndUser(ctx, in.TaskID, in.FromUser)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !model.Resubmittable(existing.Status) {
			return nil, fmt.Errorf("%w: you already have a proposal on this task", apperrors.ErrDuplicateEntry)
		}
		return s.resubmitRow(ctx, existing, task, in.Message, in.ProposedBudget, in.ProposedDuration)
	}

	now := time.Now().UTC()
	p := &model.Proposal{
		TaskID:           task.ID,
		FromUser:         in.FromUser,
		ToUser:           task.OwnerID,
		Message:          in.Message,
		Attachments:      in.Attachments,
		ProposedBudget:   in.ProposedBudget,
		ProposedDuration: in.ProposedDuration,
		Status:           model.ProposalStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	insertedID, err := s.proposals.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	if oid, err := primitive.ObjectIDFromHex(insertedID); err == nil {
		p.ID = oid
	}

	s.notifier.Dispatch(NotifyRequest{
		TargetID:  task.OwnerID,
		Category:  model.NotificationProposal,
		Title:     "New proposal received",
		Message:   "You received a new proposal on \"" + task.Title + "\"",
		Link:      "/tasks/" + in.TaskID + "/proposals",
		ActorID:   in.FromUser,
		SendEmail: true,
	})
	return p, nil
}

// Accept runs the one multi-document mutation in the system. All five
// steps commit atomically or not at all; the losing side of a concurrent
// accept gets a named conflict, never partial state.
func (s *proposalService) Accept(ctx context.Context, proposalID, callerID string) (*model.Proposal, error) {
	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: proposal", apperrors.ErrNotFound)
	}

	task, err := s.tasks.GetByID(ctx, p.TaskID.Hex())
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task", apperrors.ErrNotFound)
	}
	if task.OwnerID != callerID {
		return nil, fmt.Errorf("%w: only the task owner may accept a proposal", apperrors.ErrForbidden)
	}

	// Candidates for the not-selected notification, read before the
	// transaction so the fan-out can run after commit.
	others := s.pendingRivals(ctx, p)

	err = s.txn.WithTransaction(ctx, func(txCtx context.Context) error {
		taken, err := s.proposals.ExistsAccepted(txCtx, p.TaskID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.ErrAlreadyAccepted
		}

		// Still-pending check and flip in one conditional write.
		ok, err := s.proposals.SetStatusIf(txCtx, p.ID, model.ProposalStatusPending, model.ProposalStatusAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrAlreadyProcessed
		}

		if err := s.tasks.AssignProvider(txCtx, p.TaskID, p.FromUser); err != nil {
			return err
		}

		if _, err := s.proposals.MarkOthersNotSelected(txCtx, p.TaskID, p.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return nil, err
		}
		s.logger.Error("accept transaction failed",
			zap.String("proposal_id", proposalID),
			zap.String("task_id", p.TaskID.Hex()),
			zap.Error(err),
		)
		return nil, err
	}

	p.Status = model.ProposalStatusAccepted

	reqs := []NotifyRequest{{
		TargetID:  p.FromUser,
		Category:  model.NotificationProposal,
		Title:     "Proposal accepted",
		Message:   "Your proposal on \"" + task.Title + "\" was accepted",
		Link:      "/tasks/" + p.TaskID.Hex(),
		SendEmail: true,
	}}
	for _, rival := range others {
		reqs = append(reqs, NotifyRequest{
			TargetID:  rival,
			Category:  model.NotificationProposal,
			Title:     "Proposal not selected",
			Message:   "Another proposal was chosen for \"" + task.Title + "\"",
			Link:      "/tasks/" + p.TaskID.Hex(),
			SendEmail: true,
		})
	}
	s.notifier.DispatchAll(reqs)

	return p, nil
}

func (s *proposalService) pendingRivals(ctx context.Context, p *model.Proposal) []string {
	all, err := s.proposals.ListForTask(ctx, p.TaskID.Hex())
	if err != nil {
		s.logger.Warn("failed to list rival proposals", zap.Error(err))
		return nil
	}
	var rivals []string
	for _, other := range all {
		if other.ID != p.ID && other.Status == model.ProposalStatusPending {
			rivals = append(rivals, other.FromUser)
		}
	}
	return rivals
}

// ownerProposal loads a proposal and enforces that the caller owns the
// task it targets. Strangers get NotFound rather than Forbidden.
func (s *proposalService) ownerProposal(ctx context.Context, proposalID, callerID string) (*model.Proposal, error) {
	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: proposal", apperrors.ErrNotFound)
	}
	if p.ToUser != callerID {
		if p.FromUser == callerID {
			return nil, fmt.Errorf("%w: only the task owner may do this", apperrors.ErrForbidden)
		}
		return nil, fmt.Errorf("%w: proposal", apperrors.ErrNotFound)
	}
	return p, nil
}

func (s *proposalService) Reject(ctx context.Context, proposalID, callerID string) error {
	p, err := s.ownerProposal(ctx, proposalID, callerID)
	if err != nil {
		return err
	}

	// Single-document write; no cross-document invariant, no transaction.
	ok, err := s.proposals.SetStatusIf(ctx, p.ID, model.ProposalStatusPending, model.ProposalStatusRejected)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrAlreadyProcessed
	}

	s.notifier.Dispatch(NotifyRequest{
		TargetID:  p.FromUser,
		Category:  model.NotificationProposal,
		Title:     "Proposal declined",
		Message:   "Your proposal was declined",
		Link:      "/tasks/" + p.TaskID.Hex(),
		SendEmail: true,
	})
	return nil
}

func (s *proposalService) Withdraw(ctx context.Context, proposalID, callerID string) error {
	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return err
	}
	if p == nil || p.FromUser != callerID {
		return fmt.Errorf("%w: proposal", apperrors.ErrNotFound)
	}

	ok, err := s.proposals.SetStatusIf(ctx, p.ID, model.ProposalStatusPending, model.ProposalStatusWithdrawn)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrAlreadyProcessed
	}
	return nil
}

func (s *proposalService) Resubmit(ctx context.Context, proposalID, callerID, message string, budget *float64, duration string) (*model.Proposal, error) {
	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.FromUser != callerID {
		return nil, fmt.Errorf("%w: proposal", apperrors.ErrNotFound)
	}
	if !model.Resubmittable(p.Status) {
		return nil, fmt.Errorf("%w: proposal cannot be resubmitted", apperrors.ErrConflict)
	}

	task, err := s.tasks.GetByID(ctx, p.TaskID.Hex())
	if err != nil {
		return nil, err
	}
	if task == nil || task.Status != model.TaskStatusPublished {
		return nil, fmt.Errorf("%w: task is not open for proposals", apperrors.ErrValidation)
	}

	return s.resubmitRow(ctx, p, task, message, budget, duration)
}

// resubmitRow flips an existing terminal row back to pending, keeping the
// (task, fromUser) row count at one.
func (s *proposalService) resubmitRow(ctx context.Context, p *model.Proposal, task *model.Task, message string, budget *float64, duration string) (*model.Proposal, error) {
	ok, err := s.proposals.Resubmit(ctx, p.ID, message, budget, duration)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: proposal cannot be resubmitted", apperrors.ErrConflict)
	}

	updated, err := s.proposals.GetByID(ctx, p.ID.Hex())
	if err != nil || updated == nil {
		return nil, fmt.Errorf("failed to reload resubmitted proposal: %w", err)
	}

	s.notifier.Dispatch(NotifyRequest{
		TargetID:  task.OwnerID,
		Category:  model.NotificationProposal,
		Title:     "Proposal resubmitted",
		Message:   "A proposal on \"" + task.Title + "\" was resubmitted",
		Link:      "/tasks/" + p.TaskID.Hex() + "/proposals",
		ActorID:   p.FromUser,
		SendEmail: true,
	})
	return updated, nil
}

func (s *proposalService) ListForTask(ctx context.Context, taskID, callerID string) ([]model.Proposal, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task", apperrors.ErrNotFound)
	}

	all, err := s.proposals.ListForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.OwnerID == callerID {
		return all, nil
	}

	// Non-owners only see their own bid.
	var mine []model.Proposal
	for _, p := range all {
		if p.FromUser == callerID {
			mine = append(mine, p)
		}
	}
	return mine, nil
}

func (s *proposalService) ListMine(ctx context.Context, callerID string, page int64) (*db.PaginatedResult[model.Proposal], error) {
	return s.proposals.ListByUser(ctx, callerID, page)
}
