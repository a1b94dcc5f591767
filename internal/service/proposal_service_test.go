package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"workbridge/internal/apperrors"
	"workbridge/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type proposalFixture struct {
	svc       ProposalService
	proposals *fakeProposalRepo
	tasks     *fakeTaskRepo
	notifier  *fakeNotifier
	task      *model.Task
}

func newProposalFixture(t *testing.T) *proposalFixture {
	t.Helper()
	f := &proposalFixture{
		proposals: newFakeProposalRepo(),
		tasks:     newFakeTaskRepo(),
		notifier:  &fakeNotifier{},
	}
	f.task = &model.Task{
		ID:      primitive.NewObjectID(),
		OwnerID: "owner",
		Title:   "Build a shed",
		Status:  model.TaskStatusPublished,
	}
	f.tasks.add(f.task)
	f.svc = NewProposalService(f.proposals, f.tasks, f.proposals, f.notifier, zap.NewNop())
	return f
}

func (f *proposalFixture) propose(t *testing.T, fromUser string) *model.Proposal {
	t.Helper()
	p, err := f.svc.Create(context.Background(), CreateProposalInput{
		TaskID:   f.task.ID.Hex(),
		FromUser: fromUser,
		Message:  "I can do this",
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", fromUser, err)
	}
	return p
}

func TestCreateProposal(t *testing.T) {
	f := newProposalFixture(t)

	p := f.propose(t, "provider1")
	if p.Status != model.ProposalStatusPending || p.ToUser != "owner" {
		t.Errorf("unexpected proposal %+v", p)
	}

	reqs := f.notifier.requests()
	if len(reqs) != 1 || reqs[0].TargetID != "owner" || reqs[0].Category != model.NotificationProposal {
		t.Errorf("owner not notified: %+v", reqs)
	}
}

func TestCreateProposalValidation(t *testing.T) {
	f := newProposalFixture(t)

	_, err := f.svc.Create(context.Background(), CreateProposalInput{
		TaskID: f.task.ID.Hex(), FromUser: "provider1",
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("empty message: got %v, want validation error", err)
	}

	_, err = f.svc.Create(context.Background(), CreateProposalInput{
		TaskID: f.task.ID.Hex(), FromUser: "owner", Message: "me myself",
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("owner proposing: got %v, want validation error", err)
	}

	f.task.Status = model.TaskStatusCompleted
	_, err = f.svc.Create(context.Background(), CreateProposalInput{
		TaskID: f.task.ID.Hex(), FromUser: "provider1", Message: "too late",
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("closed task: got %v, want validation error", err)
	}
}

func TestCreateProposalDuplicateLiveRow(t *testing.T) {
	f := newProposalFixture(t)
	f.propose(t, "provider1")

	_, err := f.svc.Create(context.Background(), CreateProposalInput{
		TaskID: f.task.ID.Hex(), FromUser: "provider1", Message: "again",
	})
	if !errors.Is(err, apperrors.ErrDuplicateEntry) {
		t.Errorf("duplicate pending: got %v, want duplicate entry", err)
	}
	if f.proposals.count() != 1 {
		t.Errorf("proposal rows = %d, want 1", f.proposals.count())
	}
}

func TestCreateAfterWithdrawReopensSameRow(t *testing.T) {
	f := newProposalFixture(t)
	p := f.propose(t, "provider1")

	if err := f.svc.Withdraw(context.Background(), p.ID.Hex(), "provider1"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	reopened, err := f.svc.Create(context.Background(), CreateProposalInput{
		TaskID: f.task.ID.Hex(), FromUser: "provider1", Message: "second try",
	})
	if err != nil {
		t.Fatalf("Create after withdraw: %v", err)
	}
	if reopened.ID != p.ID {
		t.Error("resubmission must reuse the existing row")
	}
	if reopened.Status != model.ProposalStatusPending || reopened.Message != "second try" {
		t.Errorf("reopened row not refreshed: %+v", reopened)
	}
	if f.proposals.count() != 1 {
		t.Errorf("proposal rows = %d, want 1", f.proposals.count())
	}
}

func TestAcceptProposal(t *testing.T) {
	f := newProposalFixture(t)
	winner := f.propose(t, "provider1")
	rival := f.propose(t, "provider2")

	accepted, err := f.svc.Accept(context.Background(), winner.ID.Hex(), "owner")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != model.ProposalStatusAccepted {
		t.Errorf("status = %q, want accepted", accepted.Status)
	}

	task, _ := f.tasks.GetByID(context.Background(), f.task.ID.Hex())
	if task.Status != model.TaskStatusInProgress {
		t.Errorf("task status = %q, want in-progress", task.Status)
	}
	if len(task.AssignedTo) != 1 || task.AssignedTo[0] != "provider1" {
		t.Errorf("assigned = %v, want [provider1]", task.AssignedTo)
	}

	if got := f.proposals.statusOf(rival.ID); got != model.ProposalStatusNotSelected {
		t.Errorf("rival status = %q, want not-selected", got)
	}

	var winnerNotified, rivalNotified bool
	for _, req := range f.notifier.requests() {
		if req.TargetID == "provider1" && req.Title == "Proposal accepted" {
			winnerNotified = true
		}
		if req.TargetID == "provider2" && req.Title == "Proposal not selected" {
			rivalNotified = true
		}
	}
	if !winnerNotified || !rivalNotified {
		t.Errorf("fan-out incomplete: winner=%v rival=%v", winnerNotified, rivalNotified)
	}
}

func TestAcceptRequiresOwner(t *testing.T) {
	f := newProposalFixture(t)
	p := f.propose(t, "provider1")

	if _, err := f.svc.Accept(context.Background(), p.ID.Hex(), "provider1"); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("proposer accepting: got %v, want forbidden", err)
	}
}

func TestAcceptTwiceIsConflict(t *testing.T) {
	f := newProposalFixture(t)
	first := f.propose(t, "provider1")
	second := f.propose(t, "provider2")

	if _, err := f.svc.Accept(context.Background(), first.ID.Hex(), "owner"); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	_, err := f.svc.Accept(context.Background(), second.ID.Hex(), "owner")
	if !errors.Is(err, apperrors.ErrAlreadyAccepted) {
		t.Errorf("second accept: got %v, want already accepted", err)
	}
	if got := f.proposals.statusOf(second.ID); got == model.ProposalStatusAccepted {
		t.Error("losing proposal must not end up accepted")
	}
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	f := newProposalFixture(t)

	ids := make([]primitive.ObjectID, 8)
	for i := range ids {
		p := f.propose(t, "provider"+string(rune('a'+i)))
		ids[i] = p.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id primitive.ObjectID) {
			defer wg.Done()
			_, errs[i] = f.svc.Accept(context.Background(), id.Hex(), "owner")
		}(i, id)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperrors.IsConflict(err):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
	if conflicts != len(ids)-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, len(ids)-1)
	}

	var acceptedRows int
	for _, id := range ids {
		if f.proposals.statusOf(id) == model.ProposalStatusAccepted {
			acceptedRows++
		}
	}
	if acceptedRows != 1 {
		t.Errorf("accepted rows = %d, want exactly 1", acceptedRows)
	}
}

func TestRejectVisibility(t *testing.T) {
	f := newProposalFixture(t)
	p := f.propose(t, "provider1")

	// The proposer is told why they cannot, a stranger is not told the
	// proposal exists.
	if err := f.svc.Reject(context.Background(), p.ID.Hex(), "provider1"); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("proposer rejecting: got %v, want forbidden", err)
	}
	if err := f.svc.Reject(context.Background(), p.ID.Hex(), "stranger"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("stranger rejecting: got %v, want not found", err)
	}

	if err := f.svc.Reject(context.Background(), p.ID.Hex(), "owner"); err != nil {
		t.Fatalf("owner reject: %v", err)
	}
	if err := f.svc.Reject(context.Background(), p.ID.Hex(), "owner"); !errors.Is(err, apperrors.ErrAlreadyProcessed) {
		t.Errorf("double reject: got %v, want already processed", err)
	}
}

func TestWithdrawOnlyProposer(t *testing.T) {
	f := newProposalFixture(t)
	p := f.propose(t, "provider1")

	if err := f.svc.Withdraw(context.Background(), p.ID.Hex(), "owner"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("owner withdrawing: got %v, want not found", err)
	}
	if err := f.svc.Withdraw(context.Background(), p.ID.Hex(), "provider1"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got := f.proposals.statusOf(p.ID); got != model.ProposalStatusWithdrawn {
		t.Errorf("status = %q, want withdrawn", got)
	}
}

func TestResubmitTerminalStates(t *testing.T) {
	f := newProposalFixture(t)
	p := f.propose(t, "provider1")

	// Pending rows cannot be resubmitted.
	if _, err := f.svc.Resubmit(context.Background(), p.ID.Hex(), "provider1", "again", nil, ""); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("resubmit pending: got %v, want conflict", err)
	}

	if err := f.svc.Reject(context.Background(), p.ID.Hex(), "owner"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	budget := 500.0
	updated, err := f.svc.Resubmit(context.Background(), p.ID.Hex(), "provider1", "improved offer", &budget, "2 weeks")
	if err != nil {
		t.Fatalf("Resubmit: %v", err)
	}
	if updated.Status != model.ProposalStatusPending || updated.Message != "improved offer" {
		t.Errorf("resubmit not applied: %+v", updated)
	}
	if updated.ProposedBudget == nil || *updated.ProposedBudget != budget {
		t.Errorf("budget not updated: %+v", updated.ProposedBudget)
	}
	if f.proposals.count() != 1 {
		t.Errorf("proposal rows = %d, want 1", f.proposals.count())
	}
}

func TestListForTaskVisibility(t *testing.T) {
	f := newProposalFixture(t)
	f.propose(t, "provider1")
	f.propose(t, "provider2")

	all, err := f.svc.ListForTask(context.Background(), f.task.ID.Hex(), "owner")
	if err != nil {
		t.Fatalf("ListForTask(owner): %v", err)
	}
	if len(all) != 2 {
		t.Errorf("owner sees %d proposals, want 2", len(all))
	}

	mine, err := f.svc.ListForTask(context.Background(), f.task.ID.Hex(), "provider1")
	if err != nil {
		t.Fatalf("ListForTask(provider1): %v", err)
	}
	if len(mine) != 1 || mine[0].FromUser != "provider1" {
		t.Errorf("non-owner must only see their own proposal: %+v", mine)
	}
}
