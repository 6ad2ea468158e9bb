package accounting

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

func (p *Processor) handleProposalCreated(ctx context.Context, tx repositories.LedgerTx, ev events.ProposalCreated) error {
	proposer := entities.NormalizeAddress(ev.Proposer)
	if ev.ProposalID == "" || proposer == "" {
		return invalid("proposal without id/proposer")
	}

	if err := tx.EnsureAccounts(ctx, proposer); err != nil {
		return fmt.Errorf("failed to ensure accounts: %w", err)
	}

	created := ev.Timestamp.UTC()
	inserted, err := tx.InsertProposal(ctx, &entities.Proposal{
		ID:           entities.ProposalKey(p.dao.ID, ev.ProposalID),
		ProposalID:   ev.ProposalID,
		DaoID:        p.dao.ID,
		TxHash:       ev.TxHash,
		Proposer:     proposer,
		Targets:      ev.Targets,
		Values:       ev.Values,
		Signatures:   ev.Signatures,
		Calldatas:    ev.Calldatas,
		StartBlock:   ev.StartBlock,
		EndBlock:     ev.EndBlock,
		Description:  ev.Description,
		Timestamp:    created,
		EndTimestamp: entities.EstimateEndTimestamp(created, ev.StartBlock, ev.EndBlock, p.dao.Governance.SecondsPerBlock),
		Status:       entities.StatusPending,
		ForVotes:     new(big.Int),
		AgainstVotes: new(big.Int),
		AbstainVotes: new(big.Int),
	})
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	if !inserted {
		return errDuplicate
	}

	if _, err := NewUpdater(tx).ApplyDelta(ctx, PowerKey(proposer, p.dao.ID, entities.FieldProposalsCount), one); err != nil {
		return err
	}
	return tx.TouchPower(ctx, proposer, p.dao.ID, ev.Timestamp)
}

// handleVoteCast records the vote and adds its weight to exactly one tally
func (p *Processor) handleVoteCast(ctx context.Context, tx repositories.LedgerTx, ev events.VoteCast) error {
	voter := entities.NormalizeAddress(ev.Voter)
	if voter == "" || ev.ProposalID == "" {
		return invalid("vote without voter/proposal")
	}
	if !ev.Support.Valid() {
		return invalid("vote with unknown support %d", ev.Support)
	}
	if ev.Weight == nil || ev.Weight.Sign() < 0 {
		return invalid("vote with missing or negative weight")
	}

	proposal, err := p.loadProposal(ctx, tx, ev.ProposalID)
	if err != nil {
		return err
	}
	if err := tx.EnsureAccounts(ctx, voter); err != nil {
		return fmt.Errorf("failed to ensure accounts: %w", err)
	}

	inserted, err := tx.InsertVote(ctx, &entities.Vote{
		TxHash:      ev.TxHash,
		LogIndex:    ev.LogIndex,
		DaoID:       p.dao.ID,
		ProposalID:  ev.ProposalID,
		VoterID:     voter,
		Support:     ev.Support,
		VotingPower: entities.CopyAmount(ev.Weight),
		Reason:      ev.Reason,
		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	if !inserted {
		return errDuplicate
	}
	if proposal.Status.IsTerminal() {
		return fmt.Errorf("%w: vote on %s proposal %s", entities.ErrInvalidTransition, proposal.Status, ev.ProposalID)
	}

	if err := tx.AddProposalVotes(ctx, p.dao.ID, ev.ProposalID, ev.Support, ev.Weight); err != nil {
		return fmt.Errorf("failed to tally vote: %w", err)
	}
	if err := tx.RecordVote(ctx, voter, p.dao.ID, ev.Timestamp); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return tx.TouchPower(ctx, voter, p.dao.ID, ev.Timestamp)
}

// handleProposalStatus applies an explicit lifecycle event. Replaying an event whose
// status is already stored, or already passed, is a duplicate.
func (p *Processor) handleProposalStatus(ctx context.Context, tx repositories.LedgerTx, ref events.Ref, proposalID string, next entities.ProposalStatus) error {
	if proposalID == "" {
		return invalid("%s without proposal id", next)
	}

	proposal, err := p.loadProposal(ctx, tx, proposalID)
	if err != nil {
		return err
	}
	if proposal.Status == next || proposal.Status.HasPassed(next) {
		return errDuplicate
	}

	if !p.transitionAllowed(proposal, next, ref) {
		return fmt.Errorf("%w: proposal %s %s -> %s", entities.ErrInvalidTransition, proposalID, proposal.Status, next)
	}

	if err := tx.UpdateProposalStatus(ctx, p.dao.ID, proposalID, next); err != nil {
		return fmt.Errorf("failed to update proposal status: %w", err)
	}
	return nil
}

// transitionAllowed lets EXECUTED through when the window has closed with a
// passing tally even though no ProposalQueued was seen.
func (p *Processor) transitionAllowed(proposal *entities.Proposal, next entities.ProposalStatus, ref events.Ref) bool {
	if proposal.Status.CanTransitionTo(next) {
		return true
	}
	if next != entities.StatusExecuted || proposal.Status.IsTerminal() {
		return false
	}
	derived := entities.DeriveStatus(proposal, p.dao.Governance.VotingPeriodSeconds, p.quorum, ref.Timestamp)
	return derived == entities.StatusQueued
}

func (p *Processor) loadProposal(ctx context.Context, tx repositories.LedgerTx, proposalID string) (*entities.Proposal, error) {
	proposal, err := tx.GetProposal(ctx, p.dao.ID, proposalID)
	if errors.Is(err, entities.ErrNotFound) {
		return nil, invalid("unknown proposal %s", proposalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read proposal: %w", err)
	}
	return proposal, nil
}
