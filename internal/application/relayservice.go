// Package application contains the relay use case.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/formrelay/internal/domain/model"
	"github.com/ericfisherdev/formrelay/internal/domain/port/driven"
)

// MarkerRules says which form items carry the markers and which workflow
// inputs receive them.
type MarkerRules struct {
	StartTitle string // Substring matched against item titles, e.g. "Start".
	EndTitle   string
	StartInput string // Workflow input name, e.g. "start".
	EndInput   string
}

// RelayService turns form submissions into workflow dispatches. Each
// submission gets at most one outbound call; failures are logged and
// recorded, never retried.
type RelayService struct {
	dispatcher driven.WorkflowDispatcher
	store      driven.DispatchStore
	target     model.DispatchTarget
	rules      MarkerRules
	timeout    time.Duration
	logger     *slog.Logger
}

// NewRelayService creates a RelayService. timeout bounds each outbound call;
// zero means no bound beyond the caller's context.
func NewRelayService(
	dispatcher driven.WorkflowDispatcher,
	store driven.DispatchStore,
	target model.DispatchTarget,
	rules MarkerRules,
	timeout time.Duration,
	logger *slog.Logger,
) *RelayService {
	return &RelayService{
		dispatcher: dispatcher,
		store:      store,
		target:     target,
		rules:      rules,
		timeout:    timeout,
		logger:     logger.With("workflow", target.Workflow, "repo", target.FullName()),
	}
}

// Target returns the workflow this service dispatches to.
func (s *RelayService) Target() model.DispatchTarget {
	return s.target
}

// ExtractMarkers reads the start and end values from resp. The first item
// whose title contains startTitle supplies Start, and likewise for End. A
// single item may supply both. Values are copied verbatim.
func ExtractMarkers(resp model.FormResponse, startTitle, endTitle string) model.Markers {
	var m model.Markers
	var haveStart, haveEnd bool

	for _, item := range resp.Items {
		if !haveStart && strings.Contains(item.Title, startTitle) {
			m.Start = item.Response
			haveStart = true
		}
		if !haveEnd && strings.Contains(item.Title, endTitle) {
			m.End = item.Response
			haveEnd = true
		}
		if haveStart && haveEnd {
			break
		}
	}

	return m
}

// BuildWorkflowDispatch assembles the dispatch payload for markers. The
// result depends only on its arguments.
func BuildWorkflowDispatch(ref string, rules MarkerRules, markers model.Markers) model.WorkflowDispatch {
	return model.WorkflowDispatch{
		Ref: ref,
		Inputs: map[string]string{
			rules.StartInput: markers.Start,
			rules.EndInput:   markers.End,
		},
	}
}

// ErrIncompleteMarkers is returned by Redispatch when the stored record is
// missing its start or end marker.
var ErrIncompleteMarkers = errors.New("start or end marker missing")

// HandleSubmission relays one form submission. Incomplete markers and
// submissions that are already dispatched or in flight are recorded without
// an outbound call. Dispatch failures are logged and recorded as failed; the
// returned error is non-nil only when the ledger itself cannot be read or
// written.
func (s *RelayService) HandleSubmission(ctx context.Context, resp model.FormResponse, source model.DispatchSource) (model.Dispatch, error) {
	markers := ExtractMarkers(resp, s.rules.StartTitle, s.rules.EndTitle)
	logger := s.logger.With("submission_id", resp.ID, "source", source)

	record := model.Dispatch{
		SubmissionID: resp.ID,
		Start:        markers.Start,
		End:          markers.End,
		Source:       source,
		SubmittedAt:  resp.SubmittedAt,
	}

	if !markers.Complete() {
		logger.Info("submission skipped: start or end marker missing",
			"has_start", markers.Start != "",
			"has_end", markers.End != "",
		)
		record.Status = model.DispatchStatusSkipped
		return s.record(ctx, record)
	}

	claimed, err := s.store.ClaimSubmission(ctx, resp.ID)
	if err != nil {
		return model.Dispatch{}, fmt.Errorf("claiming submission: %w", err)
	}
	if !claimed {
		prior, err := s.store.FindDispatched(ctx, resp.ID)
		if err != nil {
			return model.Dispatch{}, fmt.Errorf("checking prior dispatch: %w", err)
		}
		record.Status = model.DispatchStatusDuplicate
		if prior != nil {
			logger.Info("submission already dispatched", "dispatch_id", prior.ID)
			record.StatusCode = prior.StatusCode
		} else {
			logger.Info("submission already being dispatched")
		}
		return s.record(ctx, record)
	}

	s.dispatch(ctx, logger, &record)
	if record.Status == model.DispatchStatusFailed {
		s.release(ctx, logger, resp.ID)
	}
	return s.record(ctx, record)
}

// Redispatch makes one new attempt with the markers of a stored record. It
// is an operator action and bypasses duplicate detection. A successful
// redispatch claims the submission so later resends count as duplicates.
func (s *RelayService) Redispatch(ctx context.Context, id int64) (model.Dispatch, error) {
	prev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Dispatch{}, err
	}

	if !prev.Markers().Complete() {
		return model.Dispatch{}, fmt.Errorf("redispatch %d: %w", id, ErrIncompleteMarkers)
	}

	logger := s.logger.With("submission_id", prev.SubmissionID, "redispatch_of", id)

	record := model.Dispatch{
		SubmissionID: prev.SubmissionID,
		Start:        prev.Start,
		End:          prev.End,
		Source:       model.DispatchSourceRedispatch,
		SubmittedAt:  prev.SubmittedAt,
	}

	s.dispatch(ctx, logger, &record)
	if record.Status == model.DispatchStatusDispatched {
		if _, err := s.store.ClaimSubmission(context.WithoutCancel(ctx), prev.SubmissionID); err != nil {
			logger.Error("failed to claim redispatched submission", "error", err)
		}
	}
	return s.record(ctx, record)
}

// Recent returns up to limit dispatch records, newest first.
func (s *RelayService) Recent(ctx context.Context, limit int) ([]model.Dispatch, error) {
	return s.store.ListRecent(ctx, limit)
}

// Get returns a single dispatch record.
func (s *RelayService) Get(ctx context.Context, id int64) (model.Dispatch, error) {
	return s.store.GetByID(ctx, id)
}

// VerifyTarget confirms the configured workflow exists and is active.
func (s *RelayService) VerifyTarget(ctx context.Context) (*model.Workflow, error) {
	wf, err := s.dispatcher.GetWorkflow(ctx, s.target)
	if err != nil {
		return nil, err
	}
	if wf.State != "" && wf.State != "active" {
		return wf, fmt.Errorf("workflow %s is %s, not active", s.target.Workflow, wf.State)
	}
	return wf, nil
}

// dispatch performs the single outbound attempt and fills in the outcome.
func (s *RelayService) dispatch(ctx context.Context, logger *slog.Logger, record *model.Dispatch) {
	payload := BuildWorkflowDispatch(s.target.Ref, s.rules, record.Markers())

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	status, err := s.dispatcher.DispatchWorkflow(callCtx, s.target, payload)
	record.StatusCode = status
	if err != nil {
		if s.timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("dispatch timed out after %s: %w", s.timeout, err)
		}
		logger.Error("workflow dispatch failed", "status_code", status, "error", err)
		record.Status = model.DispatchStatusFailed
		record.Error = err.Error()
		return
	}

	logger.Info("workflow dispatched", "status_code", status, "ref", payload.Ref)
	record.Status = model.DispatchStatusDispatched
}

// release drops the claim after a failed attempt so the form host may
// resend.
func (s *RelayService) release(ctx context.Context, logger *slog.Logger, submissionID string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.store.ReleaseSubmission(releaseCtx, submissionID); err != nil {
		logger.Error("failed to release submission claim; resends will be treated as duplicates", "error", err)
	}
}

// record persists the outcome. The request context may already be done
// after a slow dispatch, so the write gets its own short deadline.
func (s *RelayService) record(ctx context.Context, d model.Dispatch) (model.Dispatch, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	saved, err := s.store.Record(writeCtx, d)
	if err != nil {
		s.logger.Error("failed to record dispatch",
			"submission_id", d.SubmissionID,
			"status", d.Status,
			"error", err,
		)
		return d, fmt.Errorf("recording dispatch: %w", err)
	}
	return saved, nil
}
