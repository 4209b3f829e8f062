package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/quantbrief/quantbrief-backend/internal/costs"
	"github.com/quantbrief/quantbrief-backend/internal/platform/broker"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/repos"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// Scheduler consumes report-state messages, advances each by exactly one
// stage, persists the new state and republishes it. The message is only
// acknowledged after persist and republish both succeed, so a crash at any
// point leads to redelivery rather than a lost report.
type Scheduler struct {
	log      *logger.Logger
	registry *Registry
	states   repos.WorkflowStateRepo
	pub      broker.Publisher
	ledger   costs.Ledger
}

func NewScheduler(baseLog *logger.Logger, registry *Registry, states repos.WorkflowStateRepo, pub broker.Publisher, ledger costs.Ledger) *Scheduler {
	return &Scheduler{
		log:      baseLog.With("service", "Scheduler"),
		registry: registry,
		states:   states,
		pub:      pub,
		ledger:   ledger,
	}
}

// Run drains deliveries until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, open := <-deliveries:
			if !open {
				s.log.Warn("Delivery channel closed")
				return
			}
			s.dispatch(ctx, d)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, d amqp.Delivery) {
	err := s.HandleDelivery(ctx, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			s.log.Error("Ack failed", "error", ackErr)
		}
		return
	}

	// A message that cannot even be decoded will never succeed; drop it
	// instead of looping through redelivery.
	var fault *faults.Fault
	requeue := true
	if errors.As(err, &fault) && fault.Kind == faults.KindParse && fault.Operation == "decode_state" {
		requeue = false
	}
	s.log.Error("Stage run failed", "error", err, "requeue", requeue)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		s.log.Error("Nack failed", "error", nackErr)
	}
}

// HandleDelivery advances one report-state message. On success the caller
// acks; on error the caller nacks and the broker redelivers.
func (s *Scheduler) HandleDelivery(ctx context.Context, body []byte) error {
	var state types.ReportState
	if err := json.Unmarshal(body, &state); err != nil {
		return faults.Parse("decode_state", "malformed report state message", err)
	}
	if state.ID == "" {
		return faults.Parse("decode_state", "report state without id", nil)
	}

	next, ok := types.NextStage(state.LastStage)
	if !ok {
		s.log.Warn("Message for terminal or unknown stage dropped", "report_id", state.ID, "last_stage", state.LastStage)
		return nil
	}

	// Done is the terminal chain node, not a stage with work: persist the
	// terminal state and stop republishing.
	if next == types.StageDone {
		state.LastStage = types.StageDone
		if err := s.states.Upsert(ctx, &state); err != nil {
			return err
		}
		s.log.Info("Report finished", "report_id", state.ID)
		return nil
	}

	handler, ok := s.registry.Get(next)
	if !ok {
		return faults.Invariant("dispatch", "no handler registered for stage "+string(next))
	}

	log := s.log.With("report_id", state.ID, "stage", next)
	log.Info("Stage started")

	resultsBefore := len(state.GenerationResults)
	started := time.Now()
	if err := s.runHandler(ctx, handler, &state); err != nil {
		return err
	}
	elapsed := time.Since(started)

	if appended := state.GenerationResults[resultsBefore:]; len(appended) > 0 {
		if err := s.ledger.Record(ctx, state.ID, appended); err != nil {
			return err
		}
	}

	state.LastStage = next
	if next == types.StageValidation && state.Validation != nil && !state.Validation.Valid {
		state.LastStage = types.StageInvalid
	}

	if err := s.states.Upsert(ctx, &state); err != nil {
		return err
	}

	if !state.LastStage.Terminal() {
		advanced, err := json.Marshal(&state)
		if err != nil {
			return err
		}
		if err := s.pub.Publish(ctx, advanced); err != nil {
			return err
		}
	}

	var spentMicro int64
	for _, res := range state.GenerationResults {
		spentMicro += costs.CostMicro(res)
	}
	log.Info("Stage finished",
		"last_stage", state.LastStage,
		"duration", elapsed.String(),
		"credits_spent", costs.Credits(spentMicro),
	)
	return nil
}

func (s *Scheduler) runHandler(ctx context.Context, handler Handler, state *types.ReportState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Stage handler panic", "report_id", state.ID, "stage", handler.Stage(), "panic", r)
			err = faults.Invariant(string(handler.Stage()), "handler panic")
		}
	}()
	return handler.Run(ctx, state)
}
