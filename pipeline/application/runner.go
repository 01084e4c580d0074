package application

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/botmonitor"
)

// Criticality decides what a stage failure does to the turn.
type Criticality int

const (
	// Critical failures abort the turn.
	Critical Criticality = iota
	// Enrichment failures are logged and the turn continues.
	Enrichment
)

type Outcome int

const (
	Continue Outcome = iota
	Stop
)

// Stage is one step of the message pipeline.
type Stage struct {
	Name  string
	Class Criticality
	Run   func(ctx context.Context, t *turn) (Outcome, error)
}

// runStages executes stages in order. It returns the name of the stage that
// failed, if any, together with its error. A stage returning Stop ends the
// turn and sets t.stopped.
func runStages(ctx context.Context, t *turn, stages []Stage) (string, error) {
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return stage.Name, err
		}

		span := t.trace.Span(stage.Name)
		outcome, err := safeRun(ctx, stage, t)
		if err != nil {
			span.Fail(err)
			if stage.Class == Critical {
				return stage.Name, err
			}
			t.log().WithField("stage", stage.Name).WithError(err).Warn("[PIPELINE] enrichment stage failed, continuing")
			continue
		}
		span.End(t.note)
		t.note = ""
		if outcome == Stop {
			t.stopped = true
			return "", nil
		}
	}
	return "", nil
}

func safeRun(ctx context.Context, stage Stage, t *turn) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = Stop, fmt.Errorf("stage %s panicked: %v", stage.Name, r)
		}
	}()
	return stage.Run(ctx, t)
}

// BestEffort runs a side effect whose failure must never reach the caller.
func BestEffort(op string, fields logrus.Fields, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(fields).Errorf("[PIPELINE] %s panicked: %v", op, r)
		}
	}()
	if err := fn(); err != nil {
		logrus.WithFields(fields).WithError(err).Warnf("[PIPELINE] %s failed", op)
	}
}

// finalStatus maps a stopped or failed turn to the trace status.
func finalStatus(t *turn, err error) botmonitor.Status {
	if err != nil {
		return botmonitor.StatusFailed
	}
	if t.status != "" {
		return t.status
	}
	return botmonitor.StatusCompleted
}
