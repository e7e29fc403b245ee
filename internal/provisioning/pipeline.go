package provisioning

import (
	"fmt"
	"time"
)

// RunStages executes stages sequentially and stops at the first failure.
// Failures are wrapped in a StageError; an operator cancellation is
// returned as is.
func RunStages(ctx *Context, stages []Stage) (err error) {
	start := time.Now()
	ctx.Observer.Printf("Starting %s with %d stages...", ctx.Operation, len(stages))
	defer func() {
		ctx.Metrics.ObserveRun(ctx.Operation, time.Now(), err)
	}()

	for i, stage := range stages {
		name := fmt.Sprintf("%s (%d/%d)", stage.Name, i+1, len(stages))

		if err := ctx.Err(); err != nil {
			LogStageFailed(ctx.Observer, name, err)
			return ctx.stageError(stage, err)
		}

		if stage.Done != nil {
			done, err := stage.Done(ctx)
			if err != nil {
				LogStageFailed(ctx.Observer, name, err)
				return ctx.stageError(stage, err)
			}
			if done {
				LogStageSkipped(ctx.Observer, name)
				continue
			}
		}

		LogStageStart(ctx.Observer, name)
		stageStart := time.Now()
		err := stage.Run(ctx)
		ctx.Metrics.ObserveStage(ctx.Operation, stage.Name, time.Since(stageStart), err)

		if err != nil {
			if IsCancelled(err) {
				ctx.Observer.Printf("[%s] cancelled", name)
				return err
			}
			LogStageFailed(ctx.Observer, name, err)
			return ctx.stageError(stage, err)
		}

		LogStageComplete(ctx.Observer, name, time.Since(stageStart))
	}

	ctx.Observer.Printf("%s completed in %v", ctx.Operation, time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Context) stageError(stage Stage, err error) error {
	return &StageError{
		Operation: c.Operation,
		Stage:     stage.Name,
		Resource:  stage.Resource,
		Err:       err,
	}
}
