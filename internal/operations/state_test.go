package operations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepState_Lifecycle(t *testing.T) {
	s := NewStepState("extract", "Extract workbooks")
	assert.Equal(t, StepStatusPending, s.GetStatus())
	assert.Zero(t, s.Duration())

	s.Start()
	assert.Equal(t, StepStatusActive, s.GetStatus())
	assert.NotNil(t, s.StartTime)

	time.Sleep(time.Millisecond)
	s.Complete()
	assert.Equal(t, StepStatusCompleted, s.GetStatus())
	assert.Positive(t, s.Duration())

	f := NewStepState("dims.enrich", "Enrich")
	f.Start()
	f.Fail(errors.New("no labels"))
	assert.Equal(t, StepStatusFailed, f.GetStatus())
	assert.EqualError(t, f.Error, "no labels")

	k := NewStepState("analyze.counts", "Counts")
	k.Skip("dependency extract failed")
	assert.Equal(t, StepStatusSkipped, k.GetStatus())
	assert.Equal(t, "dependency extract failed", k.Message)
}

func TestRunState(t *testing.T) {
	r := NewRunState("")
	assert.Len(t, r.ID, 36)
	assert.Equal(t, RunStatusPending, r.GetStatus())

	r.AddStep(NewStepState("b", "B"))
	r.AddStep(NewStepState("a", "A"))
	r.AddStep(NewStepState("b", "B again"))
	steps := r.Steps()
	assert.Len(t, steps, 2)
	assert.Equal(t, "B again", steps[0].Name)
	assert.Nil(t, r.Step("missing"))

	_, ok := r.GetValue("rows")
	assert.False(t, ok)
	r.SetValue("rows", int64(7))
	v, ok := r.GetValue("rows")
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	r.Start()
	r.Finish(RunStatusCompleted, nil)
	assert.Equal(t, RunStatusCompleted, r.GetStatus())
	assert.NotNil(t, r.EndTime)
}

func TestStepError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStepError("extract", cause)

	assert.EqualError(t, err, "step extract failed: disk full")
	assert.ErrorIs(t, err, cause)
	assert.False(t, err.Time.IsZero())

	id, ok := FailedStep(err)
	assert.True(t, ok)
	assert.Equal(t, "extract", id)

	_, ok = FailedStep(cause)
	assert.False(t, ok)
}
