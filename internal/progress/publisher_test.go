package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/invoice-extractor/constants"
)

type capturePublisher struct {
	events []Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, _ uuid.UUID, ev Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func TestMulti_FanOut(t *testing.T) {
	a := &capturePublisher{}
	b := &capturePublisher{}
	m := NewMulti(a, b)

	key := uuid.New()
	ev := Event{Type: "extraction.started", Status: constants.EventStatusProcessing}
	require.NoError(t, m.Publish(context.Background(), key, ev))

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, ev.Type, a.events[0].Type)
}

func TestMulti_FirstErrorAfterAllTried(t *testing.T) {
	errA := errors.New("redis down")
	errB := errors.New("also down")
	a := &capturePublisher{err: errA}
	b := &capturePublisher{}
	c := &capturePublisher{err: errB}
	m := NewMulti(a, b, c)

	err := m.Publish(context.Background(), uuid.New(), Event{Type: "extraction.completed"})
	assert.ErrorIs(t, err, errA)

	// later publishers still ran
	assert.Len(t, b.events, 1)
}

func TestMulti_Empty(t *testing.T) {
	m := NewMulti()
	assert.NoError(t, m.Publish(context.Background(), uuid.New(), Event{}))
}

func TestLogPublisher_NeverFails(t *testing.T) {
	p := NewLogPublisher(nil)
	err := p.Publish(context.Background(), uuid.New(), Event{
		Type:     "extraction.ocr_completed",
		Status:   constants.EventStatusProcessing,
		Progress: 33,
		Message:  "text recognition completed",
	})
	assert.NoError(t, err)
}

func TestChannel(t *testing.T) {
	key := uuid.MustParse("3b241101-e2bb-4255-8caf-4136c566a962")
	assert.Equal(t, "invoices.extraction.progress.3b241101-e2bb-4255-8caf-4136c566a962", Channel(key))
}
