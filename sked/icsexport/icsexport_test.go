package icsexport_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/sked-go/sked"
	. "github.com/AntonStoeckl/sked-go/sked/icsexport"
)

func Test_Export_When_StreamMixesConcreteAndVirtualEvents(t *testing.T) {
	// setup
	exporter := NewExporter(WithClock(func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }))
	templateID := uuid.New()
	concrete := sked.ConcreteEvent{
		ID:       uuid.New(),
		Occurred: sked.NewDate(2024, 1, 3),
		Tags:     sked.Tags{"work": true, "billable": true},
		Fields:   sked.Fields{"summary": "Client call", "value": 2},
	}
	virtual := sked.RecurringEventTemplate{ID: templateID, Factory: sked.Fields{"value": 1}}.Instantiate(sked.NewDate(2024, 1, 5))
	var buf bytes.Buffer

	// act
	count, err := exporter.Export(&buf, sked.SliceIterator([]sked.ConcreteEvent{concrete, virtual}))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Contains(t, buf.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, buf.String(), "METHOD:PUBLISH")

	parsed, parseErr := Parse(&buf)
	require.NoError(t, parseErr)
	require.Len(t, parsed, 2)

	assert.Equal(t, concrete.ID.String(), parsed[0].UID)
	assert.Equal(t, "Client call", parsed[0].Summary)
	assert.Equal(t, sked.NewDate(2024, 1, 3), parsed[0].Start)
	assert.Equal(t, []string{"billable", "work"}, parsed[0].Categories)
	assert.True(t, parsed[0].Template.IsAbsent())
	assert.False(t, parsed[0].Virtual)

	assert.Equal(t, templateID.String()+"-20240105", parsed[1].UID)
	assert.Equal(t, "event", parsed[1].Summary)
	assert.Equal(t, mo.Some(templateID.String()), parsed[1].Template)
	assert.True(t, parsed[1].Virtual)
}

type failingIterator struct{}

func (failingIterator) Next() bool { return false }
func (failingIterator) Value() sked.ConcreteEvent { return sked.ConcreteEvent{} }
func (failingIterator) Err() error { return errors.New("stream broke") }
func (failingIterator) Close() error { return nil }

func Test_Export_When_TheStreamFails(t *testing.T) {
	// setup
	var buf bytes.Buffer

	// act
	_, err := NewExporter().Export(&buf, failingIterator{})

	// assert
	assert.Error(t, err)
	assert.Zero(t, buf.Len(), "nothing is written for a broken stream")
}
