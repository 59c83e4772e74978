// Package icsexport writes resolved event streams as iCalendar (RFC 5545) files, one
// all-day VEVENT per event, so that materialized and virtual occurrences can be viewed in
// any calendar application.
package icsexport

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	"github.com/AntonStoeckl/sked-go/sked"
)

const (
	defaultProductID    = "-//sked//sked-go//EN"
	defaultSummaryField = "summary"
	defaultSummary      = "event"
	// PropertyTemplate carries the source template ID of an event.
	PropertyTemplate ical.ComponentProperty = "X-SKED-TEMPLATE"
	// PropertyVirtual is "TRUE" for occurrences that were never stored.
	PropertyVirtual ical.ComponentProperty = "X-SKED-VIRTUAL"
)

var ErrWritingCalendarFailed = errors.New("writing calendar failed")

// Exporter renders events into a VCALENDAR.
type Exporter struct {
	productID    string
	summaryField string
	clock        func() time.Time
}

// Option defines a functional option for configuring Exporter.
type Option func(*Exporter)

// WithProductID sets the PRODID of the calendar.
func WithProductID(productID string) Option {
	return func(e *Exporter) {
		e.productID = productID
	}
}

// WithSummaryField selects the event field used as SUMMARY.
func WithSummaryField(field string) Option {
	return func(e *Exporter) {
		e.summaryField = field
	}
}

// WithClock sets the clock DTSTAMP values are taken from.
func WithClock(clock func() time.Time) Option {
	return func(e *Exporter) {
		e.clock = clock
	}
}

func NewExporter(options ...Option) *Exporter {
	e := &Exporter{
		productID:    defaultProductID,
		summaryField: defaultSummaryField,
		clock:        time.Now,
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// Export drains events into one calendar written to w and returns the number of VEVENTs.
// The iterator is closed; it must be finite.
func (e *Exporter) Export(w io.Writer, events sked.Iterator[sked.ConcreteEvent]) (int, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(e.productID)

	stamp := e.clock().UTC()
	count := 0

	for events.Next() {
		e.addEvent(cal, events.Value(), stamp)
		count++
	}

	if err := errors.Join(events.Err(), events.Close()); err != nil {
		return 0, err
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return 0, errors.Join(ErrWritingCalendarFailed, err)
	}

	return count, nil
}

func (e *Exporter) addEvent(cal *ical.Calendar, ev sked.ConcreteEvent, stamp time.Time) {
	vevent := cal.AddEvent(uid(ev))
	vevent.SetDtStampTime(stamp)
	vevent.SetAllDayStartAt(ev.Occurred.Time())
	vevent.SetAllDayEndAt(ev.Occurred.AddDays(1).Time())
	vevent.SetSummary(e.summary(ev))

	if categories := tagKeys(ev.Tags); len(categories) > 0 {
		vevent.AddProperty(ical.ComponentPropertyCategories, strings.Join(categories, ","))
	}

	if description := describeFields(ev.Fields, e.summaryField); description != "" {
		vevent.SetDescription(description)
	}

	if tpl, ok := ev.SourceTemplate.Get(); ok {
		vevent.SetProperty(PropertyTemplate, tpl.String())
	}

	if ev.IsVirtual() {
		vevent.SetProperty(PropertyVirtual, "TRUE")
	}
}

// uid is the event ID, or a stable (template, date) based ID for virtual occurrences so that
// re-exports update instead of duplicate them.
func uid(ev sked.ConcreteEvent) string {
	if !ev.IsVirtual() {
		return ev.ID.String()
	}

	return fmt.Sprintf("%s-%s", ev.SourceTemplate.OrEmpty(), ev.Occurred.Time().Format("20060102"))
}

func (e *Exporter) summary(ev sked.ConcreteEvent) string {
	if value, ok := ev.Fields[e.summaryField].(string); ok && value != "" {
		return value
	}

	return defaultSummary
}

func tagKeys(tags sked.Tags) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

func describeFields(fields sked.Fields, skip string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key != skip {
			keys = append(keys, key)
		}
	}

	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", key, fields[key]))
	}

	return strings.Join(lines, "\n")
}

// ExportedEvent is the subset of a VEVENT read back by Parse.
type ExportedEvent struct {
	UID        string
	Summary    string
	Start      sked.Date
	Categories []string
	Template   mo.Option[string]
	Virtual    bool
}

// Parse reads the VEVENTs of a calendar produced by Export.
func Parse(r io.Reader) ([]ExportedEvent, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, err
	}

	events := make([]ExportedEvent, 0, len(cal.Events()))
	for _, vevent := range cal.Events() {
		out := ExportedEvent{Template: mo.None[string]()}

		if p := vevent.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
			out.UID = p.Value
		}

		if p := vevent.GetProperty(ical.ComponentPropertySummary); p != nil {
			out.Summary = p.Value
		}

		if p := vevent.GetProperty(ical.ComponentPropertyDtStart); p != nil {
			start, parseErr := time.Parse("20060102", p.Value)
			if parseErr != nil {
				return nil, parseErr
			}

			out.Start = sked.DateOf(start)
		}

		if p := vevent.GetProperty(ical.ComponentPropertyCategories); p != nil {
			out.Categories = strings.Split(p.Value, ",")
		}

		if p := vevent.GetProperty(PropertyTemplate); p != nil {
			out.Template = mo.Some(p.Value)
		}

		if p := vevent.GetProperty(PropertyVirtual); p != nil {
			out.Virtual = p.Value == "TRUE"
		}

		events = append(events, out)
	}

	return events, nil
}
