package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/mo"

	"github.com/AntonStoeckl/sked-go/sked"
	"github.com/AntonStoeckl/sked-go/sked/icsexport"
)

var (
	json = jsoniter.ConfigFastest

	errUnboundedOverlap  = errors.New("an unordered overlap without -until needs -limit")
	errUnknownTemplate   = errors.New("no template with this id is valid on this date")
	errNoOccurrenceOnDay = errors.New("the template has no occurrence on this date")
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string, stdout io.Writer) error
}

var commands = []command{
	{name: "init-db", summary: "create the tables and indexes", run: runInitDB},
	{name: "add-event", summary: "record a concrete event, or amend one with -amends", run: runAddEvent},
	{name: "add-template", summary: "record a recurring event template", run: runAddTemplate},
	{name: "seed", summary: "fill the store with random events and templates", run: runSeed},
	{name: "materialize", summary: "store one virtual occurrence of a template as a concrete event", run: runMaterialize},
	{name: "overlap", summary: "print the resolved events of a window as JSON lines", run: runOverlap},
	{name: "aggregate", summary: "fold the untagged events of a window into one value", run: runAggregate},
	{name: "by-tag", summary: "fold the events of a window into one value per tag", run: runByTag},
	{name: "export-ics", summary: "write the resolved events of a window as an iCalendar file", run: runExportICS},
	{name: "accrue", summary: "compute per-tag totals up to a date from the latest checkpoint", run: runAccrue},
	{name: "serve", summary: "save accrual checkpoints on the configured cron schedule", run: runServe},
}

func findCommand(name string) (command, bool) {
	idx := slices.IndexFunc(commands, func(c command) bool { return c.name == name })
	if idx < 0 {
		return command{}, false
	}

	return commands[idx], true
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sked [-config sked.yaml] <command> [flags]")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "commands:")

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.summary)
	}
	_ = tw.Flush()
}

func runInitDB(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("init-db", a.errOut)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := a.repo.CreateSchema(ctx); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	_, _ = fmt.Fprintln(stdout, "schema ready")

	return nil
}

func runAddEvent(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("add-event", a.errOut)
	date := dateFlag{}
	amends := uuidFlag{}
	fs.Var(&date, "date", "date of the event, YYYY-MM-DD (default today)")
	fs.Var(&amends, "amends", "id of the event this one corrects")
	value := fs.Float64("value", 0, "numeric value stored in the value field")
	tags := fs.String("tags", "", "comma-separated tag keys")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ev := sked.ConcreteEvent{
		Occurred: date.orElse(a.today()),
		Tags:     parseTags(*tags),
		Fields:   sked.Fields{a.cfg.Engine.ValueField: *value},
	}

	var (
		stored sked.ConcreteEvent
		err    error
	)

	if original, ok := amends.value.Get(); ok {
		stored, err = a.repo.Amend(ctx, original, ev)
	} else {
		stored, err = a.repo.AppendEvent(ctx, ev)
	}

	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}

	return writeJSONLine(stdout, newEventView(stored))
}

func runAddTemplate(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("add-template", a.errOut)
	validity := windowFlags{}
	validity.register(fs)
	rule := fs.String("rule", "", "RFC 5545 recurrence rule, e.g. FREQ=WEEKLY;BYDAY=MO")
	value := fs.Float64("value", 0, "numeric value every occurrence carries")
	tags := fs.String("tags", "", "comma-separated tag keys of every occurrence")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := requireFlag("rule", *rule != ""); err != nil {
		return err
	}

	if err := requireFlag("from", validity.from.value.IsPresent()); err != nil {
		return err
	}

	window, err := validity.window()
	if err != nil {
		return err
	}

	tpl, err := a.repo.AppendTemplate(ctx, sked.RecurringEventTemplate{
		Rule:    *rule,
		Range:   window,
		Tags:    parseTags(*tags),
		Factory: sked.Fields{a.cfg.Engine.ValueField: *value},
	})
	if err != nil {
		return fmt.Errorf("recording template: %w", err)
	}

	return writeJSONLine(stdout, newTemplateView(tpl))
}

func runMaterialize(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("materialize", a.errOut)
	templateID := uuidFlag{}
	date := dateFlag{}
	fs.Var(&templateID, "template", "id of the template")
	fs.Var(&date, "date", "date of the occurrence, YYYY-MM-DD")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := requireFlag("template", templateID.value.IsPresent()); err != nil {
		return err
	}

	if err := requireFlag("date", date.value.IsPresent()); err != nil {
		return err
	}

	occurrence, err := findOccurrence(ctx, a, templateID.value.MustGet(), date.value.MustGet())
	if err != nil {
		return err
	}

	stored, err := a.repo.Materialize(ctx, occurrence)
	if err != nil {
		return fmt.Errorf("materializing occurrence: %w", err)
	}

	return writeJSONLine(stdout, newEventView(stored))
}

func findOccurrence(ctx context.Context, a *app, templateID uuid.UUID, date sked.Date) (sked.ConcreteEvent, error) {
	day := sked.Between(date, date.AddDays(1))

	templates, err := a.repo.FindTemplatesOverlapping(ctx, day)
	if err != nil {
		return sked.ConcreteEvent{}, err
	}

	all, err := sked.Collect(templates)
	if err != nil {
		return sked.ConcreteEvent{}, err
	}

	idx := slices.IndexFunc(all, func(tpl sked.RecurringEventTemplate) bool { return tpl.ID == templateID })
	if idx < 0 {
		return sked.ConcreteEvent{}, errUnknownTemplate
	}

	occurrences, err := sked.Expand(all[idx], day, sked.RRuleEvaluator{})
	if err != nil {
		return sked.ConcreteEvent{}, err
	}

	found, err := sked.Collect(occurrences)
	if err != nil {
		return sked.ConcreteEvent{}, err
	}

	if len(found) == 0 {
		return sked.ConcreteEvent{}, errNoOccurrenceOnDay
	}

	return found[0].Template.Instantiate(found[0].Date), nil
}

func runOverlap(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("overlap", a.errOut)
	flags := windowFlags{}
	flags.register(fs)
	ordered := fs.Bool("ordered", true, "emit events in ascending date order")
	limit := fs.Int("limit", 0, "stop after this many events (0 means all)")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	window, err := flags.window()
	if err != nil {
		return err
	}

	if !*ordered && window.Upper.IsAbsent() && *limit <= 0 {
		return fmt.Errorf("%w: %w", errUsage, errUnboundedOverlap)
	}

	events, err := a.engine.Overlap(ctx, window, *ordered)
	if err != nil {
		return err
	}
	defer func() { _ = events.Close() }()

	for written := 0; (*limit <= 0 || written < *limit) && events.Next(); written++ {
		if writeErr := writeJSONLine(stdout, newEventView(events.Value())); writeErr != nil {
			return writeErr
		}
	}

	return events.Err()
}

func runAggregate(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("aggregate", a.errOut)
	flags := windowFlags{}
	flags.register(fs)
	opName := fs.String("op", "sum", "operation: sum, count, max, average, mean or latest")
	field := fs.String("field", a.cfg.Engine.ValueField, "event field to read")
	ordered := fs.Bool("ordered", false, "fold in ascending date order")
	includeTagged := fs.Bool("include-tagged", false, "fold tagged events too")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	window, err := flags.window()
	if err != nil {
		return err
	}

	options := make([]sked.AggregateOption, 0, 2)
	if *ordered {
		options = append(options, sked.Ordered())
	}

	if *includeTagged {
		options = append(options, sked.IncludeTagged())
	}

	result, err := aggregate(ctx, a.engine, window, *opName, *field, options)
	if err != nil {
		return err
	}

	return writeJSONLine(stdout, aggregateView{Operation: *opName, Window: window.String(), Value: result})
}

func runByTag(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("by-tag", a.errOut)
	flags := windowFlags{}
	flags.register(fs)
	opName := fs.String("op", "sum", "operation: sum, count, max or mean")
	field := fs.String("field", a.cfg.Engine.ValueField, "event field to read")
	tags := fs.String("tags", "", "comma-separated tag keys to aggregate")
	ordered := fs.Bool("ordered", false, "fold in ascending date order")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	keys := splitList(*tags)
	if err := requireFlag("tags", len(keys) > 0); err != nil {
		return err
	}

	window, err := flags.window()
	if err != nil {
		return err
	}

	options := make([]sked.AggregateOption, 0, 1)
	if *ordered {
		options = append(options, sked.Ordered())
	}

	result, err := aggregateByTag(ctx, a.engine, window, *opName, *field, keys, options)
	if err != nil {
		return err
	}

	return writeJSONLine(stdout, byTagView{Operation: *opName, Window: window.String(), Values: result})
}

func runExportICS(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("export-ics", a.errOut)
	flags := windowFlags{}
	flags.register(fs)
	out := fs.String("out", "", "output file (default stdout)")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	window, err := flags.window()
	if err != nil {
		return err
	}

	events, err := a.engine.Overlap(ctx, window, true)
	if err != nil {
		return err
	}

	exporterOptions := []icsexport.Option{icsexport.WithProductID(a.cfg.Export.ProductID), icsexport.WithClock(clock)}
	if a.cfg.Export.SummaryField != "" {
		exporterOptions = append(exporterOptions, icsexport.WithSummaryField(a.cfg.Export.SummaryField))
	}

	exporter := icsexport.NewExporter(exporterOptions...)

	var count int
	if *out == "" {
		count, err = exporter.Export(stdout, events)
	} else {
		count, err = exportToFile(*out, exporter, events)
	}

	if err != nil {
		return fmt.Errorf("exporting calendar: %w", err)
	}

	a.logger.Info("calendar exported", "event_count", count, "window", window.String())

	return nil
}

// createFile opens the export target; tests replace it.
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// exportToFile writes the calendar to path. A failing Close fails the export.
func exportToFile(path string, exporter *icsexport.Exporter, events sked.Iterator[sked.ConcreteEvent]) (count int, err error) {
	file, err := createFile(path)
	if err != nil {
		_ = events.Close()
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, closeErr)
		}
	}()

	return exporter.Export(file, events)
}

func runAccrue(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("accrue", a.errOut)
	until := dateFlag{}
	fs.Var(&until, "until", "accrue every event before this date, YYYY-MM-DD (default today)")
	tags := fs.String("tags", "", "comma-separated tag keys (default from config)")
	save := fs.Bool("save", false, "store the result as a new checkpoint")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	keys := a.cfg.Accrual.Tags
	if *tags != "" {
		keys = splitList(*tags)
	}

	accrual, err := accrue(ctx, a, until.orElse(a.today()), keys, *save)
	if err != nil {
		return err
	}

	return writeJSONLine(stdout, accrualView{Date: accrual.Date.String(), Values: accrual.Values, Saved: *save})
}

// accrue runs one accrual with the configured operation and optionally saves it.
func accrue(ctx context.Context, a *app, until sked.Date, tagKeys []string, save bool) (sked.Accrual, error) {
	op, err := accrualOperation(a.cfg.Accrual.Operation, a.cfg.Engine.ValueField)
	if err != nil {
		return sked.Accrual{}, err
	}

	accrual, err := sked.Accrue(ctx, a.engine, a.repo, until, op, tagKeys)
	if err != nil {
		return sked.Accrual{}, fmt.Errorf("accruing: %w", err)
	}

	if save {
		if saveErr := a.repo.SaveAccrual(ctx, accrual); saveErr != nil {
			return sked.Accrual{}, fmt.Errorf("saving accrual: %w", saveErr)
		}
	}

	return accrual, nil
}

func writeJSONLine(w io.Writer, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	if _, err = w.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	return nil
}

// optionalString renders mo.Some(id) as its string and mo.None as "".
func optionalString[T fmt.Stringer](o mo.Option[T]) string {
	if v, ok := o.Get(); ok {
		return v.String()
	}

	return ""
}
