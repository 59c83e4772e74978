package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/sked-go/config"
	"github.com/AntonStoeckl/sked-go/sked"
	"github.com/AntonStoeckl/sked-go/sked/sqlengine"
)

type cli struct {
	t          *testing.T
	configPath string
}

// givenCLI points the commands at a fresh sqlite database and freezes today at 2024-03-01.
func givenCLI(t *testing.T) cli {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("SKED_DB_DRIVER", "sqlite")
	t.Setenv("SKED_DB_DSN", filepath.Join(dir, "sked.db"))

	previous := clock
	clock = func() time.Time { return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { clock = previous })

	c := cli{t: t, configPath: filepath.Join(dir, "sked.yaml")}
	c.mustRun("init-db")

	return c
}

func (c cli) run(args ...string) (string, error) {
	c.t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), append([]string{"-config", c.configPath}, args...), stdout, stderr)

	return stdout.String(), err
}

func (c cli) mustRun(args ...string) string {
	c.t.Helper()

	out, err := c.run(args...)
	require.NoError(c.t, err, "sked %s failed", strings.Join(args, " "))

	return out
}

func decodeLines[T any](t *testing.T, out string) []T {
	t.Helper()

	values := make([]T, 0)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}

		var v T
		require.NoError(t, json.Unmarshal([]byte(line), &v), "invalid output line %q", line)
		values = append(values, v)
	}

	return values
}

// cancelOnWrite stops "sked serve" as soon as it reports that it is serving.
type cancelOnWrite struct {
	cancel context.CancelFunc
}

func (w cancelOnWrite) Write(p []byte) (int, error) {
	w.cancel()
	return len(p), nil
}

func Test_Run_When_CommandIsMissingOrUnknown(t *testing.T) {
	// act
	missingErr := run(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})
	unknownErr := run(context.Background(), []string{"launch"}, &bytes.Buffer{}, &bytes.Buffer{})

	// assert
	assert.ErrorIs(t, missingErr, errUsage)
	assert.ErrorIs(t, unknownErr, errUsage)
}

func Test_Run_Help(t *testing.T) {
	// setup
	stdout := &bytes.Buffer{}

	// act
	err := run(context.Background(), []string{"help"}, stdout, &bytes.Buffer{})

	// assert
	require.NoError(t, err)

	for _, c := range commands {
		assert.Contains(t, stdout.String(), c.name)
	}
}

func Test_Aggregate_OverRecordedEventsAndTemplates(t *testing.T) {
	// setup
	c := givenCLI(t)

	// arrange
	c.mustRun("add-event", "-date", "2024-01-02", "-value", "3")
	c.mustRun("add-event", "-date", "2024-01-09", "-value", "4", "-tags", "work")
	c.mustRun("add-template", "-rule", "FREQ=WEEKLY;BYDAY=MO", "-from", "2024-02-26", "-value", "1")

	// act
	sum := decodeLines[aggregateView](t, c.mustRun("aggregate", "-from", "2024-01-01", "-until", "2024-04-01"))
	count := decodeLines[aggregateView](t, c.mustRun("aggregate", "-op", "count", "-include-tagged", "-from", "2024-01-01", "-until", "2024-04-01"))
	byTag := decodeLines[byTagView](t, c.mustRun("by-tag", "-tags", "work,home", "-from", "2024-01-01", "-until", "2024-04-01"))

	// assert
	require.Len(t, sum, 1)
	assert.Equal(t, 7.0, sum[0].Value, "3 plus the Mondays from March 4 to March 25")

	require.Len(t, count, 1)
	assert.Equal(t, 6.0, count[0].Value)

	require.Len(t, byTag, 1)
	assert.Equal(t, map[string]float64{"work": 11, "home": 7}, byTag[0].Values)
}

func Test_Aggregate_When_OperationIsUnknown(t *testing.T) {
	// setup
	c := givenCLI(t)

	// act
	_, err := c.run("aggregate", "-op", "median", "-from", "2024-01-01", "-until", "2024-02-01")

	// assert
	assert.ErrorIs(t, err, errUnknownOperation)
	assert.ErrorIs(t, err, errUsage)
}

func Test_Overlap_When_AnOccurrenceIsMaterialized(t *testing.T) {
	// setup
	c := givenCLI(t)

	// arrange
	templates := decodeLines[templateView](t, c.mustRun("add-template", "-rule", "FREQ=WEEKLY;BYDAY=MO", "-from", "2024-02-26", "-value", "1"))
	require.Len(t, templates, 1)

	before := decodeLines[eventView](t, c.mustRun("overlap", "-from", "2024-03-01", "-until", "2024-03-12"))

	// act
	c.mustRun("materialize", "-template", templates[0].ID, "-date", "2024-03-04")
	after := decodeLines[eventView](t, c.mustRun("overlap", "-from", "2024-03-01", "-until", "2024-03-12"))

	// assert
	require.Len(t, before, 2)
	assert.True(t, before[0].Virtual)
	assert.Equal(t, "2024-03-04", before[0].Date)
	assert.Equal(t, templates[0].ID, before[0].SourceTemplate)

	require.Len(t, after, 2)
	assert.False(t, after[0].Virtual)
	assert.NotEmpty(t, after[0].ID)
	assert.Equal(t, "2024-03-04", after[0].Date)
	assert.True(t, after[1].Virtual)
	assert.Equal(t, "2024-03-11", after[1].Date)
}

func Test_Overlap_When_UnorderedAndUnbounded(t *testing.T) {
	// setup
	c := givenCLI(t)
	c.mustRun("add-template", "-rule", "FREQ=DAILY", "-from", "2024-01-01", "-value", "1")

	// act
	_, unlimitedErr := c.run("overlap", "-ordered=false")
	limited := decodeLines[eventView](t, c.mustRun("overlap", "-ordered=false", "-limit", "5"))

	// assert
	assert.ErrorIs(t, unlimitedErr, errUnboundedOverlap)
	assert.Len(t, limited, 5)
}

func Test_AddEvent_When_AmendingAnEvent(t *testing.T) {
	// setup
	c := givenCLI(t)
	original := decodeLines[eventView](t, c.mustRun("add-event", "-date", "2024-01-02", "-value", "3"))
	require.Len(t, original, 1)

	// act
	amendment := decodeLines[eventView](t, c.mustRun("add-event", "-date", "2024-01-02", "-value", "5", "-amends", original[0].ID))
	sum := decodeLines[aggregateView](t, c.mustRun("aggregate", "-from", "2024-01-01", "-until", "2024-02-01"))

	// assert
	require.Len(t, amendment, 1)
	assert.Equal(t, original[0].ID, amendment[0].AmendedFrom)
	assert.Equal(t, 5.0, sum[0].Value)
}

func Test_ExportICS(t *testing.T) {
	// setup
	c := givenCLI(t)
	out := filepath.Join(t.TempDir(), "sked.ics")
	c.mustRun("add-template", "-rule", "FREQ=WEEKLY;BYDAY=MO", "-from", "2024-02-26", "-value", "1")

	// act
	c.mustRun("export-ics", "-from", "2024-03-01", "-until", "2024-03-19", "-out", out)

	// assert
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), "BEGIN:VCALENDAR")
	assert.Equal(t, 3, strings.Count(string(content), "BEGIN:VEVENT"))
}

type failingClose struct {
	bytes.Buffer
}

func (*failingClose) Close() error {
	return errDiskFull
}

var errDiskFull = errors.New("disk full")

func Test_ExportICS_When_ClosingTheFileFails(t *testing.T) {
	// setup
	c := givenCLI(t)
	c.mustRun("add-template", "-rule", "FREQ=WEEKLY;BYDAY=MO", "-from", "2024-02-26", "-value", "1")

	target := &failingClose{}
	previous := createFile
	createFile = func(string) (io.WriteCloser, error) { return target, nil }
	t.Cleanup(func() { createFile = previous })

	// act
	_, err := c.run("export-ics", "-from", "2024-03-01", "-until", "2024-03-19", "-out", "sked.ics")

	// assert
	assert.ErrorIs(t, err, errDiskFull)
	assert.Contains(t, target.String(), "BEGIN:VCALENDAR")
}

func Test_Materialize_When_OccurrenceWasAlreadyMaterialized(t *testing.T) {
	// setup
	c := givenCLI(t)
	templates := decodeLines[templateView](t, c.mustRun("add-template", "-rule", "FREQ=WEEKLY;BYDAY=MO", "-from", "2024-02-26", "-value", "1"))
	require.Len(t, templates, 1)
	c.mustRun("materialize", "-template", templates[0].ID, "-date", "2024-03-04")

	// act
	_, err := c.run("materialize", "-template", templates[0].ID, "-date", "2024-03-04")
	sum := decodeLines[aggregateView](t, c.mustRun("aggregate", "-from", "2024-03-01", "-until", "2024-03-12"))

	// assert
	assert.ErrorIs(t, err, sqlengine.ErrAlreadyMaterialized)
	require.Len(t, sum, 1)
	assert.Equal(t, 2.0, sum[0].Value)
}

func Test_Accrue_ContinuesFromTheSavedCheckpoint(t *testing.T) {
	// setup
	c := givenCLI(t)
	c.mustRun("add-event", "-date", "2024-01-02", "-value", "3")
	c.mustRun("add-event", "-date", "2024-01-09", "-value", "4", "-tags", "work")
	c.mustRun("add-event", "-date", "2024-02-05", "-value", "2", "-tags", "home")

	// act
	first := decodeLines[accrualView](t, c.mustRun("accrue", "-until", "2024-02-01", "-tags", "work,home", "-save"))
	second := decodeLines[accrualView](t, c.mustRun("accrue", "-tags", "work,home"))

	// assert
	require.Len(t, first, 1)
	assert.True(t, first[0].Saved)
	assert.Equal(t, map[string]float64{"work": 7, "home": 3}, first[0].Values)

	require.Len(t, second, 1)
	assert.Equal(t, "2024-03-01", second[0].Date)
	assert.False(t, second[0].Saved)
	assert.Equal(t, map[string]float64{"work": 7, "home": 5}, second[0].Values)
}

func Test_Serve_SavesACheckpoint(t *testing.T) {
	// setup
	c := givenCLI(t)
	c.mustRun("add-event", "-date", "2024-01-02", "-value", "3")
	c.mustRun("add-event", "-date", "2024-01-09", "-value", "4", "-tags", "work")
	t.Setenv("SKED_ACCRUAL_TAGS", "work,home")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// act
	err := run(ctx, []string{"-config", c.configPath, "serve", "-run-now"}, cancelOnWrite{cancel: cancel}, &bytes.Buffer{})

	// assert
	require.NoError(t, err)

	cfg, err := config.Load(c.configPath)
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(a.close)

	latest, err := a.repo.LatestAccrual(context.Background(), sked.NewDate(2024, time.March, 1))
	require.NoError(t, err)

	checkpoint, ok := latest.Get()
	require.True(t, ok, "no checkpoint was saved")
	assert.Equal(t, sked.NewDate(2024, time.March, 1), checkpoint.Date)
	assert.Equal(t, map[string]float64{"work": 7, "home": 3}, checkpoint.Values)
}

func Test_Serve_When_ScheduleIsInvalid(t *testing.T) {
	// setup
	c := givenCLI(t)
	t.Setenv("SKED_ACCRUAL_SCHEDULE", "every full moon")

	// act
	_, err := c.run("serve")

	// assert
	assert.ErrorIs(t, err, errUsage)
}

func Test_Seed(t *testing.T) {
	// setup
	c := givenCLI(t)

	// act
	seeded := decodeLines[seedView](t, c.mustRun("seed", "-events", "30", "-templates", "3", "-days", "60"))
	count := decodeLines[aggregateView](t, c.mustRun("aggregate", "-op", "count", "-include-tagged", "-from", "2024-01-01", "-until", "2024-03-01"))

	// assert
	require.Len(t, seeded, 1)
	assert.Equal(t, "[2024-01-01, 2024-03-01)", seeded[0].Window)
	require.Len(t, count, 1)
	assert.Equal(t, 30.0, count[0].Value, "every seeded event lies in the past, so no template occurrence is counted")
}
