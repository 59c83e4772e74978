package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/AntonStoeckl/sked-go/sked"
)

// dateFlag is an optional YYYY-MM-DD flag value.
type dateFlag struct {
	value mo.Option[sked.Date]
}

func (f *dateFlag) String() string {
	if d, ok := f.value.Get(); ok {
		return d.String()
	}

	return ""
}

func (f *dateFlag) Set(s string) error {
	d, err := sked.ParseDate(s)
	if err != nil {
		return err
	}

	f.value = mo.Some(d)

	return nil
}

// orElse returns the flag value, or fallback when the flag was not given.
func (f *dateFlag) orElse(fallback sked.Date) sked.Date {
	return f.value.OrElse(fallback)
}

// uuidFlag is an optional UUID flag value.
type uuidFlag struct {
	value mo.Option[uuid.UUID]
}

func (f *uuidFlag) String() string {
	if id, ok := f.value.Get(); ok {
		return id.String()
	}

	return ""
}

func (f *uuidFlag) Set(s string) error {
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}

	f.value = mo.Some(id)

	return nil
}

// windowFlags registers -from and -until; a missing flag leaves that side of the window open.
type windowFlags struct {
	from  dateFlag
	until dateFlag
}

func (w *windowFlags) register(fs *flag.FlagSet) {
	fs.Var(&w.from, "from", "first date of the window, YYYY-MM-DD (inclusive, default unbounded)")
	fs.Var(&w.until, "until", "end of the window, YYYY-MM-DD (exclusive, default unbounded)")
}

func (w *windowFlags) window() (sked.TimeRange, error) {
	return sked.NewTimeRange(w.from.value, w.until.value)
}

// parseTags turns "work, home" into tags; empty entries are dropped.
func parseTags(s string) sked.Tags {
	keys := splitList(s)
	if len(keys) == 0 {
		return nil
	}

	tags := make(sked.Tags, len(keys))
	for _, key := range keys {
		tags[key] = true
	}

	return tags
}

func splitList(s string) []string {
	keys := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}

	return keys
}

func newFlagSet(name string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("sked "+name, flag.ContinueOnError)
	fs.SetOutput(output)

	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}

	return nil
}

var errMissingFlag = errors.New("missing required flag")

func requireFlag(name string, present bool) error {
	if !present {
		return fmt.Errorf("%w: %w -%s", errUsage, errMissingFlag, name)
	}

	return nil
}
