package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/samber/mo"

	"github.com/AntonStoeckl/sked-go/sked"
)

const (
	defaultSeedEvents    = 1000
	defaultSeedTemplates = 10
	defaultSeedDays      = 365
	maxSeedValue         = 100
)

var seedRules = []string{
	"FREQ=DAILY",
	"FREQ=WEEKLY;BYDAY=MO",
	"FREQ=WEEKLY;BYDAY=MO,WE,FR",
	"FREQ=MONTHLY;BYMONTHDAY=1",
	"FREQ=MONTHLY;BYDAY=-1FR",
}

type seedView struct {
	Events    int    `json:"events"`
	Templates int    `json:"templates"`
	Window    string `json:"window"`
}

// runSeed fills the store with random events and templates, e.g. for trying out aggregations.
func runSeed(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("seed", a.errOut)
	numEvents := fs.Int("events", defaultSeedEvents, "number of concrete events")
	numTemplates := fs.Int("templates", defaultSeedTemplates, "number of recurring templates")
	days := fs.Int("days", defaultSeedDays, "spread the events over this many days before today")
	tags := fs.String("tags", "work,home", "tag keys; every third event stays untagged")
	randSeed := fs.Uint64("seed", 1, "seed of the random generator")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *numEvents < 0 || *numTemplates < 0 || *days <= 0 {
		return fmt.Errorf("%w: -events and -templates must not be negative, -days must be positive", errUsage)
	}

	rnd := rand.New(rand.NewPCG(*randSeed, *randSeed)) //nolint:gosec
	keys := splitList(*tags)
	today := a.today()
	first := today.AddDays(-*days)

	for i := 0; i < *numEvents; i++ {
		ev := sked.ConcreteEvent{
			Occurred: first.AddDays(rnd.IntN(*days)),
			Tags:     randomTags(rnd, keys, i),
			Fields:   sked.Fields{a.cfg.Engine.ValueField: randomValue(rnd)},
		}

		if _, err := a.repo.AppendEvent(ctx, ev); err != nil {
			return fmt.Errorf("seeding event %d: %w", i, err)
		}
	}

	for i := 0; i < *numTemplates; i++ {
		lower := first.AddDays(rnd.IntN(*days))
		upper := mo.None[sked.Date]()

		if rnd.IntN(2) == 0 {
			upper = mo.Some(today.AddDays(1 + rnd.IntN(*days)))
		}

		tpl := sked.RecurringEventTemplate{
			Rule:    seedRules[rnd.IntN(len(seedRules))],
			Range:   sked.TimeRange{Lower: mo.Some(lower), Upper: upper},
			Tags:    randomTags(rnd, keys, i),
			Factory: sked.Fields{a.cfg.Engine.ValueField: randomValue(rnd)},
		}

		if _, err := a.repo.AppendTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("seeding template %d: %w", i, err)
		}
	}

	a.logger.Info("store seeded", "events", *numEvents, "templates", *numTemplates)

	return writeJSONLine(stdout, seedView{
		Events:    *numEvents,
		Templates: *numTemplates,
		Window:    sked.Between(first, today).String(),
	})
}

func randomTags(rnd *rand.Rand, keys []string, i int) sked.Tags {
	if len(keys) == 0 || i%3 == 0 {
		return nil
	}

	return sked.Tags{keys[rnd.IntN(len(keys))]: true}
}

// randomValue returns a value with two decimals.
func randomValue(rnd *rand.Rand) float64 {
	return math.Round(rnd.Float64()*maxSeedValue*100) / 100
}
