// Package sked computes aggregate statistics over a stream of dated events that
// comes from two sources: concrete events recorded in storage and virtual
// occurrences generated from the recurrence rules of recurring event templates.
//
// The pipeline for one aggregation is:
//   - NormalizeToFuture restricts virtual generation to the window part after today
//   - Expand turns every overlapping template into a lazy, strictly increasing occurrence iterator
//   - the per-template iterators are k-way merged into one ascending virtual stream
//   - Engine.Overlap combines that stream with the concrete events, dropping virtual
//     occurrences that were already materialized and concrete events that were amended
//   - Aggregate and AggregateByTag fold the resolved stream through an Operation
//
// Every stage is an Iterator that only pulls what the consumer asks for, so callers can
// stop early by closing the iterator.
//
// Storage is reached through the EventRepository and TemplateRepository interfaces.
// The sqlengine sub-package provides a goqu based implementation for PostgreSQL and SQLite.
//
// Common usage pattern:
//
//	engine, _ := sked.NewEngine(repo, repo, sked.WithLogger(slog.Default()))
//
//	window := sked.Between(sked.NewDate(2024, 1, 1), sked.NewDate(2024, 2, 1))
//	total, err := sked.Aggregate(ctx, engine, window, sked.NewSum(sked.FieldValue[float64]("amount")), mo.Some(0.0))
//	if err != nil {
//		// handle error
//	}
package sked
