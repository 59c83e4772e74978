package sked

import (
	"errors"
)

var ErrUnboundedWindow = errors.New("unbounded window: an ordered merge of virtual occurrences needs an upper bound")
var ErrExcessiveTemplateFanOut = errors.New("too many recurring event templates overlap the window")
var ErrOperationOrderingMismatch = errors.New("operation requires ordered aggregation but unordered was requested")
var ErrInvalidTimeRange = errors.New("invalid time range: lower bound is after upper bound")
var ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")
var ErrMissingLowerBound = errors.New("recurrence expansion needs a lower bound")
var ErrNilRepository = errors.New("nil repository supplied")
var ErrInvalidMaxTemplates = errors.New("max templates must be positive")
var ErrNilClock = errors.New("nil clock supplied")
var ErrNilLocation = errors.New("nil location supplied")
var ErrNilRecurrenceEvaluator = errors.New("nil recurrence evaluator supplied")
var ErrQueryingEventsFailed = errors.New("querying concrete events failed")
var ErrQueryingTemplatesFailed = errors.New("querying recurring event templates failed")
var ErrQueryingAccrualsFailed = errors.New("querying accruals failed")

// DefaultMaxTemplates is the number of templates that may overlap one window before
// the merge refuses to open more recurrence iterators.
const DefaultMaxTemplates = 1000
