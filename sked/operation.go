package sked

import (
	"cmp"
	"strconv"

	"github.com/samber/mo"
)

// DefaultValueField is the field read by operations built without a Coercion.
const DefaultValueField = "value"

// Number is the set of types the arithmetic operations fold.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Coercion extracts the value an Operation folds from one event.
type Coercion[V any] func(ev ConcreteEvent) V

// Operation reduces the resolved event stream.
//
// Combine receives mo.None as accumulator before the first value unless the caller supplied
// an initial value. Finalize turns the final accumulator into the visible result.
type Operation[V, R any] interface {
	Coerce(ev ConcreteEvent) V
	Combine(acc mo.Option[V], value V) V
	Finalize(acc mo.Option[V]) R
	// RequiresOrder reports whether the result depends on the stream order.
	RequiresOrder() bool
}

// FieldValue reads a numeric field. Missing or non-numeric fields count as zero.
func FieldValue[V Number](key string) Coercion[V] {
	return func(ev ConcreteEvent) V {
		return toNumber[V](ev.Fields[key])
	}
}

// FieldAs reads a field of any type. A value of type V is returned as is, numbers are converted
// for the numeric types float64, int and int64, and anything else yields the zero value.
func FieldAs[V any](key string) Coercion[V] {
	return func(ev ConcreteEvent) V {
		raw := ev.Fields[key]
		if v, ok := raw.(V); ok {
			return v
		}

		var v V

		switch target := any(&v).(type) {
		case *float64:
			*target = toNumber[float64](raw)
		case *int:
			*target = toNumber[int](raw)
		case *int64:
			*target = toNumber[int64](raw)
		}

		return v
	}
}

// Constant coerces every event to v, e.g. Constant(1) with Sum counts events.
func Constant[V any](v V) Coercion[V] {
	return func(ConcreteEvent) V {
		return v
	}
}

func toNumber[V Number](raw any) V {
	switch v := raw.(type) {
	case float64:
		return V(v)
	case float32:
		return V(v)
	case int:
		return V(v)
	case int32:
		return V(v)
	case int64:
		return V(v)
	case uint:
		return V(v)
	case uint32:
		return V(v)
	case uint64:
		return V(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}

		return V(f)
	default:
		return 0
	}
}

func coercionOrDefault[V Number](coerce Coercion[V]) Coercion[V] {
	if coerce == nil {
		return FieldValue[V](DefaultValueField)
	}

	return coerce
}

/***** Sum *****/

// Sum adds up the coerced values.
type Sum[V Number] struct {
	coerce Coercion[V]
}

func NewSum[V Number](coerce Coercion[V]) Sum[V] {
	return Sum[V]{coerce: coercionOrDefault(coerce)}
}

func (s Sum[V]) Coerce(ev ConcreteEvent) V {
	return s.coerce(ev)
}

func (Sum[V]) Combine(acc mo.Option[V], value V) V {
	if sum, ok := acc.Get(); ok {
		return sum + value
	}

	return value
}

func (Sum[V]) Finalize(acc mo.Option[V]) V {
	return acc.OrEmpty()
}

func (Sum[V]) RequiresOrder() bool {
	return false
}

/***** Max *****/

// Max keeps the largest coerced value.
type Max[V cmp.Ordered] struct {
	coerce Coercion[V]
}

func NewMax[V cmp.Ordered](coerce Coercion[V]) Max[V] {
	if coerce == nil {
		coerce = FieldAs[V](DefaultValueField)
	}

	return Max[V]{coerce: coerce}
}

func (m Max[V]) Coerce(ev ConcreteEvent) V {
	return m.coerce(ev)
}

func (Max[V]) Combine(acc mo.Option[V], value V) V {
	if current, ok := acc.Get(); ok && current >= value {
		return current
	}

	return value
}

func (Max[V]) Finalize(acc mo.Option[V]) V {
	return acc.OrEmpty()
}

func (Max[V]) RequiresOrder() bool {
	return false
}

/***** Average *****/

// Average sums the coerced values and divides by an occurrence counter on Finalize.
//
// The counter is instance state: it starts at 1 and every Combine call increments it, so
// folding 4, 6 and 8 onto an initial 0 finalizes to 18/4 = 4.5. Reusing one Average for
// several aggregations keeps counting. Use Mean for the arithmetic mean of one aggregation.
type Average[V Number] struct {
	coerce Coercion[V]
	count  int
}

func NewAverage[V Number](coerce Coercion[V]) *Average[V] {
	return &Average[V]{coerce: coercionOrDefault(coerce), count: 1}
}

func (a *Average[V]) Coerce(ev ConcreteEvent) V {
	return a.coerce(ev)
}

func (a *Average[V]) Combine(acc mo.Option[V], value V) V {
	a.count++

	if sum, ok := acc.Get(); ok {
		return sum + value
	}

	return value
}

func (a *Average[V]) Finalize(acc mo.Option[V]) float64 {
	return float64(acc.OrEmpty()) / float64(a.count)
}

func (*Average[V]) RequiresOrder() bool {
	return false
}

// Count returns the current value of the occurrence counter.
func (a *Average[V]) Count() int {
	return a.count
}

/***** Mean *****/

// MeanAccumulator is the running state of Mean.
type MeanAccumulator struct {
	Sum   float64
	Count int
}

// Mean is the stateless arithmetic mean. Its accumulator carries the count, so one Mean value
// can serve any number of aggregations. Pass mo.None as initial value.
type Mean[V Number] struct {
	coerce Coercion[V]
}

func NewMean[V Number](coerce Coercion[V]) Mean[V] {
	return Mean[V]{coerce: coercionOrDefault(coerce)}
}

func (m Mean[V]) Coerce(ev ConcreteEvent) MeanAccumulator {
	return MeanAccumulator{Sum: float64(m.coerce(ev)), Count: 1}
}

func (Mean[V]) Combine(acc mo.Option[MeanAccumulator], value MeanAccumulator) MeanAccumulator {
	current := acc.OrEmpty()

	return MeanAccumulator{Sum: current.Sum + value.Sum, Count: current.Count + value.Count}
}

func (Mean[V]) Finalize(acc mo.Option[MeanAccumulator]) float64 {
	current := acc.OrEmpty()
	if current.Count == 0 {
		return 0
	}

	return current.Sum / float64(current.Count)
}

func (Mean[V]) RequiresOrder() bool {
	return false
}

/***** Latest *****/

// Latest keeps the value of the last event in date order, e.g. a balance snapshot.
type Latest[V any] struct {
	coerce Coercion[V]
}

func NewLatest[V any](coerce Coercion[V]) Latest[V] {
	if coerce == nil {
		coerce = FieldAs[V](DefaultValueField)
	}

	return Latest[V]{coerce: coerce}
}

func (l Latest[V]) Coerce(ev ConcreteEvent) V {
	return l.coerce(ev)
}

func (Latest[V]) Combine(_ mo.Option[V], value V) V {
	return value
}

func (Latest[V]) Finalize(acc mo.Option[V]) V {
	return acc.OrEmpty()
}

func (Latest[V]) RequiresOrder() bool {
	return true
}
