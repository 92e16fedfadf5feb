package aggregation

import "github.com/flexprice/flexprice/internal/domain/event"

// Filter is a ChargeFilter's matching predicate: the event's properties must
// equal every key/value pair listed, projected from BillableMetricFilter/
// ChargeFilterValue rows. An empty Filter matches every event for the metric.
type Filter struct {
	Values map[string]string
}

// Matches reports whether e satisfies every key/value pair in f.
func (f Filter) Matches(e *event.Event) bool {
	for key, want := range f.Values {
		got, ok := stringProperty(e, key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// SelectFilter returns the first of candidates that matches e, for the
// deterministic first-match tie-break spec §4.2 requires when multiple
// charge filters on the same charge could match. A charge with no matching
// filter falls back to the unfiltered aggregation, signalled by ok=false.
func SelectFilter(e *event.Event, candidates []Filter) (Filter, bool) {
	for _, f := range candidates {
		if f.Matches(e) {
			return f, true
		}
	}
	return Filter{}, false
}

func stringProperty(e *event.Event, key string) (string, bool) {
	v, ok := e.Properties[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	default:
		return "", false
	}
}
