package domain

// Freshness tells callers where a served value came from.
type Freshness int

const (
	// FreshnessFresh value was fetched from the remote source by this call.
	FreshnessFresh Freshness = iota
	// FreshnessCached value was served from a cache inside its freshness window.
	FreshnessCached
	// FreshnessDegraded the remote source failed; value is stale, a fallback or zero.
	FreshnessDegraded
)

// String returns the string representation.
func (f Freshness) String() string {
	switch f {
	case FreshnessFresh:
		return "fresh"
	case FreshnessCached:
		return "cached"
	case FreshnessDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Status is the tagged outcome attached to every served value.
// Reason is set only when Freshness is FreshnessDegraded.
type Status struct {
	Freshness Freshness
	Reason    error
}

// Fresh returns a fresh status.
func Fresh() Status { return Status{Freshness: FreshnessFresh} }

// Cached returns a cached status.
func Cached() Status { return Status{Freshness: FreshnessCached} }

// Degraded returns a degraded status carrying reason.
func Degraded(reason error) Status {
	return Status{Freshness: FreshnessDegraded, Reason: reason}
}

// IsDegraded reports whether the value is stale, a fallback or zero.
func (s Status) IsDegraded() bool {
	return s.Freshness == FreshnessDegraded
}
