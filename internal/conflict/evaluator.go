package conflict

// ResourceKind describes whether bookings of a resource carry a lifecycle
// status, and which statuses release the slot.
type ResourceKind struct {
	excluded map[Status]struct{}
}

// WithStatus is the kind for bookings with a lifecycle (lessons). Bookings in
// any of the excluded statuses never block a candidate.
func WithStatus(excluded ...Status) ResourceKind {
	k := ResourceKind{excluded: make(map[Status]struct{}, len(excluded))}
	for _, s := range excluded {
		k.excluded[s] = struct{}{}
	}
	return k
}

// WithoutStatus is the kind for bookings without a lifecycle (vehicle reservations).
func WithoutStatus() ResourceKind {
	return ResourceKind{}
}

// Lessons excludes cancelled lessons from conflict consideration.
var Lessons = WithStatus(StatusCancelled)

// Reservations considers every vehicle reservation.
var Reservations = WithoutStatus()

func (k ResourceKind) releases(s Status) bool {
	_, ok := k.excluded[s]
	return ok
}

// Evaluate returns the existing bookings that would overlap the candidate.
//
// existing may span more dates and resources than the candidate; it is
// re-filtered by exact resource and date. A malformed time on the candidate or
// on a considered booking returns ErrInvalidFormat rather than a clear result.
func Evaluate(kind ResourceKind, candidate Candidate, existing []Booking) (Result, error) {
	start, err := ToMinutes(candidate.StartTime)
	if err != nil {
		return Result{}, err
	}
	end, err := ToMinutes(candidate.EndTime)
	if err != nil {
		return Result{}, err
	}

	var conflicts []Booking
	for _, b := range existing {
		if b.ResourceID != candidate.ResourceID || b.Date != candidate.Date {
			continue
		}
		if candidate.ExcludeID != "" && b.ID == candidate.ExcludeID {
			continue
		}
		if kind.releases(b.Status) {
			continue
		}

		bs, err := ToMinutes(b.StartTime)
		if err != nil {
			return Result{}, err
		}
		be, err := ToMinutes(b.EndTime)
		if err != nil {
			return Result{}, err
		}
		if Overlaps(start, end, bs, be) {
			conflicts = append(conflicts, b)
		}
	}

	return Result{
		HasConflict: len(conflicts) > 0,
		Conflicts:   conflicts,
	}, nil
}
