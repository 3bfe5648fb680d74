package async

// DefaultMaxWaiters is the pending-slot capacity used when NewExclusive is
// given a zero maxWaiters.
const DefaultMaxWaiters = 3

// Operation is a unit of work run under exclusive ownership of the resource.
// It owns the resource from invocation until it calls release, across any
// asynchronous suspensions in between.
type Operation[T any] func(resource T, release Release)

// Exclusive manages exclusive ownership of a resource with asynchronous
// semantics: a mutex for the callback world, usable where no preemptive
// scheduler exists. Excess starts are parked in a fixed set of pending
// slots; exhausting the slots is a capacity-planning bug and halts.
//
// Not goroutine-safe: all starts and releases must happen on the single
// cooperative execution context.
type Exclusive[T any] struct {
	resource    T
	outstanding bool
	pending     []Operation[T]
}

// NewExclusive returns a gate over resource. The resource is aliased, never
// copied; the caller keeps it alive for the gate's lifetime. maxWaiters
// bounds the number of simultaneously parked operations and defaults to
// DefaultMaxWaiters when zero.
func NewExclusive[T any](resource T, maxWaiters int) *Exclusive[T] {
	if maxWaiters <= 0 {
		maxWaiters = DefaultMaxWaiters
	}
	return &Exclusive[T]{
		resource: resource,
		pending:  make([]Operation[T], maxWaiters),
	}
}

// AsyncStart invokes op when the resource is next available. If the gate is
// idle that is immediately and synchronously; op then runs until it chooses
// to suspend. Otherwise op is parked in the first free pending slot. op is
// passed the resource and a release callback that must be called exactly
// once when op no longer needs the resource.
func (e *Exclusive[T]) AsyncStart(op Operation[T]) {
	if !e.outstanding {
		e.outstanding = true
		op(e.resource, func() {
			e.outstanding = false
			e.maybeStartQueued()
		})
		return
	}

	for i, item := range e.pending {
		if item == nil {
			e.pending[i] = op
			return
		}
	}

	// Too many callers wanted the resource at the same time.
	panic("async: exclusive gate pending slots exhausted")
}

// maybeStartQueued hands the resource to the first parked operation, in slot
// order rather than arrival order. Going back through AsyncStart lets an
// operation that completes synchronously cascade into the next one.
func (e *Exclusive[T]) maybeStartQueued() {
	if e.outstanding {
		panic("async: release with operation still outstanding")
	}

	for i, item := range e.pending {
		if item != nil {
			e.pending[i] = nil
			e.AsyncStart(item)
			return
		}
	}
}
