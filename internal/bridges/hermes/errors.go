package hermes

import "errors"

// Domain errors for the Hermes NLU bridge.
var (
	// ErrDecode is returned when an inbound payload is not valid JSON for
	// its topic. Such messages are dropped without a reply.
	ErrDecode = errors.New("hermes: cannot decode payload")

	// ErrScopeMismatch marks a message for a site outside the site filter.
	ErrScopeMismatch = errors.New("hermes: site not handled by this bridge")

	// ErrInvalidSite marks a site id that cannot be used as a topic level.
	ErrInvalidSite = errors.New("hermes: invalid site id")

	// ErrUnknownTopic is returned for a message on a topic the bridge did
	// not subscribe to.
	ErrUnknownTopic = errors.New("hermes: unknown topic")

	// ErrQueueFull is returned when a train request arrives while the
	// training queue is at capacity.
	ErrQueueFull = errors.New("training queue full")

	// ErrStopped is returned when work is submitted after Stop.
	ErrStopped = errors.New("hermes: bridge stopped")

	// ErrMissingDependency is returned by NewBridge when a required
	// option is nil.
	ErrMissingDependency = errors.New("hermes: missing dependency")
)
