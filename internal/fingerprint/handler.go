package fingerprint

import "go.taskgraph.dev/core/internal/core/domain"

// Capability names a fingerprinting behavior a TaskHandler may opt into
// beyond the generic shell-command default.
type Capability string

const (
	// CapabilityToolVersionProbe means the handler can report the
	// installed version of a task's declared tool in place of the
	// caller-supplied Task.Tools entry, catching drift a stale
	// configuration value would hide.
	CapabilityToolVersionProbe Capability = "tool-version-probe"
)

// TaskHandler adapts fingerprint computation to a specific task kind
// (e.g. a particular build tool) by contributing additional canonical
// fields beyond the generic command-and-inputs record.
type TaskHandler interface {
	// Supports reports whether this handler applies to task.
	Supports(task *domain.Task) bool

	// Capabilities lists what this handler contributes.
	Capabilities() []Capability

	// ExtraFields returns additional deterministic (key, value) pairs
	// folded into the fingerprint after the generic record.
	ExtraFields(task *domain.Task) ([]string, error)
}

// Registry holds TaskHandlers in registration order and returns the
// first one that supports a given task, falling back to a handler that
// contributes nothing beyond the generic record.
type Registry struct {
	handlers []TaskHandler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends h to the registry. Earlier registrations take
// precedence over later ones for tasks both support.
func (r *Registry) Register(h TaskHandler) {
	r.handlers = append(r.handlers, h)
}

// HandlerFor returns the first registered handler supporting task, or
// the no-op default handler if none do.
func (r *Registry) HandlerFor(task *domain.Task) TaskHandler {
	for _, h := range r.handlers {
		if h.Supports(task) {
			return h
		}
	}
	return defaultHandler{}
}

// defaultHandler supports every task and contributes no extra fields:
// the generic command-and-inputs record is already sufficient for a
// plain shell-command task.
type defaultHandler struct{}

func (defaultHandler) Supports(*domain.Task) bool            { return true }
func (defaultHandler) Capabilities() []Capability             { return nil }
func (defaultHandler) ExtraFields(*domain.Task) ([]string, error) { return nil, nil }
