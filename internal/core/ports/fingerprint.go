package ports

import "go.taskgraph.dev/core/internal/core/domain"

// FingerprintEngine is the Fingerprint Engine component (C1): it
// computes a deterministic content hash for a leaf task, given its
// resolved input files and the fingerprints of its already-computed
// dependencies.
type FingerprintEngine interface {
	// Fingerprint computes task's fingerprint. dependencyFingerprints
	// maps each strong predecessor's qualified name to its own already
	// computed fingerprint; dependency fingerprints are folded in by
	// value, not by reference to the dependency's own inputs.
	Fingerprint(task *domain.Task, dependencyFingerprints map[string]string) (string, error)
}

// InputResolver expands a task's declared input globs into concrete,
// sorted file paths rooted at packageDir.
type InputResolver interface {
	ResolveInputs(globs []string, packageDir string) ([]string, error)
	ResolveOutputs(globs []string, packageDir string) ([]string, error)
}
