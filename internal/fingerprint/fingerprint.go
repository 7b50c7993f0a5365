// Package fingerprint implements the Fingerprint Engine: a deterministic
// content hash over a leaf task's inputs, command, toolchain identity,
// and transitive dependency fingerprints.
//
// Hashing builds an ordered hashable record field by field, then hashes
// input files in parallel with a bounded worker pool before folding the
// result into that record.
package fingerprint

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.taskgraph.dev/core/internal/core/domain"
	"go.taskgraph.dev/core/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// schemaVersion is a build-tool constant folded into every fingerprint;
// bumping it invalidates every previously cached entry.
const schemaVersion = "1"

// Engine implements ports.FingerprintEngine.
type Engine struct {
	resolver     ports.InputResolver
	registry     *Registry
	lockfileHash string
}

// New creates a Fingerprint Engine. lockfileHash is the content hash of
// the workspace's package-manager lockfile, computed once per build by
// the caller (build.go's hashLockfile) and passed through unchanged for
// the life of a build. registry supplies per-task-kind extra fields; pass an empty
// Registry to fall back to the generic record for every task.
func New(resolver ports.InputResolver, registry *Registry, lockfileHash string) *Engine {
	return &Engine{resolver: resolver, registry: registry, lockfileHash: lockfileHash}
}

func (e *Engine) registryOrDefault() *Registry {
	if e.registry == nil {
		return NewRegistry()
	}
	return e.registry
}

type fileEntry struct {
	path string
	hash uint64
}

// Fingerprint implements ports.FingerprintEngine.
func (e *Engine) Fingerprint(task *domain.Task, dependencyFingerprints map[string]string) (string, error) {
	inputPaths, err := e.resolver.ResolveInputs(stringsOf(task.Inputs), task.WorkingDir.String())
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrInputHashComputationFailed.Error())
	}

	files, err := hashFiles(inputPaths)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrInputHashComputationFailed.Error())
	}

	h := xxhash.New()

	writeField(h, schemaVersion)
	writeField(h, runtime.Version())
	writeField(h, runtime.GOARCH)
	writeField(h, runtime.GOOS)
	writeField(h, e.lockfileHash)
	writeField(h, task.Package.String())
	writeField(h, task.Name.String())
	writeField(h, executableOf(task.Command))
	writeField(h, commandStringOf(task.Command))
	writeField(h, domain.GenerateEnvID(task.Tools))

	handler := e.registryOrDefault().HandlerFor(task)
	extra, err := handler.ExtraFields(task)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrInputHashComputationFailed.Error())
	}
	for _, f := range extra {
		writeField(h, f)
	}

	for _, f := range files {
		writeField(h, f.path)
		writeUint64Field(h, f.hash)
	}

	for _, d := range sortedDependencyNames(dependencyFingerprints) {
		writeField(h, d)
		writeField(h, dependencyFingerprints[d])
	}

	sum := h.Sum64()
	var fp domain.Fingerprint
	for i := 0; i < 8; i++ {
		fp[i] = byte(sum >> (56 - 8*i))
	}
	return fp.String(), nil
}

// hashFiles hashes every path in parallel and returns entries sorted by
// path, satisfying the "reordering inputs does not change the
// fingerprint" invariant.
func hashFiles(paths []string) ([]fileEntry, error) {
	entries := make([]fileEntry, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			sum, err := hashFile(p)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to hash file"), "path", p)
			}
			entries[i] = fileEntry{path: p, hash: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
	return entries, nil
}

func hashFile(path string) (uint64, error) {
	//nolint:gosec // path is resolved from declared, trusted input globs
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, bufio.NewReader(f)); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func writeField(h *xxhash.Digest, s string) {
	_, _ = h.Write([]byte(s))
	_, _ = h.Write([]byte{0})
}

func writeUint64Field(h *xxhash.Digest, v uint64) {
	var b [8]byte
	for i := range b {
		b[i] = byte(v >> (56 - 8*i))
	}
	_, _ = h.Write(b[:])
	_, _ = h.Write([]byte{0})
}

func sortedDependencyNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringsOf(is []domain.InternedString) []string {
	out := make([]string, len(is))
	for i, s := range is {
		out[i] = s.String()
	}
	return out
}

func executableOf(command []string) string {
	if len(command) == 0 {
		return ""
	}
	return command[0]
}

func commandStringOf(command []string) string {
	result := ""
	for i, c := range command {
		if i > 0 {
			result += " "
		}
		result += c
	}
	return result
}
