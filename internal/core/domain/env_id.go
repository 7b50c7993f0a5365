package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// GenerateEnvID computes a deterministic, order-independent digest of a
// toolchain identity map (tool name -> resolved version spec). It is used
// as the toolchain-identity component of a task's fingerprint: two
// workspaces with the same resolved toolchain produce the same ID
// regardless of map iteration order.
func GenerateEnvID(tools map[string]string) string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(tools[name])
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
