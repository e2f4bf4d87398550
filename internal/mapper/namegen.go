package mapper

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/vireoheap/mmapheap/internal/diag"
)

const minSuffixRun = 6

// suffixRun reports the length of the trailing run of 'X' characters in
// template, or 0 if it does not end in 'X'. It does not apply the
// minSuffixRun minimum; fillTemplate does.
func suffixRun(template string) int {
	n := 0
	for i := len(template) - 1; i >= 0 && template[i] == 'X'; i-- {
		n++
	}
	return n
}

// fillTemplate derives a fresh file name from template by replacing its
// trailing X-run with random hex characters. It never mutates template
// itself (spec.md §9's naming-template note): each call allocates a new
// string. Every call with the same template is expected to produce a
// distinct name; callers retry on collision rather than relying on this
// alone.
func fillTemplate(template string) (string, error) {
	run := suffixRun(template)
	if run < minSuffixRun {
		return "", diag.New(diag.ConfigInvalid, "naming template %q has no fillable suffix of at least %d characters", template, minSuffixRun)
	}

	buf := make([]byte, (run+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", diag.New(diag.MappingFailed, "failed to generate random suffix: %v", err)
	}

	suffix := hex.EncodeToString(buf)[:run]
	prefix := template[:len(template)-run]

	return prefix + suffix, nil
}
