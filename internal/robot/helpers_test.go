package robot

import (
	"testing"

	"github.com/nerrad567/robotlan-core/internal/shadow"
)

// snapshotOf merges each JSON report in order and returns the result.
func snapshotOf(t *testing.T, reports ...string) shadow.Snapshot {
	t.Helper()
	doc := shadow.New()
	for _, r := range reports {
		if _, err := doc.MergeJSON([]byte(r)); err != nil {
			t.Fatalf("MergeJSON(%s) error = %v", r, err)
		}
	}
	return doc.Snapshot()
}

func mustModel(t *testing.T, f Family) Model {
	t.Helper()
	m, err := ModelFor(f)
	if err != nil {
		t.Fatalf("ModelFor(%q) error = %v", f, err)
	}
	return m
}
