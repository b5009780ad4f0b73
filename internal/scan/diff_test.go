package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/aegis/internal/model"
)

func TestDiffFirstScanAddsEverything(t *testing.T) {
	doc := &model.Document{ID: "d", Units: []model.Unit{
		{ID: "a", Fingerprint: "fp-a"},
		{ID: "b", Fingerprint: "fp-b"},
	}}

	d := Diff(nil, doc)
	assert.Len(t, d.Added, 2)
	assert.Empty(t, d.Changed)
	assert.Empty(t, d.Unchanged)
	assert.Empty(t, d.Removed)
}

func TestDiffClassifiesAllFourStates(t *testing.T) {
	prev := map[string]string{
		"keep":   "fp-keep",
		"edit":   "fp-edit-old",
		"delete": "fp-delete",
	}
	doc := &model.Document{ID: "d", Units: []model.Unit{
		{ID: "keep", Fingerprint: "fp-keep"},
		{ID: "edit", Fingerprint: "fp-edit-new"},
		{ID: "fresh", Fingerprint: "fp-fresh"},
	}}

	d := Diff(prev, doc)
	assert.Equal(t, []string{"fresh"}, unitIDs(d.Added))
	assert.Equal(t, []string{"edit"}, unitIDs(d.Changed))
	assert.Equal(t, []string{"keep"}, unitIDs(d.Unchanged))
	assert.Equal(t, []string{"delete"}, d.Removed)
}

func TestDiffRemovedSorted(t *testing.T) {
	prev := map[string]string{"z": "1", "a": "2", "m": "3"}
	d := Diff(prev, &model.Document{ID: "d"})
	assert.Equal(t, []string{"a", "m", "z"}, d.Removed)
}

func unitIDs(units []model.Unit) []string {
	var ids []string
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return ids
}
