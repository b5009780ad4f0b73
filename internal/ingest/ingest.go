// Package ingest turns source documents into reviewable units. Unit IDs
// must be stable across edits: a unit keeps its ID as long as its
// position in the document structure is unchanged, so the scan diff can
// tell an edited unit from a moved one.
package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aegis/internal/model"
)

// Adapter parses one source format into a document.
type Adapter interface {
	// Extensions lists the file extensions (with dot, lowercase) this
	// adapter handles.
	Extensions() []string
	// Parse builds a document from raw content. id becomes the document
	// ID; title is derived from content where the format allows.
	Parse(id string, content []byte) (*model.Document, error)
}

// LoadFile reads path and parses it with the adapter matching its
// extension. The document ID defaults to the file name without
// extension.
func LoadFile(path string, adapters ...Adapter) (*model.Document, error) {
	if len(adapters) == 0 {
		adapters = []Adapter{NewMarkdown(), NewPlaintext()}
	}

	ext := strings.ToLower(filepath.Ext(path))
	var adapter Adapter
	for _, a := range adapters {
		for _, e := range a.Extensions() {
			if e == ext {
				adapter = a
			}
		}
	}
	if adapter == nil {
		return nil, eris.Errorf("ingest: no adapter for %q", ext)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}

	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	return adapter.Parse(id, content)
}

// slugify lowercases s and collapses runs of non-alphanumerics into
// single hyphens.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
