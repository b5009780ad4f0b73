package ingest

import (
	"fmt"
	"strings"

	"github.com/sells-group/aegis/internal/model"
)

// Markdown splits a markdown document into units, one per paragraph or
// block, addressed by heading path. A unit under "## Install" in
// "# Setup" gets an ID like "setup/install/p2": edits to the text keep
// the ID, and the fingerprint catches the change.
type Markdown struct{}

// NewMarkdown returns the markdown adapter.
func NewMarkdown() *Markdown { return &Markdown{} }

func (*Markdown) Extensions() []string { return []string{".md", ".markdown"} }

func (*Markdown) Parse(id string, content []byte) (*model.Document, error) {
	doc := &model.Document{ID: id}

	// heading slug per level; level 0 unused
	path := make([]string, 7)
	depth := 0
	ordinal := 0
	inFence := false
	seen := map[string]int{}

	var block []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(block, "\n"))
		block = block[:0]
		if text == "" {
			return
		}
		ordinal++
		doc.Units = append(doc.Units, model.Unit{
			ID:   headingPath(path[1:depth+1]) + fmt.Sprintf("p%d", ordinal),
			Text: text,
		})
	}

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			// code blocks are not prose; skip them
			continue
		}

		if level := headingLevel(trimmed); level > 0 {
			flush()
			title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if doc.Title == "" && level == 1 {
				doc.Title = title
			}
			path[level] = slugify(title)
			for l := level + 1; l < len(path); l++ {
				path[l] = ""
			}
			depth = level
			// Repeated heading paths get a numeric suffix so sibling
			// sections with the same title keep distinct unit IDs.
			prefix := headingPath(path[1 : level+1])
			seen[prefix]++
			if n := seen[prefix]; n > 1 {
				path[level] = fmt.Sprintf("%s-%d", path[level], n)
			}
			ordinal = 0
			continue
		}

		if trimmed == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()

	if doc.Title == "" {
		doc.Title = id
	}
	return doc, nil
}

func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || n == len(line) || line[n] != ' ' {
		return 0
	}
	return n
}

func headingPath(slugs []string) string {
	var b strings.Builder
	for _, s := range slugs {
		if s == "" {
			continue
		}
		b.WriteString(s)
		b.WriteByte('/')
	}
	return b.String()
}

// Plaintext treats blank-line separated paragraphs as units with
// ordinal IDs.
type Plaintext struct{}

// NewPlaintext returns the plaintext adapter.
func NewPlaintext() *Plaintext { return &Plaintext{} }

func (*Plaintext) Extensions() []string { return []string{".txt", ".text"} }

func (*Plaintext) Parse(id string, content []byte) (*model.Document, error) {
	doc := &model.Document{ID: id, Title: id}

	ordinal := 0
	var block []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(block, "\n"))
		block = block[:0]
		if text == "" {
			return
		}
		ordinal++
		doc.Units = append(doc.Units, model.Unit{
			ID:   fmt.Sprintf("p%d", ordinal),
			Text: text,
		})
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()
	return doc, nil
}
