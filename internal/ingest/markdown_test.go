package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = `# Setup Guide

Welcome to the guide.

## Install

Run the installer.

Then reboot.

` + "```" + `
sudo make install
` + "```" + `

## Configure

### Network

Set the address.
`

func TestMarkdownParse(t *testing.T) {
	doc, err := NewMarkdown().Parse("setup-guide", []byte(sampleMarkdown))
	require.NoError(t, err)

	assert.Equal(t, "setup-guide", doc.ID)
	assert.Equal(t, "Setup Guide", doc.Title)

	ids := make([]string, len(doc.Units))
	for i, u := range doc.Units {
		ids[i] = u.ID
	}
	assert.Equal(t, []string{
		"setup-guide/p1",
		"setup-guide/install/p1",
		"setup-guide/install/p2",
		"setup-guide/configure/network/p1",
	}, ids)

	assert.Equal(t, "Welcome to the guide.", doc.Units[0].Text)
	assert.Equal(t, "Run the installer.", doc.Units[1].Text)
}

func TestMarkdownSkipsCodeFences(t *testing.T) {
	doc, err := NewMarkdown().Parse("d", []byte(sampleMarkdown))
	require.NoError(t, err)
	for _, u := range doc.Units {
		assert.NotContains(t, u.Text, "sudo make install")
	}
}

func TestMarkdownUnitIDsStableUnderEdits(t *testing.T) {
	md := NewMarkdown()
	before, err := md.Parse("d", []byte("# A\n\nFirst paragraph.\n\nSecond paragraph.\n"))
	require.NoError(t, err)
	after, err := md.Parse("d", []byte("# A\n\nFirst paragraph, edited in place.\n\nSecond paragraph.\n"))
	require.NoError(t, err)

	require.Len(t, before.Units, 2)
	require.Len(t, after.Units, 2)
	assert.Equal(t, before.Units[0].ID, after.Units[0].ID)
	assert.Equal(t, before.Units[1].ID, after.Units[1].ID)
	assert.NotEqual(t, before.Units[0].Text, after.Units[0].Text)
}

func TestMarkdownDuplicateHeadingsKeepDistinctIDs(t *testing.T) {
	src := `# Changelog

## Fixed

First round of fixes.

## Fixed

Second round of fixes.

### Details

Nested under the second section.
`
	doc, err := NewMarkdown().Parse("changelog", []byte(src))
	require.NoError(t, err)

	ids := make([]string, len(doc.Units))
	for i, u := range doc.Units {
		ids[i] = u.ID
	}
	assert.Equal(t, []string{
		"changelog/fixed/p1",
		"changelog/fixed-2/p1",
		"changelog/fixed-2/details/p1",
	}, ids)

	unique := map[string]bool{}
	for _, id := range ids {
		assert.False(t, unique[id], "duplicate unit ID %s", id)
		unique[id] = true
	}
}

func TestMarkdownMultipleHashesNotHeading(t *testing.T) {
	doc, err := NewMarkdown().Parse("d", []byte("#nospace is a tag, not a heading.\n"))
	require.NoError(t, err)
	require.Len(t, doc.Units, 1)
	assert.Equal(t, "p1", doc.Units[0].ID)
	assert.Equal(t, "d", doc.Title)
}

func TestPlaintextParse(t *testing.T) {
	doc, err := NewPlaintext().Parse("notes", []byte("First block.\nStill first.\n\nSecond block.\n"))
	require.NoError(t, err)

	require.Len(t, doc.Units, 2)
	assert.Equal(t, "p1", doc.Units[0].ID)
	assert.Equal(t, "First block.\nStill first.", doc.Units[0].Text)
	assert.Equal(t, "p2", doc.Units[1].ID)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody.\n"), 0o644))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "guide", doc.ID)
	assert.Equal(t, "Title", doc.Title)
	require.Len(t, doc.Units, 1)

	_, err = LoadFile(filepath.Join(dir, "guide.docx"))
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "setup-guide", slugify("Setup Guide"))
	assert.Equal(t, "faq-v2", slugify("  FAQ (v2)! "))
	assert.Equal(t, "", slugify("---"))
}
