package notebook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quirelabs/quire/internal/document"
)

const sample = `{
  "description": "demo",
  "version": 1,
  "cells": [
    {"cell_type": "section", "source": "Intro"},
    {
      "cell_type": "input",
      "source": "x = 1",
      "variables": ["x"],
      "cells": [
        {"cell_type": "output", "source": "1"}
      ]
    },
    {"cell_type": "text", "source": "héllo wörld"}
  ]
}`

func TestDecode(t *testing.T) {
	tree, err := Decode([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, 4, tree.Len())

	roots := tree.Roots()
	require.Len(t, roots, 3)
	assert.Equal(t, document.CellSection, roots[0].Type)
	assert.Equal(t, "x = 1", roots[1].Content)
	assert.Equal(t, []string{"x"}, roots[1].Variables())
	assert.Equal(t, "héllo wörld", roots[2].Content)

	children, err := tree.Children(roots[1].ID())
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, document.CellOutput, children[0].Type)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	_, err := Decode([]byte(`{"version": 99, "cells": []}`))
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tree, err := Decode([]byte(sample))
	require.NoError(t, err)

	data, err := Encode(tree, "demo")
	require.NoError(t, err)

	again, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, tree.Len(), again.Len())

	want := tree.Cells()
	got := again.Cells()
	for i := range want {
		assert.Equal(t, want[i].Type, got[i].Type, "cell %d type", i)
		assert.Equal(t, want[i].Content, got[i].Content, "cell %d content", i)
		assert.Equal(t, want[i].Variables(), got[i].Variables(), "cell %d variables", i)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tree, err := Decode([]byte(sample))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "demo.qnb")
	require.NoError(t, Save(tree, path, "demo"))

	loaded, err := FileLoader{}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, tree.Len(), loaded.Len())
}

func TestSaveDoesNotClobberOnEncodeTarget(t *testing.T) {
	// Save goes through a temp file and rename; the temp file must not be
	// left behind.
	tree := document.NewTree()
	require.NoError(t, tree.AppendRoot(document.NewCell(document.CellText, "x")))
	dir := t.TempDir()
	path := filepath.Join(dir, "nb.qnb")
	require.NoError(t, Save(tree, path, ""))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "nb.qnb", entries[0].Name())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := FileLoader{}.Load(filepath.Join(t.TempDir(), "absent.qnb"))
	assert.Error(t, err)
}
