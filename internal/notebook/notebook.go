// Package notebook reads and writes the on-disk notebook format: a versioned
// JSON document of nested cells. The loader side is what the Open action
// delegates to; a failed load never disturbs the caller's document.
package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/logger"
)

// FormatVersion is the schema version written by Save and the only version
// Load accepts.
const FormatVersion = 1

// ErrBadFormat is returned for files that parse as JSON but are not a valid
// notebook.
var ErrBadFormat = errors.New("not a valid notebook file")

// fileNotebook is the top-level JSON object.
type fileNotebook struct {
	Description string     `json:"description,omitempty"`
	Version     int        `json:"version"`
	Cells       []fileCell `json:"cells"`
}

// fileCell is one serialized cell; children nest under "cells".
type fileCell struct {
	Type      string     `json:"cell_type"`
	Content   string     `json:"source"`
	Variables []string   `json:"variables,omitempty"`
	Cells     []fileCell `json:"cells,omitempty"`
}

// FileLoader loads notebooks from the filesystem. It satisfies
// action.Loader.
type FileLoader struct{}

// Load parses path into a fresh document tree. IDs are newly assigned; the
// file format carries structure and content, not identity.
func (FileLoader) Load(path string) (*document.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read notebook: %w", err)
	}
	return Decode(data)
}

// Decode parses raw notebook JSON into a document tree.
func Decode(data []byte) (*document.Tree, error) {
	var nb fileNotebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if nb.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, nb.Version)
	}
	tree := document.NewTree()
	for _, fc := range nb.Cells {
		if err := decodeCell(tree, fc, document.ID{}); err != nil {
			return nil, err
		}
	}
	logger.Debugf("notebook: decoded %d cells", tree.Len())
	return tree, nil
}

func decodeCell(tree *document.Tree, fc fileCell, parent document.ID) error {
	cell := document.NewCell(document.CellTypeFromString(fc.Type), fc.Content)
	cell.SetVariables(fc.Variables)
	var err error
	if (parent == document.ID{}) {
		err = tree.AppendRoot(cell)
	} else {
		err = tree.Insert(cell, parent, document.Child)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	for _, child := range fc.Cells {
		if err := decodeCell(tree, child, cell.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes a document tree to notebook JSON.
func Encode(tree *document.Tree, description string) ([]byte, error) {
	nb := fileNotebook{
		Description: description,
		Version:     FormatVersion,
	}
	for _, root := range tree.Roots() {
		fc, err := encodeCell(tree, root)
		if err != nil {
			return nil, err
		}
		nb.Cells = append(nb.Cells, fc)
	}
	return json.MarshalIndent(nb, "", "  ")
}

func encodeCell(tree *document.Tree, cell *document.Cell) (fileCell, error) {
	fc := fileCell{
		Type:      cell.Type.String(),
		Content:   cell.Content,
		Variables: cell.Variables(),
	}
	children, err := tree.Children(cell.ID())
	if err != nil {
		return fileCell{}, err
	}
	for _, child := range children {
		cfc, err := encodeCell(tree, child)
		if err != nil {
			return fileCell{}, err
		}
		fc.Cells = append(fc.Cells, cfc)
	}
	return fc, nil
}

// Save writes the document to path atomically: encode first, then a rename
// over the target, so a failed write never truncates an existing notebook.
func Save(tree *document.Tree, path, description string) error {
	data, err := Encode(tree, description)
	if err != nil {
		return fmt.Errorf("encode notebook: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write notebook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write notebook: %w", err)
	}
	logger.Infof("notebook: saved %d cells to %s", tree.Len(), path)
	return nil
}
