// Package document implements the notebook cell tree: an ordered forest of
// cells indexed by stable IDs. The tree is a passive container; all editing
// goes through action objects so that every change can be undone.
package document

import (
	"sort"

	"github.com/oklog/ulid/v2"
)

// ID identifies a cell for its whole lifetime. IDs are never reused, even
// after the cell is removed. The zero value means "no cell".
type ID = ulid.ULID

// NewID returns a fresh process-unique cell ID.
func NewID() ID {
	return ulid.Make()
}

// CellType discriminates what a cell holds. Rendering of each type is owned
// by the presentation layer; the tree only stores the discriminator.
type CellType int

const (
	CellUnknown CellType = iota
	CellInput            // evaluatable source
	CellOutput           // result produced by the compute engine
	CellText             // prose/documentation
	CellImage            // encoded image payload
	CellSection          // section heading
	CellError            // error output
	CellInputForm        // auxiliary companion of an input cell
)

func (t CellType) String() string {
	switch t {
	case CellInput:
		return "input"
	case CellOutput:
		return "output"
	case CellText:
		return "text"
	case CellImage:
		return "image"
	case CellSection:
		return "section"
	case CellError:
		return "error"
	case CellInputForm:
		return "input_form"
	default:
		return "unknown"
	}
}

// CellTypeFromString is the inverse of CellType.String; unrecognized names
// map to CellUnknown.
func CellTypeFromString(s string) CellType {
	switch s {
	case "input":
		return CellInput
	case "output":
		return CellOutput
	case "text":
		return CellText
	case "image":
		return CellImage
	case "section":
		return CellSection
	case "error":
		return CellError
	case "input_form":
		return CellInputForm
	default:
		return CellUnknown
	}
}

// Cell is one node's payload. Structure (parent, children, order) lives in
// the tree, not here, so a Cell can be detached and reattached verbatim.
type Cell struct {
	id        ID
	Type      CellType
	Content   string
	Running   bool
	variables map[string]struct{}
}

// NewCell creates a cell with a fresh ID.
func NewCell(t CellType, content string) *Cell {
	return &Cell{
		id:      NewID(),
		Type:    t,
		Content: content,
	}
}

// ID returns the cell's stable identifier.
func (c *Cell) ID() ID { return c.id }

// Variables returns the referenced-variable names, sorted for stable output.
func (c *Cell) Variables() []string {
	if len(c.variables) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.variables))
	for name := range c.variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetVariables replaces the referenced-variable set.
func (c *Cell) SetVariables(names []string) {
	if len(names) == 0 {
		c.variables = nil
		return
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	c.variables = set
}

// HasVariable reports whether name is in the referenced-variable set.
func (c *Cell) HasVariable(name string) bool {
	_, ok := c.variables[name]
	return ok
}
