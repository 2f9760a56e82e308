package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atlasmap-sc/embedview/internal/category"
)

// ErrNotFound is returned when a cell or other lookup target does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotLoaded is returned when a dataset has no loaded session.
var ErrNotLoaded = errors.New("dataset not loaded")

// Method selects which embedding(s) to show.
type Method string

const (
	MethodBoth     Method = "both"
	MethodProposed Method = "proposed"
	MethodOriginal Method = "original"
)

// ParseMethod parses a method name; empty input yields def.
func ParseMethod(s string, def Method) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return def, nil
	case MethodBoth, MethodProposed, MethodOriginal:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown method %q (want both, proposed or original)", category.ErrInvalidInput, s)
	}
}

// Title returns "Proposed" or "Original".
func (m Method) Title() string {
	if m == MethodOriginal {
		return "Original"
	}
	return "Proposed"
}

// Short returns the one-letter name shown in comparison hovers.
func (m Method) Short() string {
	return m.Title()[:1]
}

// Selection is either every category or one highlighted label.
type Selection struct {
	All   bool
	Label category.Label
}

// SelectAll highlights nothing.
var SelectAll = Selection{All: true}

// ParseSelection parses "all" or a label key; empty input yields "all".
func ParseSelection(s string) (Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return SelectAll, nil
	}
	l, err := category.ParseLabelKey(s)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Label: l}, nil
}

// Highlights reports whether l is the selected label.
func (s Selection) Highlights(l category.Label) bool {
	return !s.All && s.Label == l
}

func (s Selection) String() string {
	if s.All {
		return "all"
	}
	return s.Label.Key()
}

// ParseView parses method and cell type parameters, falling back to the
// configured defaults for empty values.
func (s *ViewService) ParseView(method, cellType string) (Method, Selection, error) {
	def := Method(s.viz.DefaultMethod)
	if def == "" {
		def = MethodBoth
	}
	m, err := ParseMethod(method, def)
	if err != nil {
		return "", Selection{}, err
	}
	if cellType == "" {
		cellType = s.viz.DefaultCellType
	}
	sel, err := ParseSelection(cellType)
	if err != nil {
		return "", Selection{}, err
	}
	return m, sel, nil
}
