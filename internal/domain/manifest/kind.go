package manifest

import (
	"fmt"
	"slices"
	"strings"
)

type Kind string

const (
	KindOcean Kind = "ocean"
	KindAir   Kind = "air"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", ErrKindRequired
	case KindOcean:
		return KindOcean, nil
	case KindAir:
		return KindAir, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

func (k Kind) String() string { return string(k) }

// Shape describes the column layout of one manifest kind.
type Shape struct {
	Kind             Kind
	IdentifierColumn string
	GroupColumn      string
	ReleaseColumn    string
	TrackedColumns   []string
	DateColumns      []string
	Columns          []string
	// Aliases maps an alternative header (upper-cased) to its canonical column.
	Aliases map[string]string
}

var oceanShape = Shape{
	Kind:             KindOcean,
	IdentifierColumn: "HB",
	GroupColumn:      "MBL",
	ReleaseColumn:    "FRL",
	TrackedColumns:   []string{"FRL", "TDF", "BOND NO"},
	DateColumns:      []string{"ETA", "FRL"},
	Columns: []string{
		"CONTAINER", "SEAL", "CARRIER", "VESSEL", "MBL", "HB", "SHIPPER", "CONSIGNEE",
		"POL", "POD", "ETA", "PCS", "WEIGHT", "FRL", "TDF", "BOND NO", "REMARKS",
	},
	Aliases: map[string]string{
		"HBL":     "HB",
		"HOUSE":   "HB",
		"MASTER":  "MBL",
		"BOND_NO": "BOND NO",
		"BONDNO":  "BOND NO",
	},
}

var airShape = Shape{
	Kind:             KindAir,
	IdentifierColumn: "HAWB",
	GroupColumn:      "MAWB",
	ReleaseColumn:    "LOG",
	TrackedColumns:   []string{"LOG", "TDF", "BOND NO"},
	DateColumns:      []string{"ETA", "LOG"},
	Columns: []string{
		"MAWB", "HAWB", "AIRLINE", "FLIGHT", "SHIPPER", "CONSIGNEE", "ORIGIN",
		"DESTINATION", "ETA", "PCS", "WEIGHT", "LOG", "TDF", "BOND NO", "REMARKS",
	},
	Aliases: map[string]string{
		"HOUSE AWB":  "HAWB",
		"MASTER AWB": "MAWB",
		"BOND_NO":    "BOND NO",
		"BONDNO":     "BOND NO",
	},
}

// Shapes holds the active shape per kind.
type Shapes map[Kind]Shape

func DefaultShapes() Shapes {
	return Shapes{
		KindOcean: oceanShape.clone(),
		KindAir:   airShape.clone(),
	}
}

func (s Shapes) For(kind Kind) (Shape, error) {
	shape, ok := s[kind]
	if !ok {
		return Shape{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return shape, nil
}

// CanonicalColumn maps a raw header to the shape's column name. Unknown
// headers are returned upper-cased so they still round-trip in Fields.
func (s Shape) CanonicalColumn(header string) string {
	key := strings.ToUpper(strings.Join(strings.Fields(header), " "))
	if alias, ok := s.Aliases[key]; ok {
		return alias
	}
	return key
}

func (s Shape) IsTracked(column string) bool {
	return slices.Contains(s.TrackedColumns, column)
}

func (s Shape) IsDate(column string) bool {
	return slices.Contains(s.DateColumns, column)
}

func (s Shape) Validate() error {
	if s.Kind != KindOcean && s.Kind != KindAir {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, s.Kind)
	}
	for _, required := range []struct {
		name   string
		column string
	}{
		{"identifier column", s.IdentifierColumn},
		{"group column", s.GroupColumn},
		{"release column", s.ReleaseColumn},
	} {
		if strings.TrimSpace(required.column) == "" {
			return fmt.Errorf("%w: %s %s is required", ErrInvalidShape, s.Kind, required.name)
		}
		if !slices.Contains(s.Columns, required.column) {
			return fmt.Errorf("%w: %s %s %q is not a listed column", ErrInvalidShape, s.Kind, required.name, required.column)
		}
	}
	for _, column := range s.TrackedColumns {
		if !slices.Contains(s.Columns, column) {
			return fmt.Errorf("%w: %s tracked column %q is not a listed column", ErrInvalidShape, s.Kind, column)
		}
	}
	return nil
}

func (s Shape) clone() Shape {
	out := s
	out.TrackedColumns = slices.Clone(s.TrackedColumns)
	out.DateColumns = slices.Clone(s.DateColumns)
	out.Columns = slices.Clone(s.Columns)
	out.Aliases = make(map[string]string, len(s.Aliases))
	for k, v := range s.Aliases {
		out.Aliases[k] = v
	}
	return out
}
