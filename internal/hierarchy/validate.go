package hierarchy

import (
	"fmt"
	"strings"

	"github.com/venuepass/venuepass/internal/domain"
)

type ViolationKind string

const (
	ViolationName  ViolationKind = "name"
	ViolationSeats ViolationKind = "seats"
)

// Violation points at one offending node. Path addresses the node inside the
// validated tree so an editor can highlight it.
type Violation struct {
	Path    Path          `json:"path"`
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// Violations is keyed by a stable path-derived identifier, e.g.
// "cat:1:name" or "cat:0:sub:2:seats". Validating the same tree twice yields
// the same map.
type Violations map[string]Violation

// ViolationKey builds the stable identifier for a node path and kind.
func ViolationKey(p Path, kind ViolationKind) string {
	switch len(p) {
	case 1:
		return fmt.Sprintf("cat:%d:%s", p[0], kind)
	case 2:
		return fmt.Sprintf("cat:%d:sub:%d:%s", p[0], p[1], kind)
	default:
		return fmt.Sprintf("%s:%s", p, kind)
	}
}

func (v Violations) add(p Path, kind ViolationKind, format string, args ...any) {
	v[ViolationKey(p, kind)] = Violation{
		Path:    p,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validate collects every invariant breach in the tree. It never stops at
// the first violation so the editor can surface everything in one pass.
//
// Checked per root category: sibling name uniqueness (case-insensitive,
// reported on the later duplicate), aggregate containment
// usedSeats(cat) <= cat.seats. Checked per subcategory: sibling name
// uniqueness, and the per-child ceiling sub.seats <= parent.seats, which is
// stricter than and independent of the aggregate check. Containment is
// strictly one level deep.
func Validate(h *domain.Hierarchy) Violations {
	out := Violations{}

	for i, cat := range h.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			out.add(Path{i}, ViolationName, "category name must not be empty")
		}
		for k := 0; k < i; k++ {
			if strings.EqualFold(h.Categories[k].Name, cat.Name) {
				out.add(Path{i}, ViolationName, "duplicate category name %q", cat.Name)
				break
			}
		}

		if used := UsedSeats(cat); used > cat.Seats {
			out.add(Path{i}, ViolationSeats,
				"subcategories use %d of %d seats", used, cat.Seats)
		}

		for j, sub := range cat.Subcategories {
			if strings.TrimSpace(sub.Name) == "" {
				out.add(Path{i, j}, ViolationName, "subcategory name must not be empty")
			}
			for k := 0; k < j; k++ {
				if strings.EqualFold(cat.Subcategories[k].Name, sub.Name) {
					out.add(Path{i, j}, ViolationName, "duplicate subcategory name %q", sub.Name)
					break
				}
			}
			if sub.Seats > cat.Seats {
				out.add(Path{i, j}, ViolationSeats,
					"subcategory holds %d seats but %q has only %d", sub.Seats, cat.Name, cat.Seats)
			}
		}
	}

	return out
}

// ValidateForSave gates persistence: it returns a *ValidationError carrying
// the full violation map when the tree is not legal, nil otherwise.
func ValidateForSave(h *domain.Hierarchy) error {
	v := Validate(h)
	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}
