package gamearchive

import "fmt"

// AttributeType discriminates the value a format attribute holds.
type AttributeType int

const (
	// AttributeInt is an integer with declared bounds.
	AttributeInt AttributeType = iota

	// AttributeEnum is an integer drawn from a fixed value→label map.
	AttributeEnum

	// AttributeText is bounded text.
	AttributeText
)

// Attribute is one format-level metadata field (a version number, a
// free-form description). Mutating one may resize a header region;
// the engine keeps the directory consistent across that, the same
// way it does for an entry insert.
type Attribute struct {
	Name string
	Type AttributeType

	IntValue int64
	IntMin   int64
	IntMax   int64

	EnumValue  int
	EnumLabels []string

	TextValue  string
	TextMaxLen int
}

// checkAttributeValue validates a prospective value against the
// attribute's declared type and bounds.
func checkAttributeValue(a *Attribute, value any) error {
	switch a.Type {
	case AttributeInt:
		v, ok := value.(int64)
		if !ok {
			return fmt.Errorf("%w: attribute %q takes an int64", ErrInvalidArgument, a.Name)
		}
		if v < a.IntMin || v > a.IntMax {
			return fmt.Errorf("%w: attribute %q value %d outside [%d, %d]",
				ErrInvalidArgument, a.Name, v, a.IntMin, a.IntMax)
		}
	case AttributeEnum:
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("%w: attribute %q takes an int", ErrInvalidArgument, a.Name)
		}
		if v < 0 || v >= len(a.EnumLabels) {
			return fmt.Errorf("%w: attribute %q value %d has no label",
				ErrInvalidArgument, a.Name, v)
		}
	case AttributeText:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: attribute %q takes a string", ErrInvalidArgument, a.Name)
		}
		if a.TextMaxLen > 0 && len(v) > a.TextMaxLen {
			return fmt.Errorf("%w: attribute %q text longer than %d",
				ErrInvalidArgument, a.Name, a.TextMaxLen)
		}
	}
	return nil
}
