package routing

import (
	"strconv"
	"strings"
)

// infinityWire is the wire-level sentinel (spec.md §3): on the wire and at
// the console, infinity is 0xFFFF / 65535. Costs are modeled as a tagged
// union rather than overloading a numeric type, per spec.md §9.
const infinityWire = 0xFFFF

// Cost is link cost: a non-negative integer, or the distinguished
// infinity sentinel meaning "no link / unreachable". Ordering is total
// (finite < infinity) and arithmetic saturates at infinity.
type Cost struct {
	value    int
	infinite bool
}

// Infinity is the "no link / unreachable" sentinel cost.
var Infinity = Cost{infinite: true}

// Zero is the finite zero cost (a node's cost to itself).
var Zero = Finite(0)

// Finite constructs a finite cost. Negative values clamp to Infinity per
// spec.md §4.1 ("negative values are clamped to infinity").
func Finite(v int) Cost {
	if v < 0 {
		return Infinity
	}
	return Cost{value: v}
}

// IsInfinite reports whether c is the infinity sentinel.
func (c Cost) IsInfinite() bool { return c.infinite }

// Value returns the finite numeric value and true, or (0, false) if c is
// infinite.
func (c Cost) Value() (int, bool) {
	if c.infinite {
		return 0, false
	}
	return c.value, true
}

// Less reports whether c is strictly less than other under total ordering
// (finite < infinity).
func (c Cost) Less(other Cost) bool {
	if c.infinite {
		return false
	}
	if other.infinite {
		return true
	}
	return c.value < other.value
}

// Add returns c + other, saturating at Infinity if either operand is
// infinite or the finite sum would not fit the wire's 16-bit field.
func (c Cost) Add(other Cost) Cost {
	if c.infinite || other.infinite {
		return Infinity
	}
	sum := c.value + other.value
	if sum >= infinityWire {
		return Infinity
	}
	return Cost{value: sum}
}

// Equal reports whether c and other represent the same cost.
func (c Cost) Equal(other Cost) bool {
	if c.infinite != other.infinite {
		return false
	}
	return c.infinite || c.value == other.value
}

// WireUint16 encodes c for the wire format: 0xFFFF for infinity, else the
// finite value. A finite value of 65535 or more is encoded as 0xFFFF, so it
// reads back as infinity.
func (c Cost) WireUint16() uint16 {
	if c.infinite || c.value >= infinityWire {
		return infinityWire
	}
	return uint16(c.value)
}

// CostFromWireUint16 decodes a wire cost field, treating 0xFFFF as
// infinity, matching spec.md §4.2.
func CostFromWireUint16(v uint16) Cost {
	if v == infinityWire {
		return Infinity
	}
	return Cost{value: int(v)}
}

// ConsoleRenderInt renders c the way the operator console does: the
// integer cost, or 65535 for infinity (spec.md §4.3 `display`).
func (c Cost) ConsoleRenderInt() int {
	if c.infinite {
		return infinityWire
	}
	return c.value
}

// ParseToken parses a console/topology-file cost token: the literal "inf"
// (case-insensitive) or a decimal integer. Negative integers and anything
// unparseable are coerced to Infinity so a malformed topology-file token
// degrades to "no link" instead of panicking (spec.md §4.1, §7).
func ParseToken(tok string) Cost {
	tok = strings.TrimSpace(tok)
	if strings.EqualFold(tok, "inf") {
		return Infinity
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return Infinity
	}
	return Finite(n)
}

func (c Cost) String() string {
	if c.infinite {
		return "inf"
	}
	return strconv.Itoa(c.value)
}
