package body

// PartID identifies one rigid segment of the crawler. The numeric order
// is load-bearing: observation encoding walks parts in exactly this
// sequence, so reordering identifiers is a protocol break.
type PartID int

const (
	PartBody PartID = iota
	PartLeg0Upper
	PartLeg0Lower
	PartLeg1Upper
	PartLeg1Lower
	PartLeg2Upper
	PartLeg2Lower
	PartLeg3Upper
	PartLeg3Lower

	partCount
)

var partNames = [partCount]string{
	"body",
	"leg0-upper",
	"leg0-lower",
	"leg1-upper",
	"leg1-lower",
	"leg2-upper",
	"leg2-lower",
	"leg3-upper",
	"leg3-lower",
}

// Parts returns all segment identifiers in their fixed iteration order.
func Parts() []PartID {
	out := make([]PartID, partCount)
	for i := range out {
		out[i] = PartID(i)
	}
	return out
}

// PartCount is the fixed segment count: one root plus four upper/lower pairs.
func PartCount() int {
	return int(partCount)
}

func (id PartID) String() string {
	if id < 0 || id >= partCount {
		return "unknown"
	}
	return partNames[id]
}

// IsRoot reports whether this is the unactuated root segment.
func (id PartID) IsRoot() bool {
	return id == PartBody
}

// UpperLegs returns the hip-driven segments in leg order 0..3.
func UpperLegs() []PartID {
	return []PartID{PartLeg0Upper, PartLeg1Upper, PartLeg2Upper, PartLeg3Upper}
}

// LowerLegs returns the knee-driven segments in leg order 0..3.
func LowerLegs() []PartID {
	return []PartID{PartLeg0Lower, PartLeg1Lower, PartLeg2Lower, PartLeg3Lower}
}
