package natives

import (
	"math"
	"testing"

	"github.com/daimatz/rexvm/pkg/slot"
)

// TestFloatDoubleBitConversionRoundTrip exercises spec §8's boxing-round-trip
// law (unbox(box(v)) == v) at the bit-representation level these natives
// expose to java.lang.Float/Double.
func TestFloatDoubleBitConversionRoundTrip(t *testing.T) {
	dv := 3.14159
	longBits, _, err := doubleToLongBits(nil, []slot.Slot{slot.Double(dv)})
	if err != nil {
		t.Fatalf("doubleToLongBits: %v", err)
	}
	back, _, err := longBitsToDouble(nil, []slot.Slot{longBits})
	if err != nil {
		t.Fatalf("longBitsToDouble: %v", err)
	}
	if back.F64 != dv {
		t.Fatalf("round trip = %v, want %v", back.F64, dv)
	}
	if longBits.I64 != int64(math.Float64bits(dv)) {
		t.Fatalf("doubleToLongBits bit pattern mismatch")
	}

	fv := float32(2.5)
	intBits, _, err := floatToIntBits(nil, []slot.Slot{slot.Float(fv)})
	if err != nil {
		t.Fatalf("floatToIntBits: %v", err)
	}
	backF, _, err := intBitsToFloat(nil, []slot.Slot{intBits})
	if err != nil {
		t.Fatalf("intBitsToFloat: %v", err)
	}
	if backF.F32 != fv {
		t.Fatalf("round trip = %v, want %v", backF.F32, fv)
	}
}
