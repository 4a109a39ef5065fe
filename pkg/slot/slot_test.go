package slot

import "testing"

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		s    Slot
		typ  Type
	}{
		{"Int", Int(42), I32},
		{"Long", Long(1 << 40), I64},
		{"Float", Float(3.5), F32},
		{"Double", Double(2.25), F64},
		{"Reference", Reference("x"), Ref},
		{"Null", Null(), Ref},
		{"PadSlot", PadSlot(), Pad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.s.Type != tt.typ {
				t.Errorf("Type: got %v, want %v", tt.s.Type, tt.typ)
			}
		})
	}
}

func TestIsNull(t *testing.T) {
	if !Null().IsNull() {
		t.Error("Null().IsNull(): got false, want true")
	}
	if Reference(struct{}{}).IsNull() {
		t.Error("Reference(non-nil).IsNull(): got true, want false")
	}
	if Int(0).IsNull() {
		t.Error("Int(0).IsNull(): got true, want false")
	}
}

func TestWidth(t *testing.T) {
	tests := []struct {
		name string
		s    Slot
		want int
	}{
		{"Int", Int(1), 1},
		{"Float", Float(1), 1},
		{"Reference", Reference(nil), 1},
		{"Long", Long(1), 2},
		{"Double", Double(1), 2},
		{"Pad", PadSlot(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Width(); got != tt.want {
				t.Errorf("Width(): got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBoolRoundTrip(t *testing.T) {
	if !FromBool(true).Bool() {
		t.Error("FromBool(true).Bool(): got false, want true")
	}
	if FromBool(false).Bool() {
		t.Error("FromBool(false).Bool(): got true, want false")
	}
	if FromBool(true).I32 != 1 {
		t.Errorf("FromBool(true).I32: got %d, want 1", FromBool(true).I32)
	}
	if FromBool(false).I32 != 0 {
		t.Errorf("FromBool(false).I32: got %d, want 0", FromBool(false).I32)
	}
}
