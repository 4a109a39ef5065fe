package methodhandle

import (
	"testing"

	"github.com/daimatz/rexvm/pkg/descriptor"
	"github.com/daimatz/rexvm/pkg/slot"
)

func TestRenderConcatOperandPrimitives(t *testing.T) {
	tests := []struct {
		name string
		s    slot.Slot
		ty   descriptor.Type
		want string
	}{
		{"int", slot.Int(42), descriptor.Type{Kind: descriptor.Int}, "42"},
		{"negative int", slot.Int(-7), descriptor.Type{Kind: descriptor.Int}, "-7"},
		{"long", slot.Long(1234567890123), descriptor.Type{Kind: descriptor.Long}, "1234567890123"},
		{"boolean true", slot.Int(1), descriptor.Type{Kind: descriptor.Boolean}, "true"},
		{"boolean false", slot.Int(0), descriptor.Type{Kind: descriptor.Boolean}, "false"},
		{"char", slot.Int('A'), descriptor.Type{Kind: descriptor.Char}, "A"},
		{"null reference", slot.Null(), descriptor.Type{Kind: descriptor.Object, ClassName: "java/lang/Object"}, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderConcatOperand(tt.s, tt.ty); got != tt.want {
				t.Errorf("renderConcatOperand(%v, %v) = %q, want %q", tt.s, tt.ty, got, tt.want)
			}
		})
	}
}
