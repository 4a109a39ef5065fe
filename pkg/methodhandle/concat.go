package methodhandle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daimatz/rexvm/pkg/classfile"
	"github.com/daimatz/rexvm/pkg/descriptor"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/natives"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

const (
	concatArgMarker      rune = 0x01 // pull the next call-site argument
	concatConstantMarker rune = 0x02 // pull the next extra bootstrap constant
)

// bootstrapStringConcat implements StringConcatFactory.makeConcatWithConstants:
// BootstrapArguments[0] is the recipe string (literal text interspersed
// with argument markers and, rarely, constant markers); any remaining
// BootstrapArguments are the constant operands the recipe's constant
// markers pull from in order.
func (l *Linker) bootstrapStringConcat(ctx interp.Context, cls *rclass.Class, bsm classfile.BootstrapMethod, invokedType string, siteType descriptor.Method) (*interp.CallSite, error) {
	if len(bsm.BootstrapArguments) == 0 {
		return nil, fmt.Errorf("methodhandle: makeConcatWithConstants: missing recipe argument")
	}
	recipe, err := constantString(cls.ConstantPool, bsm.BootstrapArguments[0])
	if err != nil {
		return nil, err
	}
	constants := bsm.BootstrapArguments[1:]

	method, err := rclass.NewSyntheticNativeMethod(cls, "makeConcatWithConstants", invokedType, false, nil)
	if err != nil {
		return nil, err
	}
	paramTypes := siteType.Params

	handler := natives.Fn(func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
		var out strings.Builder
		argIdx, constIdx := 0, 0
		for _, r := range recipe {
			switch r {
			case concatArgMarker:
				if argIdx >= len(args) {
					return slot.Slot{}, nil, fmt.Errorf("methodhandle: string concat recipe references more arguments than supplied")
				}
				out.WriteString(renderConcatOperand(args[argIdx], paramTypes[argIdx]))
				argIdx++
			case concatConstantMarker:
				if constIdx >= len(constants) {
					return slot.Slot{}, nil, fmt.Errorf("methodhandle: string concat recipe references more constants than supplied")
				}
				s, err := constantString(cls.ConstantPool, constants[constIdx])
				if err != nil {
					return slot.Slot{}, nil, err
				}
				out.WriteString(s)
				constIdx++
			default:
				out.WriteRune(r)
			}
		}
		str, err := ctx.Allocator().NewJavaString(out.String(), ctx.WellKnown().StringClass(), ctx.WellKnown().CharArrayClass())
		if err != nil {
			return slot.Slot{}, nil, err
		}
		return slot.Reference(str), nil, nil
	})
	method.NativeHandler = handler

	return &interp.CallSite{Method: method}, nil
}

// renderConcatOperand formats one call-site argument for concatenation,
// matching String.valueOf's per-type rules closely enough for the
// primitive and String operands javac's string-concatenation desugaring
// actually emits.
func renderConcatOperand(s slot.Slot, t descriptor.Type) string {
	switch t.Kind {
	case descriptor.Int, descriptor.Short, descriptor.Byte:
		return strconv.FormatInt(int64(s.I32), 10)
	case descriptor.Long:
		return strconv.FormatInt(s.I64, 10)
	case descriptor.Float:
		return strconv.FormatFloat(float64(s.F32), 'g', -1, 32)
	case descriptor.Double:
		return strconv.FormatFloat(s.F64, 'g', -1, 64)
	case descriptor.Boolean:
		return strconv.FormatBool(s.I32 != 0)
	case descriptor.Char:
		return string(rune(s.I32))
	default:
		if s.IsNull() {
			return "null"
		}
		if oop, ok := s.Ref.(*heap.Oop); ok {
			if str, err := heap.GoString(oop); err == nil {
				return str
			}
		}
		return "?"
	}
}
