package natives

import (
	"math"
	"strconv"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/slot"
)

// loadBoxing registers the primitive-wrapper natives (parseInt/parseLong/
// toString and the float/double bit-conversion pairs). Grounded on
// daimatz-gojvm/pkg/native/integer.go's IntegerValueOf/IntegerIntValue
// pair, generalized from one wrapper type to Integer, Long, Short, Byte,
// Float and Double plus String-conversion, matching jacobin's
// per-wrapper-class gfunction module split. Boolean and Character have
// no natives here.
func loadBoxing(r *Registry) {
	registerIntLike(r, "java/lang/Integer", "parseInt", "(Ljava/lang/String;)I", false, func(s string) (int64, error) {
		v, err := strconv.ParseInt(s, 10, 32)
		return v, err
	})
	registerIntLike(r, "java/lang/Long", "parseLong", "(Ljava/lang/String;)J", true, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
	registerIntLike(r, "java/lang/Short", "parseShort", "(Ljava/lang/String;)S", false, func(s string) (int64, error) {
		v, err := strconv.ParseInt(s, 10, 16)
		return v, err
	})
	registerIntLike(r, "java/lang/Byte", "parseByte", "(Ljava/lang/String;)B", false, func(s string) (int64, error) {
		v, err := strconv.ParseInt(s, 10, 8)
		return v, err
	})

	r.Register("java/lang/Integer", "toString", "(I)Ljava/lang/String;", wrapToString(func(ctx interp.Context, args []slot.Slot) string {
		return strconv.FormatInt(int64(args[0].I32), 10)
	}))
	r.Register("java/lang/Long", "toString", "(J)Ljava/lang/String;", wrapToString(func(ctx interp.Context, args []slot.Slot) string {
		return strconv.FormatInt(args[0].I64, 10)
	}))
	r.Register("java/lang/Float", "toString", "(F)Ljava/lang/String;", wrapToString(func(ctx interp.Context, args []slot.Slot) string {
		return strconv.FormatFloat(float64(args[0].F32), 'g', -1, 32)
	}))
	r.Register("java/lang/Double", "toString", "(D)Ljava/lang/String;", wrapToString(func(ctx interp.Context, args []slot.Slot) string {
		return strconv.FormatFloat(args[0].F64, 'g', -1, 64)
	}))

	r.Register("java/lang/Double", "doubleToLongBits", "(D)J", doubleToLongBits)
	r.Register("java/lang/Double", "longBitsToDouble", "(J)D", longBitsToDouble)
	r.Register("java/lang/Float", "floatToIntBits", "(F)I", floatToIntBits)
	r.Register("java/lang/Float", "intBitsToFloat", "(I)F", intBitsToFloat)
}

// registerIntLike wires the String-parsing native (parseInt/parseLong/
// parseShort/parseByte) for one integer-like wrapper class.
func registerIntLike(r *Registry, class, parseMethod, descriptor string, wide bool, parse func(string) (int64, error)) {
	r.Register(class, parseMethod, descriptor, func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
		s, err := heap.GoString(args[0].Ref.(*heap.Oop))
		if err != nil {
			return slot.Slot{}, nil, err
		}
		v, err := parse(s)
		if err != nil {
			oop, nerr := ctx.Exceptions().NewException(ctx, "java/lang/NumberFormatException", "For input string: \""+s+"\"")
			return slot.Slot{}, oop, nerr
		}
		if wide {
			return slot.Long(v), nil, nil
		}
		return slot.Int(int32(v)), nil, nil
	})
}

func wrapToString(format func(interp.Context, []slot.Slot) string) Fn {
	return func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
		str, err := ctx.Allocator().NewJavaString(format(ctx, args), ctx.WellKnown().StringClass(), ctx.WellKnown().CharArrayClass())
		if err != nil {
			return slot.Slot{}, nil, err
		}
		return slot.Reference(str), nil, nil
	}
}

func doubleToLongBits(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Long(int64(math.Float64bits(args[0].F64))), nil, nil
}

func longBitsToDouble(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Double(math.Float64frombits(uint64(args[0].I64))), nil, nil
}

func floatToIntBits(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Int(int32(math.Float32bits(args[0].F32))), nil, nil
}

func intBitsToFloat(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Float(math.Float32frombits(uint32(args[0].I32))), nil, nil
}
