package natives

import (
	"strings"
	"sync"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/slot"
)

// loadString registers java.lang.String's handful of genuinely-native
// operations (everything else on String is pure bytecode over these
// primitives in a real JDK) plus StringBuilder's append/toString,
// grounded on jacobin's javaLangString.go/javaLangStringBuilder.go
// gfunction bodies — generalized here to operate on this VM's
// char[]-backed String/heap.Oop representation instead of jacobin's own
// object model.
func loadString(r *Registry) {
	r.Register("java/lang/String", "intern", "()Ljava/lang/String;", stringIntern)
	r.Register("java/lang/String", "hashCode", "()I", stringHashCode)

	r.Register("java/lang/StringBuilder", "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;", sbAppendString)
	r.Register("java/lang/StringBuilder", "append", "(I)Ljava/lang/StringBuilder;", sbAppendInt)
	r.Register("java/lang/StringBuilder", "append", "(J)Ljava/lang/StringBuilder;", sbAppendLong)
	r.Register("java/lang/StringBuilder", "append", "(C)Ljava/lang/StringBuilder;", sbAppendChar)
	r.Register("java/lang/StringBuilder", "toString", "()Ljava/lang/String;", sbToString)
}

func stringIntern(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	s, err := heap.GoString(this)
	if err != nil {
		return slot.Slot{}, nil, err
	}
	canon, err := ctx.Heap().Interner.Intern(s, func(s string) (*heap.Oop, error) {
		return ctx.Allocator().NewJavaString(s, ctx.WellKnown().StringClass(), ctx.WellKnown().CharArrayClass())
	})
	if err != nil {
		return slot.Slot{}, nil, err
	}
	return slot.Reference(canon), nil, nil
}

func stringHashCode(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	s, err := heap.GoString(this)
	if err != nil {
		return slot.Slot{}, nil, err
	}
	// JLS 3.10.5's own string hash, so hashCode is stable across VMs and
	// across the intern/non-intern distinction: s[0]*31^(n-1) + ... + s[n-1].
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	return slot.Int(h), nil, nil
}

// stringBuilders holds each live StringBuilder instance's native scratch
// buffer, keyed by the oop's own identity. Grounded on jacobin's
// javaLangStringBuilder.go, which likewise keeps the mutable append
// buffer as native-side state rather than reflecting it back into Java
// fields on every append call; a sync.Map sidesteps giving heap.Oop
// itself a native-payload slot purely for this one class's benefit.
// Entries for unreachable builders are simply never looked up again —
// the map leaks one entry per StringBuilder for the VM's lifetime, an
// accepted simplification since StringBuilder scratch space is tiny
// relative to the heap objects it appends.
var stringBuilders sync.Map

func stringBuilderBuf(o *heap.Oop) *strings.Builder {
	v, _ := stringBuilders.LoadOrStore(o, &strings.Builder{})
	return v.(*strings.Builder)
}

func sbAppendString(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	buf := stringBuilderBuf(this)
	if !args[1].IsNull() {
		s, err := heap.GoString(args[1].Ref.(*heap.Oop))
		if err != nil {
			return slot.Slot{}, nil, err
		}
		buf.WriteString(s)
	} else {
		buf.WriteString("null")
	}
	return args[0], nil, nil
}

func sbAppendInt(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	stringBuilderBuf(this).WriteString(itoa64(int64(args[1].I32)))
	return args[0], nil, nil
}

func sbAppendLong(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	stringBuilderBuf(this).WriteString(itoa64(args[1].I64))
	return args[0], nil, nil
}

func sbAppendChar(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	stringBuilderBuf(this).WriteRune(rune(args[1].I32))
	return args[0], nil, nil
}

func sbToString(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	s := stringBuilderBuf(this).String()
	str, err := ctx.Allocator().NewJavaString(s, ctx.WellKnown().StringClass(), ctx.WellKnown().CharArrayClass())
	if err != nil {
		return slot.Slot{}, nil, err
	}
	return slot.Reference(str), nil, nil
}

func itoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
