package interp

import (
	"math"
	"testing"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/rclass"
)

// fakeCtx is a minimal Context stub exercising only Exceptions(), enough
// to drive the implicit-throw opcodes (idiv/irem by zero, etc.) without
// standing up a full classpath/thread.
type fakeCtx struct {
	thrownClass string
	thrownMsg   string
}

func (c *fakeCtx) ThreadID() interface{}           { return c }
func (c *fakeCtx) Allocator() *heap.ThreadAllocator { return nil }
func (c *fakeCtx) Loader() rclass.ClassLoader       { return nil }
func (c *fakeCtx) Natives() NativeInvoker           { return nil }
func (c *fakeCtx) Bootstrapper() Bootstrapper       { return nil }
func (c *fakeCtx) Exceptions() ExceptionFactory     { return c }
func (c *fakeCtx) Heap() *heap.Heap                 { return nil }
func (c *fakeCtx) WellKnown() WellKnownClasses      { return nil }
func (c *fakeCtx) Safepoint()                       {}
func (c *fakeCtx) PushFrame(f *Frame)               {}
func (c *fakeCtx) PopFrame()                        {}

func (c *fakeCtx) NewException(ctx Context, className, message string) (*heap.Oop, error) {
	c.thrownClass = className
	c.thrownMsg = message
	return &heap.Oop{}, nil
}

func newTestFrame(maxStack uint16) *Frame {
	m := &rclass.Method{MaxStack: maxStack, MaxLocals: 4}
	return NewFrame(m, nil)
}

func TestIntegerArithmeticUnsignedWrap(t *testing.T) {
	f := newTestFrame(4)
	f.PushInt(math.MaxInt32)
	f.PushInt(1)
	if err := binaryArith(f, OpIadd); err != nil {
		t.Fatalf("binaryArith(iadd): %v", err)
	}
	got := f.Pop().I32
	if got != math.MinInt32 {
		t.Fatalf("MaxInt32+1 = %d, want wraparound to MinInt32 (%d)", got, math.MinInt32)
	}
}

func TestIdivByZeroThrowsArithmeticException(t *testing.T) {
	f := newTestFrame(4)
	f.PushInt(1)
	f.PushInt(0)
	ctx := &fakeCtx{}
	if err := divArith(ctx, f, OpIdiv); err != nil {
		t.Fatalf("divArith(idiv): %v", err)
	}
	if f.markedThrow == nil {
		t.Fatalf("idiv by zero: want markedThrow set, got nil")
	}
	if ctx.thrownClass != "java/lang/ArithmeticException" {
		t.Fatalf("thrown class = %q, want java/lang/ArithmeticException", ctx.thrownClass)
	}
	if ctx.thrownMsg != "/ by zero" {
		t.Fatalf("thrown message = %q, want \"/ by zero\"", ctx.thrownMsg)
	}
}

func TestShiftCountIsMasked(t *testing.T) {
	f := newTestFrame(4)
	// ishl with a shift count of 33 must behave as a shift of 1 (33 mod 32).
	f.PushInt(1)
	f.PushInt(33)
	if err := binaryArith(f, OpIshl); err != nil {
		t.Fatalf("binaryArith(ishl): %v", err)
	}
	if got := f.Pop().I32; got != 2 {
		t.Fatalf("1 << 33 (masked) = %d, want 2", got)
	}

	f2 := newTestFrame(4)
	f2.PushLong(1)
	f2.PushInt(65) // 65 mod 64 == 1
	if err := binaryArith(f2, OpLshl); err != nil {
		t.Fatalf("binaryArith(lshl): %v", err)
	}
	if got := f2.Pop().I64; got != 2 {
		t.Fatalf("1L << 65 (masked) = %d, want 2", got)
	}
}

func TestFcmpNaNRules(t *testing.T) {
	f := newTestFrame(4)
	f.PushFloat(float32(math.NaN()))
	f.PushFloat(1)
	compare(f, OpFcmpl)
	if got := f.Pop().I32; got != -1 {
		t.Fatalf("fcmpl with NaN = %d, want -1", got)
	}

	f2 := newTestFrame(4)
	f2.PushFloat(float32(math.NaN()))
	f2.PushFloat(1)
	compare(f2, OpFcmpg)
	if got := f2.Pop().I32; got != 1 {
		t.Fatalf("fcmpg with NaN = %d, want 1", got)
	}
}

func TestDremUsesFmod(t *testing.T) {
	f := newTestFrame(4)
	f.PushDouble(5.5)
	f.PushDouble(2)
	if err := binaryArith(f, OpDrem); err != nil {
		t.Fatalf("binaryArith(drem): %v", err)
	}
	want := math.Mod(5.5, 2)
	if got := f.Pop().F64; got != want {
		t.Fatalf("5.5 %% 2 = %v, want %v", got, want)
	}
}

func TestFloatToIntSaturatesOutOfRange(t *testing.T) {
	if v := floatToInt32(float32(math.Inf(1))); v != math.MaxInt32 {
		t.Fatalf("floatToInt32(+Inf) = %d, want MaxInt32", v)
	}
	if v := floatToInt32(float32(math.Inf(-1))); v != math.MinInt32 {
		t.Fatalf("floatToInt32(-Inf) = %d, want MinInt32", v)
	}
	if v := floatToInt32(float32(math.NaN())); v != 0 {
		t.Fatalf("floatToInt32(NaN) = %d, want 0", v)
	}
}

func TestCheckedNarrowingConversions(t *testing.T) {
	f := newTestFrame(4)
	f.PushInt(-1) // 0xFFFFFFFF
	convert(f, OpI2c)
	if got := f.Pop().I32; got != 0xFFFF {
		t.Fatalf("i2c(-1) = %d, want 0xFFFF (65535)", got)
	}

	f2 := newTestFrame(4)
	f2.PushInt(200)
	convert(f2, OpI2b)
	if got := f2.Pop().I32; got != -56 {
		t.Fatalf("i2b(200) = %d, want -56", got)
	}
}
