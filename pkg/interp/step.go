package interp

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/slot"
)

// step executes a single decoded instruction against f, leaving results
// on f or marking f.markedReturn/f.markedThrow; f.PC has already moved
// past the opcode byte itself by the time step is called; the Run loop
// consults f.markedThrow/f.markedReturn once the call returns.
func step(ctx Context, f *Frame, op byte) error {
	switch op {
	case OpNop:
		// nothing

	case OpAconstNull:
		f.Push(slot.Null())
	case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
		f.PushInt(int32(op) - int32(OpIconst0))
	case OpLconst0, OpLconst1:
		f.PushLong(int64(op) - int64(OpLconst0))
	case OpFconst0, OpFconst1, OpFconst2:
		f.PushFloat(float32(op) - float32(OpFconst0))
	case OpDconst0, OpDconst1:
		f.PushDouble(float64(op) - float64(OpDconst0))
	case OpBipush:
		f.PushInt(int32(f.i1()))
	case OpSipush:
		f.PushInt(int32(f.i2()))
	case OpLdc:
		return loadConstant(ctx, f, uint16(f.u1()))
	case OpLdcW, OpLdc2W:
		return loadConstant(ctx, f, f.u2())

	case OpIload, OpLload, OpFload, OpDload, OpAload:
		f.Push(f.Locals[f.u1()])
	case OpIload0, OpLload0, OpFload0, OpDload0, OpAload0:
		f.Push(f.Locals[0])
	case OpIload1, OpLload1, OpFload1, OpDload1, OpAload1:
		f.Push(f.Locals[1])
	case OpIload2, OpLload2, OpFload2, OpDload2, OpAload2:
		f.Push(f.Locals[2])
	case OpIload3, OpLload3, OpFload3, OpDload3, OpAload3:
		f.Push(f.Locals[3])

	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		f.Locals[f.u1()] = f.Pop()
	case OpIstore0, OpLstore0, OpFstore0, OpDstore0, OpAstore0:
		f.Locals[0] = f.Pop()
	case OpIstore1, OpLstore1, OpFstore1, OpDstore1, OpAstore1:
		f.Locals[1] = f.Pop()
	case OpIstore2, OpLstore2, OpFstore2, OpDstore2, OpAstore2:
		f.Locals[2] = f.Pop()
	case OpIstore3, OpLstore3, OpFstore3, OpDstore3, OpAstore3:
		f.Locals[3] = f.Pop()

	case OpIaload, OpLaload, OpFaload, OpDaload, OpAaload, OpBaload, OpCaload, OpSaload:
		return arrayLoad(ctx, f, op)
	case OpIastore, OpLastore, OpFastore, OpDastore, OpAastore, OpBastore, OpCastore, OpSastore:
		return arrayStore(ctx, f, op)

	case OpPop:
		f.Pop()
	case OpPop2:
		// JVMS 6.5 pop2: discard the top two words, whether that's one
		// category-2 value or two category-1 values.
		popWordPair(f)
	case OpDup:
		v := f.Peek()
		f.Push(v)
	case OpDupX1:
		a, b := f.Pop(), f.Pop()
		f.Push(a)
		f.Push(b)
		f.Push(a)
	case OpDupX2:
		// value1 (always category 1) goes under the two-word group
		// beneath it, which may itself be one category-2 value or two
		// category-1 values.
		value1 := f.Pop()
		below := popWordPair(f)
		f.Push(value1)
		below.push(f)
		f.Push(value1)
	case OpDup2:
		p := popWordPair(f)
		p.push(f)
		p.push(f)
	case OpDup2X1:
		top := popWordPair(f)
		below := f.Pop() // always category 1
		top.push(f)
		f.Push(below)
		top.push(f)
	case OpDup2X2:
		top := popWordPair(f)
		below := popWordPair(f)
		top.push(f)
		below.push(f)
		top.push(f)
	case OpSwap:
		a, b := f.Pop(), f.Pop()
		f.Push(a)
		f.Push(b)

	case OpIadd, OpLadd, OpFadd, OpDadd, OpIsub, OpLsub, OpFsub, OpDsub,
		OpImul, OpLmul, OpFmul, OpDmul, OpFrem, OpDrem,
		OpIand, OpLand, OpIor, OpLor, OpIxor, OpLxor,
		OpIshl, OpLshl, OpIshr, OpLshr, OpIushr, OpLushr:
		return binaryArith(f, op)
	case OpIdiv, OpLdiv, OpFdiv, OpDdiv, OpIrem, OpLrem:
		return divArith(ctx, f, op)
	case OpIneg, OpLneg, OpFneg, OpDneg:
		unaryNeg(f, op)
	case OpIinc:
		idx := f.u1()
		delta := int32(f.i1())
		f.Locals[idx] = slot.Int(f.Locals[idx].I32 + delta)

	case OpI2l, OpI2f, OpI2d, OpL2i, OpL2f, OpL2d, OpF2i, OpF2l, OpF2d,
		OpD2i, OpD2l, OpD2f, OpI2b, OpI2c, OpI2s:
		convert(f, op)

	case OpLcmp, OpFcmpl, OpFcmpg, OpDcmpl, OpDcmpg:
		compare(f, op)

	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
		return condJump(ctx, f, op, f.Pop().I32, 0)
	case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
		b, a := f.Pop().I32, f.Pop().I32
		return condJump(ctx, f, icmpToIf(op), a, b)
	case OpIfAcmpeq, OpIfAcmpne:
		b, a := f.Pop(), f.Pop()
		eq := refEqual(a, b)
		if (op == OpIfAcmpeq) == eq {
			return branch(ctx, f)
		}
		f.PC += 2
	case OpIfnull, OpIfnonnull:
		a := f.Pop()
		if a.IsNull() == (op == OpIfnull) {
			return branch(ctx, f)
		}
		f.PC += 2

	case OpGoto:
		return branch(ctx, f)
	case OpGotoW:
		return branchWide(ctx, f)
	case OpJsr, OpJsrW, OpRet:
		return fmt.Errorf("interp: jsr/ret is not supported (javac has not emitted it since Java 6)")

	case OpTableswitch:
		return tableswitch(ctx, f)
	case OpLookupswitch:
		return lookupswitch(ctx, f)

	case OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn:
		f.returnValue = f.Pop()
		f.markedReturn = true
	case OpReturn:
		f.returnValue = slot.Slot{}
		f.markedReturn = true

	case OpGetstatic:
		return getstatic(ctx, f)
	case OpPutstatic:
		return putstatic(ctx, f)
	case OpGetfield:
		return getfield(ctx, f)
	case OpPutfield:
		return putfield(ctx, f)

	case OpInvokevirtual:
		return invokeVirtual(ctx, f)
	case OpInvokespecial:
		return invokeSpecial(ctx, f)
	case OpInvokestatic:
		return invokeStatic(ctx, f)
	case OpInvokeinterface:
		return invokeInterface(ctx, f)
	case OpInvokedynamic:
		return invokeDynamic(ctx, f)

	case OpNew:
		return opNew(ctx, f)
	case OpNewarray:
		return opNewarray(ctx, f)
	case OpAnewarray:
		return opAnewarray(ctx, f)
	case OpMultianewarray:
		return opMultianewarray(ctx, f)
	case OpArraylength:
		return opArraylength(ctx, f)
	case OpAthrow:
		return opAthrow(ctx, f)
	case OpCheckcast:
		return opCheckcast(ctx, f)
	case OpInstanceof:
		return opInstanceof(ctx, f)
	case OpMonitorenter:
		return opMonitorenter(ctx, f)
	case OpMonitorexit:
		return opMonitorexit(ctx, f)

	case OpWide:
		return stepWide(ctx, f)

	default:
		return fmt.Errorf("interp: unimplemented or reserved opcode 0x%02X at pc %d in %s.%s%s",
			op, f.PC-1, f.Class.Name, f.Method.Name, f.Method.Descriptor)
	}
	return nil
}

func icmpToIf(op byte) byte {
	return OpIfeq + (op - OpIfIcmpeq)
}

func refEqual(a, b slot.Slot) bool {
	if a.IsNull() && b.IsNull() {
		return true
	}
	if a.IsNull() != b.IsNull() {
		return false
	}
	return a.Ref == b.Ref
}

// branch reads the 2-byte signed offset that follows a short-form
// conditional/unconditional jump and applies it relative to the
// instruction's own opcode position (the offset's base, per JVMS 6.5, is
// the address of the opcode byte — on entry f.PC points just past the
// opcode byte, at the 2-byte operand, i.e. opcodeAddr+1).
func branch(ctx Context, f *Frame) error {
	opcodeAddr := f.PC - 1
	offset := int32(f.i2())
	target := opcodeAddr + int(offset)
	if offset <= 0 {
		ctx.Safepoint()
	}
	f.PC = target
	return nil
}

func branchWide(ctx Context, f *Frame) error {
	opcodeAddr := f.PC - 1
	offset := f.i4()
	target := opcodeAddr + int(offset)
	if offset <= 0 {
		ctx.Safepoint()
	}
	f.PC = target
	return nil
}

// condJump evaluates one of the if<cond>/if_icmp<cond> families given
// the two (already-popped) int32 operands being compared, reading and
// applying the branch offset only when the condition holds and
// otherwise skipping past it.
func condJump(ctx Context, f *Frame, op byte, a, b int32) error {
	var taken bool
	switch op {
	case OpIfeq:
		taken = a == b
	case OpIfne:
		taken = a != b
	case OpIflt:
		taken = a < b
	case OpIfge:
		taken = a >= b
	case OpIfgt:
		taken = a > b
	case OpIfle:
		taken = a <= b
	}
	if taken {
		return branch(ctx, f)
	}
	f.PC += 2
	return nil
}

func tableswitch(ctx Context, f *Frame) error {
	opcodeAddr := f.PC - 1
	f.PC += (4 - (f.PC % 4)) % 4 // align to a 4-byte boundary
	defaultOff := f.i4()
	low := f.i4()
	high := f.i4()
	index := f.Pop().I32
	var offset int32
	if index < low || index > high {
		offset = defaultOff
	} else {
		base := f.PC
		f.PC = base + int(index-low)*4
		offset = f.i4()
	}
	ctx.Safepoint()
	f.PC = opcodeAddr + int(offset)
	return nil
}

func lookupswitch(ctx Context, f *Frame) error {
	opcodeAddr := f.PC - 1
	f.PC += (4 - (f.PC % 4)) % 4
	defaultOff := f.i4()
	n := f.i4()
	key := f.Pop().I32
	offset := defaultOff
	for i := int32(0); i < n; i++ {
		matchVal := f.i4()
		matchOff := f.i4()
		if matchVal == key {
			offset = matchOff
		}
	}
	ctx.Safepoint()
	f.PC = opcodeAddr + int(offset)
	return nil
}

// stepWide decodes the instruction following a `wide` prefix (JVMS
// 6.5.wide): iload/fload/aload/lload/dload/istore/fstore/astore/lstore/
// dstore/ret take a u2 local index instead of u1, and iinc additionally
// takes a s2 delta instead of s1.
func stepWide(ctx Context, f *Frame) error {
	sub := f.u1()
	idx := f.u2()
	switch sub {
	case OpIload, OpLload, OpFload, OpDload, OpAload:
		f.Push(f.Locals[idx])
	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		f.Locals[idx] = f.Pop()
	case OpIinc:
		delta := int32(f.i2())
		f.Locals[idx] = slot.Int(f.Locals[idx].I32 + delta)
	case OpRet:
		return fmt.Errorf("interp: wide ret is not supported")
	default:
		return fmt.Errorf("interp: invalid wide sub-opcode 0x%02X", sub)
	}
	return nil
}
