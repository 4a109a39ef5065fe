package interp

import "encoding/binary"

// Immediate-operand readers over the current method's bytecode, advancing f.PC.
func (f *Frame) u1() uint8 {
	v := f.Method.Code[f.PC]
	f.PC++
	return v
}

func (f *Frame) u2() uint16 {
	v := binary.BigEndian.Uint16(f.Method.Code[f.PC:])
	f.PC += 2
	return v
}

func (f *Frame) i1() int8 { return int8(f.u1()) }
func (f *Frame) i2() int16 { return int16(f.u2()) }

func (f *Frame) i4() int32 {
	v := int32(binary.BigEndian.Uint32(f.Method.Code[f.PC:]))
	f.PC += 4
	return v
}
