package interp

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

func arrayLoad(ctx Context, f *Frame, op byte) error {
	idx := f.Pop().I32
	ref := f.Pop()
	if ref.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	arr := ref.Ref.(*heap.Oop)
	v, err := arr.GetElement(int(idx))
	if err != nil {
		return throwBuiltin(ctx, f, "java/lang/ArrayIndexOutOfBoundsException", err.Error())
	}
	f.Push(v)
	return nil
}

func arrayStore(ctx Context, f *Frame, op byte) error {
	v := f.Pop()
	idx := f.Pop().I32
	ref := f.Pop()
	if ref.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	arr := ref.Ref.(*heap.Oop)
	if op == OpBastore && arr.Class.ElemPrimitive == rclass.PrimBoolean {
		v = slot.Int(v.I32 & 1)
	}
	if err := arr.SetElement(int(idx), v); err != nil {
		return throwBuiltin(ctx, f, "java/lang/ArrayIndexOutOfBoundsException", err.Error())
	}
	return nil
}

func opNewarray(ctx Context, f *Frame) error {
	atype := f.u1()
	length := f.Pop().I32
	if length < 0 {
		return throwBuiltin(ctx, f, "java/lang/NegativeArraySizeException", "")
	}
	prim, ok := primForAtype(atype)
	if !ok {
		return fmt.Errorf("interp: invalid newarray type code %d", atype)
	}
	arrClass, err := ctx.Loader().LoadClass("[" + prim)
	if err != nil {
		return err
	}
	arr, err := ctx.Allocator().NewTypeArray(arrClass, int(length))
	if err != nil {
		return err
	}
	f.PushRef(arr)
	return nil
}

func primForAtype(atype uint8) (string, bool) {
	switch atype {
	case ATBoolean:
		return rclass.PrimBoolean, true
	case ATChar:
		return rclass.PrimChar, true
	case ATFloat:
		return rclass.PrimFloat, true
	case ATDouble:
		return rclass.PrimDouble, true
	case ATByte:
		return rclass.PrimByte, true
	case ATShort:
		return rclass.PrimShort, true
	case ATInt:
		return rclass.PrimInt, true
	case ATLong:
		return rclass.PrimLong, true
	default:
		return "", false
	}
}

func opAnewarray(ctx Context, f *Frame) error {
	idx := f.u2()
	length := f.Pop().I32
	if length < 0 {
		return throwBuiltin(ctx, f, "java/lang/NegativeArraySizeException", "")
	}
	elemClass, err := resolveClassRef(ctx, f, idx)
	if err != nil {
		return err
	}
	arrClass, err := ctx.Loader().LoadClass("[" + elemClass.Descriptor())
	if err != nil {
		return err
	}
	arr, err := ctx.Allocator().NewObjectArray(arrClass, int(length))
	if err != nil {
		return err
	}
	f.PushRef(arr)
	return nil
}

func opMultianewarray(ctx Context, f *Frame) error {
	idx := f.u2()
	dims := int(f.u1())
	lengths := make([]int32, dims)
	for i := dims - 1; i >= 0; i-- {
		lengths[i] = f.Pop().I32
	}
	arrClass, err := resolveClassRef(ctx, f, idx)
	if err != nil {
		return err
	}
	arr, err := buildMultiArray(ctx, arrClass, lengths)
	if err != nil {
		if _, ok := err.(negativeSizeError); ok {
			return throwBuiltin(ctx, f, "java/lang/NegativeArraySizeException", "")
		}
		return err
	}
	f.PushRef(arr)
	return nil
}

type negativeSizeError struct{}

func (negativeSizeError) Error() string { return "negative array size" }

func buildMultiArray(ctx Context, arrClass *rclass.Class, lengths []int32) (*heap.Oop, error) {
	if lengths[0] < 0 {
		return nil, negativeSizeError{}
	}
	n := int(lengths[0])
	if len(lengths) == 1 {
		if arrClass.Kind == rclass.KindTypeArray {
			return ctx.Allocator().NewTypeArray(arrClass, n)
		}
		return ctx.Allocator().NewObjectArray(arrClass, n)
	}
	arr, err := ctx.Allocator().NewObjectArray(arrClass, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		sub, err := buildMultiArray(ctx, arrClass.ElemClass, lengths[1:])
		if err != nil {
			return nil, err
		}
		arr.SetElement(i, slot.Reference(sub))
	}
	return arr, nil
}

func opArraylength(ctx Context, f *Frame) error {
	ref := f.Pop()
	if ref.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	arr := ref.Ref.(*heap.Oop)
	f.PushInt(int32(arr.Length()))
	return nil
}
