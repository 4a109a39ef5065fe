package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const magic = 0xCAFEBABE

// reader is a cursor over a class file's bytes, grounded on daimatz-gojvm's
// parser (which reads directly off an io.Reader with binary.Read per
// field); kept as a byte-slice cursor here because attribute bodies need
// to be re-sliced for nested parsing (e.g. Code attributes embed their own
// exception table and sub-attributes).
type reader struct {
	buf []byte
	pos int
}

func newReader(data []byte) *reader { return &reader{buf: data} }

func (r *reader) u1() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u8() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Parse decodes a full class file from raw bytes.
func Parse(data []byte) (*ClassFile, error) {
	r := newReader(data)

	m, err := r.u4()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading magic: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("classfile: bad magic 0x%08X", m)
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = r.u2(); err != nil {
		return nil, fmt.Errorf("classfile: minor_version: %w", err)
	}
	if cf.MajorVersion, err = r.u2(); err != nil {
		return nil, fmt.Errorf("classfile: major_version: %w", err)
	}

	if cf.ConstantPool, err = parseConstantPool(r); err != nil {
		return nil, fmt.Errorf("classfile: constant pool: %w", err)
	}

	if cf.AccessFlags, err = r.u2(); err != nil {
		return nil, fmt.Errorf("classfile: access_flags: %w", err)
	}
	if cf.ThisClass, err = r.u2(); err != nil {
		return nil, fmt.Errorf("classfile: this_class: %w", err)
	}
	if cf.SuperClass, err = r.u2(); err != nil {
		return nil, fmt.Errorf("classfile: super_class: %w", err)
	}

	ifaceCount, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: interfaces_count: %w", err)
	}
	cf.Interfaces = make([]uint16, ifaceCount)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = r.u2(); err != nil {
			return nil, fmt.Errorf("classfile: interfaces[%d]: %w", i, err)
		}
	}

	fieldCount, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: fields_count: %w", err)
	}
	cf.Fields = make([]FieldInfo, fieldCount)
	for i := range cf.Fields {
		if cf.Fields[i], err = parseField(r, cf.ConstantPool); err != nil {
			return nil, fmt.Errorf("classfile: fields[%d]: %w", i, err)
		}
	}

	methodCount, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: methods_count: %w", err)
	}
	cf.Methods = make([]MethodInfo, methodCount)
	for i := range cf.Methods {
		if cf.Methods[i], err = parseMethod(r, cf.ConstantPool); err != nil {
			return nil, fmt.Errorf("classfile: methods[%d]: %w", i, err)
		}
	}

	attrs, err := parseAttributes(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("classfile: class attributes: %w", err)
	}
	cf.Attributes = attrs
	if err := promoteClassAttributes(cf, attrs); err != nil {
		return nil, fmt.Errorf("classfile: promoting class attributes: %w", err)
	}

	return cf, nil
}

func parseConstantPool(r *reader) ([]ConstantPoolEntry, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	pool := make([]ConstantPoolEntry, count) // index 0 unused; pool[count-1] is the last real entry
	for i := 1; i < int(count); i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("entry %d: tag: %w", i, err)
		}
		entry, wide, err := parseConstantEntry(r, tag)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		pool[i] = entry
		if wide {
			// Long/Double entries occupy two constant pool indices (JVMS 4.4.5).
			i++
		}
	}
	return pool, nil
}

func parseConstantEntry(r *reader, tag uint8) (ConstantPoolEntry, bool, error) {
	switch tag {
	case TagUtf8:
		n, err := r.u2()
		if err != nil {
			return nil, false, err
		}
		b, err := r.bytes(int(n))
		if err != nil {
			return nil, false, err
		}
		return &ConstantUtf8{Value: decodeModifiedUTF8(b)}, false, nil
	case TagInteger:
		v, err := r.u4()
		if err != nil {
			return nil, false, err
		}
		return &ConstantInteger{Value: int32(v)}, false, nil
	case TagFloat:
		v, err := r.u4()
		if err != nil {
			return nil, false, err
		}
		return &ConstantFloat{Value: math.Float32frombits(v)}, false, nil
	case TagLong:
		v, err := r.u8()
		if err != nil {
			return nil, false, err
		}
		return &ConstantLong{Value: int64(v)}, true, nil
	case TagDouble:
		v, err := r.u8()
		if err != nil {
			return nil, false, err
		}
		return &ConstantDouble{Value: math.Float64frombits(v)}, true, nil
	case TagClass:
		n, err := r.u2()
		if err != nil {
			return nil, false, err
		}
		return &ConstantClass{NameIndex: n}, false, nil
	case TagString:
		n, err := r.u2()
		if err != nil {
			return nil, false, err
		}
		return &ConstantString{StringIndex: n}, false, nil
	case TagFieldref:
		c, n, err := u2pair(r)
		if err != nil {
			return nil, false, err
		}
		return &ConstantFieldref{ClassIndex: c, NameAndTypeIndex: n}, false, nil
	case TagMethodref:
		c, n, err := u2pair(r)
		if err != nil {
			return nil, false, err
		}
		return &ConstantMethodref{ClassIndex: c, NameAndTypeIndex: n}, false, nil
	case TagInterfaceMethodref:
		c, n, err := u2pair(r)
		if err != nil {
			return nil, false, err
		}
		return &ConstantInterfaceMethodref{ClassIndex: c, NameAndTypeIndex: n}, false, nil
	case TagNameAndType:
		n, d, err := u2pair(r)
		if err != nil {
			return nil, false, err
		}
		return &ConstantNameAndType{NameIndex: n, DescriptorIndex: d}, false, nil
	case TagMethodHandle:
		kind, err := r.u1()
		if err != nil {
			return nil, false, err
		}
		idx, err := r.u2()
		if err != nil {
			return nil, false, err
		}
		return &ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: idx}, false, nil
	case TagMethodType:
		d, err := r.u2()
		if err != nil {
			return nil, false, err
		}
		return &ConstantMethodType{DescriptorIndex: d}, false, nil
	case TagDynamic:
		b, n, err := u2pair(r)
		if err != nil {
			return nil, false, err
		}
		return &ConstantDynamic{BootstrapMethodAttrIndex: b, NameAndTypeIndex: n}, false, nil
	case TagInvokeDynamic:
		b, n, err := u2pair(r)
		if err != nil {
			return nil, false, err
		}
		return &ConstantInvokeDynamic{BootstrapMethodAttrIndex: b, NameAndTypeIndex: n}, false, nil
	default:
		return nil, false, fmt.Errorf("unknown constant pool tag %d", tag)
	}
}

func u2pair(r *reader) (uint16, uint16, error) {
	a, err := r.u2()
	if err != nil {
		return 0, 0, err
	}
	b, err := r.u2()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// decodeModifiedUTF8 takes CONSTANT_Utf8's modified UTF-8 bytes as-is.
// Text that is also standard UTF-8 reads correctly. The two deviations
// are not converted: NUL encoded as 0xC0 0x80 and supplementary
// characters encoded as two 3-byte surrogate sequences stay raw bytes,
// which are invalid UTF-8 in Go and decode to U+FFFD when read as runes.
func decodeModifiedUTF8(b []byte) string { return string(b) }

func parseField(r *reader, pool []ConstantPoolEntry) (FieldInfo, error) {
	flags, err := r.u2()
	if err != nil {
		return FieldInfo{}, err
	}
	nameIdx, err := r.u2()
	if err != nil {
		return FieldInfo{}, err
	}
	descIdx, err := r.u2()
	if err != nil {
		return FieldInfo{}, err
	}
	name, err := GetUtf8(pool, nameIdx)
	if err != nil {
		return FieldInfo{}, err
	}
	desc, err := GetUtf8(pool, descIdx)
	if err != nil {
		return FieldInfo{}, err
	}
	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return FieldInfo{}, err
	}
	f := FieldInfo{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs}
	for _, a := range attrs {
		switch a.Name {
		case "ConstantValue":
			ar := newReader(a.Data)
			idx, err := ar.u2()
			if err != nil {
				return FieldInfo{}, err
			}
			v, err := constantValueOf(pool, idx)
			if err != nil {
				return FieldInfo{}, err
			}
			f.ConstantValue = v
		case "Signature":
			ar := newReader(a.Data)
			idx, err := ar.u2()
			if err != nil {
				return FieldInfo{}, err
			}
			if f.Signature, err = GetUtf8(pool, idx); err != nil {
				return FieldInfo{}, err
			}
		case "Deprecated":
			f.Deprecated = true
		case "RuntimeVisibleAnnotations":
			f.RuntimeVisibleAnnotations = a.Data
		}
	}
	return f, nil
}

func constantValueOf(pool []ConstantPoolEntry, idx uint16) (interface{}, error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return nil, err
	}
	switch v := e.(type) {
	case *ConstantInteger:
		return v.Value, nil
	case *ConstantFloat:
		return v.Value, nil
	case *ConstantLong:
		return v.Value, nil
	case *ConstantDouble:
		return v.Value, nil
	case *ConstantString:
		return GetUtf8(pool, v.StringIndex)
	default:
		return nil, fmt.Errorf("constant pool index %d has tag %d, not valid for ConstantValue", idx, e.Tag())
	}
}

func parseMethod(r *reader, pool []ConstantPoolEntry) (MethodInfo, error) {
	flags, err := r.u2()
	if err != nil {
		return MethodInfo{}, err
	}
	nameIdx, err := r.u2()
	if err != nil {
		return MethodInfo{}, err
	}
	descIdx, err := r.u2()
	if err != nil {
		return MethodInfo{}, err
	}
	name, err := GetUtf8(pool, nameIdx)
	if err != nil {
		return MethodInfo{}, err
	}
	desc, err := GetUtf8(pool, descIdx)
	if err != nil {
		return MethodInfo{}, err
	}
	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return MethodInfo{}, err
	}
	m := MethodInfo{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs}
	for _, a := range attrs {
		switch a.Name {
		case "Code":
			code, err := parseCode(a.Data, pool)
			if err != nil {
				return MethodInfo{}, fmt.Errorf("Code attribute of %s%s: %w", name, desc, err)
			}
			m.Code = code
		case "Exceptions":
			ar := newReader(a.Data)
			n, err := ar.u2()
			if err != nil {
				return MethodInfo{}, err
			}
			for i := 0; i < int(n); i++ {
				idx, err := ar.u2()
				if err != nil {
					return MethodInfo{}, err
				}
				cn, err := GetClassName(pool, idx)
				if err != nil {
					return MethodInfo{}, err
				}
				m.Exceptions = append(m.Exceptions, cn)
			}
		case "Signature":
			ar := newReader(a.Data)
			idx, err := ar.u2()
			if err != nil {
				return MethodInfo{}, err
			}
			if m.Signature, err = GetUtf8(pool, idx); err != nil {
				return MethodInfo{}, err
			}
		case "Deprecated":
			m.Deprecated = true
		case "RuntimeVisibleAnnotations":
			m.RuntimeVisibleAnnotations = a.Data
		case "AnnotationDefault":
			m.AnnotationDefault = a.Data
		case "MethodParameters":
			ar := newReader(a.Data)
			n, err := ar.u1()
			if err != nil {
				return MethodInfo{}, err
			}
			for i := 0; i < int(n); i++ {
				nameIdx, err := ar.u2()
				if err != nil {
					return MethodInfo{}, err
				}
				pflags, err := ar.u2()
				if err != nil {
					return MethodInfo{}, err
				}
				pname := ""
				if nameIdx != 0 {
					if pname, err = GetUtf8(pool, nameIdx); err != nil {
						return MethodInfo{}, err
					}
				}
				m.MethodParameters = append(m.MethodParameters, MethodParameter{Name: pname, AccessFlags: pflags})
			}
		}
	}
	return m, nil
}

func parseCode(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	r := newReader(data)
	maxStack, err := r.u2()
	if err != nil {
		return nil, err
	}
	maxLocals, err := r.u2()
	if err != nil {
		return nil, err
	}
	codeLen, err := r.u4()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}
	code = append([]byte(nil), code...) // own copy, independent of the attribute's backing array

	excCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	handlers := make([]ExceptionHandler, excCount)
	for i := range handlers {
		start, err := r.u2()
		if err != nil {
			return nil, err
		}
		end, err := r.u2()
		if err != nil {
			return nil, err
		}
		h, err := r.u2()
		if err != nil {
			return nil, err
		}
		catch, err := r.u2()
		if err != nil {
			return nil, err
		}
		handlers[i] = ExceptionHandler{StartPC: start, EndPC: end, HandlerPC: h, CatchType: catch}
	}

	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return nil, err
	}
	ca := &CodeAttribute{MaxStack: maxStack, MaxLocals: maxLocals, Code: code, ExceptionHandlers: handlers}
	for _, a := range attrs {
		switch a.Name {
		case "LineNumberTable":
			ar := newReader(a.Data)
			n, err := ar.u2()
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(n); i++ {
				startPC, err := ar.u2()
				if err != nil {
					return nil, err
				}
				line, err := ar.u2()
				if err != nil {
					return nil, err
				}
				ca.LineNumbers = append(ca.LineNumbers, LineNumberEntry{StartPC: startPC, LineNumber: line})
			}
		case "LocalVariableTable":
			ar := newReader(a.Data)
			n, err := ar.u2()
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(n); i++ {
				startPC, err := ar.u2()
				if err != nil {
					return nil, err
				}
				length, err := ar.u2()
				if err != nil {
					return nil, err
				}
				nameIdx, err := ar.u2()
				if err != nil {
					return nil, err
				}
				descIdx, err := ar.u2()
				if err != nil {
					return nil, err
				}
				index, err := ar.u2()
				if err != nil {
					return nil, err
				}
				name, err := GetUtf8(pool, nameIdx)
				if err != nil {
					return nil, err
				}
				desc, err := GetUtf8(pool, descIdx)
				if err != nil {
					return nil, err
				}
				ca.LocalVariables = append(ca.LocalVariables, LocalVariableEntry{
					StartPC: startPC, Length: length, Name: name, Descriptor: desc, Index: index,
				})
			}
		case "StackMapTable":
			ca.StackMapTable = a.Data
		}
	}
	return ca, nil
}

// parseAttributes reads a standard attribute_info table: attributes_count
// followed by that many (name_index, length, bytes) triples. Names are
// resolved against the pool eagerly; bodies are left raw, to be
// specialized by the caller (parseField/parseMethod/parseCode/promoteClassAttributes).
func parseAttributes(r *reader, pool []ConstantPoolEntry) ([]AttributeInfo, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		length, err := r.u4()
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(length))
		if err != nil {
			return nil, err
		}
		name, err := GetUtf8(pool, nameIdx)
		if err != nil {
			return nil, err
		}
		attrs[i] = AttributeInfo{Name: name, Data: append([]byte(nil), data...)}
	}
	return attrs, nil
}

func promoteClassAttributes(cf *ClassFile, attrs []AttributeInfo) error {
	pool := cf.ConstantPool
	for _, a := range attrs {
		switch a.Name {
		case "SourceFile":
			ar := newReader(a.Data)
			idx, err := ar.u2()
			if err != nil {
				return err
			}
			if cf.SourceFile, err = GetUtf8(pool, idx); err != nil {
				return err
			}
		case "Signature":
			ar := newReader(a.Data)
			idx, err := ar.u2()
			if err != nil {
				return err
			}
			if cf.Signature, err = GetUtf8(pool, idx); err != nil {
				return err
			}
		case "Deprecated":
			cf.Deprecated = true
		case "RuntimeVisibleAnnotations":
			cf.RuntimeVisibleAnnotations = a.Data
		case "NestHost":
			ar := newReader(a.Data)
			idx, err := ar.u2()
			if err != nil {
				return err
			}
			if cf.NestHost, err = GetClassName(pool, idx); err != nil {
				return err
			}
		case "NestMembers":
			ar := newReader(a.Data)
			n, err := ar.u2()
			if err != nil {
				return err
			}
			for i := 0; i < int(n); i++ {
				idx, err := ar.u2()
				if err != nil {
					return err
				}
				cn, err := GetClassName(pool, idx)
				if err != nil {
					return err
				}
				cf.NestMembers = append(cf.NestMembers, cn)
			}
		case "EnclosingMethod":
			ar := newReader(a.Data)
			classIdx, err := ar.u2()
			if err != nil {
				return err
			}
			methodIdx, err := ar.u2()
			if err != nil {
				return err
			}
			cf.EnclosingMethod = &EnclosingMethodAttr{ClassIndex: classIdx, MethodIndex: methodIdx}
		case "InnerClasses":
			ar := newReader(a.Data)
			n, err := ar.u2()
			if err != nil {
				return err
			}
			for i := 0; i < int(n); i++ {
				inner, err := ar.u2()
				if err != nil {
					return err
				}
				outer, err := ar.u2()
				if err != nil {
					return err
				}
				nameIdx, err := ar.u2()
				if err != nil {
					return err
				}
				flags, err := ar.u2()
				if err != nil {
					return err
				}
				cf.InnerClasses = append(cf.InnerClasses, InnerClassEntry{
					InnerClassInfoIndex: inner, OuterClassInfoIndex: outer,
					InnerNameIndex: nameIdx, InnerClassAccessFlags: flags,
				})
			}
		case "BootstrapMethods":
			ar := newReader(a.Data)
			n, err := ar.u2()
			if err != nil {
				return err
			}
			for i := 0; i < int(n); i++ {
				methodRef, err := ar.u2()
				if err != nil {
					return err
				}
				argCount, err := ar.u2()
				if err != nil {
					return err
				}
				args := make([]uint16, argCount)
				for j := range args {
					if args[j], err = ar.u2(); err != nil {
						return err
					}
				}
				cf.BootstrapMethods = append(cf.BootstrapMethods, BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args})
			}
		}
	}
	return nil
}
