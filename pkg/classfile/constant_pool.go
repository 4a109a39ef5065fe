package classfile

import "fmt"

// Constant pool tags (JVMS 4.4).
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
)

// Reference kinds for CONSTANT_MethodHandle (JVMS 5.4.3.5).
const (
	RefGetField         uint8 = 1
	RefGetStatic        uint8 = 2
	RefPutField         uint8 = 3
	RefPutStatic        uint8 = 4
	RefInvokeVirtual    uint8 = 5
	RefInvokeStatic     uint8 = 6
	RefInvokeSpecial    uint8 = 7
	RefNewInvokeSpecial uint8 = 8
	RefInvokeInterface  uint8 = 9
)

// cpEntry fetches the entry at a 1-based constant-pool index.
func cpEntry(pool []ConstantPoolEntry, idx uint16) (ConstantPoolEntry, error) {
	if idx == 0 || int(idx) >= len(pool) {
		return nil, fmt.Errorf("classfile: constant pool index %d out of range (size %d)", idx, len(pool))
	}
	e := pool[idx]
	if e == nil {
		return nil, fmt.Errorf("classfile: constant pool index %d is an unusable long/double continuation slot", idx)
	}
	return e, nil
}

// GetUtf8 resolves a CONSTANT_Utf8 entry to its string value.
func GetUtf8(pool []ConstantPoolEntry, idx uint16) (string, error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return "", err
	}
	u, ok := e.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("classfile: constant pool index %d is not Utf8 (tag %d)", idx, e.Tag())
	}
	return u.Value, nil
}

// GetClassName resolves a CONSTANT_Class entry to the fully qualified name
// it names (internal form, slash-separated).
func GetClassName(pool []ConstantPoolEntry, idx uint16) (string, error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return "", err
	}
	c, ok := e.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("classfile: constant pool index %d is not Class (tag %d)", idx, e.Tag())
	}
	return GetUtf8(pool, c.NameIndex)
}

// GetNameAndType resolves a CONSTANT_NameAndType entry to a (name, descriptor) pair.
func GetNameAndType(pool []ConstantPoolEntry, idx uint16) (name, descriptor string, err error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return "", "", err
	}
	nt, ok := e.(*ConstantNameAndType)
	if !ok {
		return "", "", fmt.Errorf("classfile: constant pool index %d is not NameAndType (tag %d)", idx, e.Tag())
	}
	name, err = GetUtf8(pool, nt.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = GetUtf8(pool, nt.DescriptorIndex)
	return name, descriptor, err
}

// RefInfo is the resolved shape of a Fieldref/Methodref/InterfaceMethodref:
// the owning class name plus the member's name and descriptor.
type RefInfo struct {
	ClassName  string
	Name       string
	Descriptor string
}

// GetFieldref resolves a CONSTANT_Fieldref entry.
func GetFieldref(pool []ConstantPoolEntry, idx uint16) (RefInfo, error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return RefInfo{}, err
	}
	f, ok := e.(*ConstantFieldref)
	if !ok {
		return RefInfo{}, fmt.Errorf("classfile: constant pool index %d is not Fieldref (tag %d)", idx, e.Tag())
	}
	return resolveRef(pool, f.ClassIndex, f.NameAndTypeIndex)
}

// GetMethodref resolves a CONSTANT_Methodref entry.
func GetMethodref(pool []ConstantPoolEntry, idx uint16) (RefInfo, error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return RefInfo{}, err
	}
	m, ok := e.(*ConstantMethodref)
	if !ok {
		return RefInfo{}, fmt.Errorf("classfile: constant pool index %d is not Methodref (tag %d)", idx, e.Tag())
	}
	return resolveRef(pool, m.ClassIndex, m.NameAndTypeIndex)
}

// GetInterfaceMethodref resolves a CONSTANT_InterfaceMethodref entry.
func GetInterfaceMethodref(pool []ConstantPoolEntry, idx uint16) (RefInfo, error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return RefInfo{}, err
	}
	m, ok := e.(*ConstantInterfaceMethodref)
	if !ok {
		return RefInfo{}, fmt.Errorf("classfile: constant pool index %d is not InterfaceMethodref (tag %d)", idx, e.Tag())
	}
	return resolveRef(pool, m.ClassIndex, m.NameAndTypeIndex)
}

func resolveRef(pool []ConstantPoolEntry, classIdx, natIdx uint16) (RefInfo, error) {
	className, err := GetClassName(pool, classIdx)
	if err != nil {
		return RefInfo{}, err
	}
	name, descriptor, err := GetNameAndType(pool, natIdx)
	if err != nil {
		return RefInfo{}, err
	}
	return RefInfo{ClassName: className, Name: name, Descriptor: descriptor}, nil
}

// GetMethodHandle resolves a CONSTANT_MethodHandle entry.
func GetMethodHandle(pool []ConstantPoolEntry, idx uint16) (*ConstantMethodHandle, error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return nil, err
	}
	mh, ok := e.(*ConstantMethodHandle)
	if !ok {
		return nil, fmt.Errorf("classfile: constant pool index %d is not MethodHandle (tag %d)", idx, e.Tag())
	}
	return mh, nil
}

// GetMethodType resolves a CONSTANT_MethodType entry to its descriptor string.
func GetMethodType(pool []ConstantPoolEntry, idx uint16) (string, error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return "", err
	}
	mt, ok := e.(*ConstantMethodType)
	if !ok {
		return "", fmt.Errorf("classfile: constant pool index %d is not MethodType (tag %d)", idx, e.Tag())
	}
	return GetUtf8(pool, mt.DescriptorIndex)
}

// GetInvokeDynamic resolves a CONSTANT_InvokeDynamic entry to its bootstrap
// method table index plus the invoked call-site's name and descriptor.
func GetInvokeDynamic(pool []ConstantPoolEntry, idx uint16) (bootstrapIdx uint16, name, descriptor string, err error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return 0, "", "", err
	}
	id, ok := e.(*ConstantInvokeDynamic)
	if !ok {
		return 0, "", "", fmt.Errorf("classfile: constant pool index %d is not InvokeDynamic (tag %d)", idx, e.Tag())
	}
	name, descriptor, err = GetNameAndType(pool, id.NameAndTypeIndex)
	return id.BootstrapMethodAttrIndex, name, descriptor, err
}

// GetDynamic resolves a CONSTANT_Dynamic entry (a condy constant) to its
// bootstrap method table index plus the constant's name and descriptor.
func GetDynamic(pool []ConstantPoolEntry, idx uint16) (bootstrapIdx uint16, name, descriptor string, err error) {
	e, err := cpEntry(pool, idx)
	if err != nil {
		return 0, "", "", err
	}
	d, ok := e.(*ConstantDynamic)
	if !ok {
		return 0, "", "", fmt.Errorf("classfile: constant pool index %d is not Dynamic (tag %d)", idx, e.Tag())
	}
	name, descriptor, err = GetNameAndType(pool, d.NameAndTypeIndex)
	return d.BootstrapMethodAttrIndex, name, descriptor, err
}

// LoadableConstant returns the constant pool entry at idx for an
// ldc/ldc2_w operand, as the raw entry (*ConstantInteger, *ConstantString,
// *ConstantClass, ...); callers switch on its type and materialize it
// themselves. It does not check that the entry is a loadable kind.
func LoadableConstant(pool []ConstantPoolEntry, idx uint16) (ConstantPoolEntry, error) {
	return cpEntry(pool, idx)
}
