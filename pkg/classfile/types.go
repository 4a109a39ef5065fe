// Package classfile parses the JVM class-file binary format (JVMS 4) into
// a strongly-typed in-memory representation: a big-endian stream decoder,
// a 14-tag constant pool, and an attribute table parsed by name into
// dedicated variants. Grounded on daimatz-gojvm/pkg/classfile, extended
// with the full constant-pool tag set and attribute roster spec.md names
// (BootstrapMethods, EnclosingMethod, InnerClasses, LineNumberTable,
// LocalVariableTable, annotations, MethodParameters, NestMembers/NestHost).
package classfile

// Access flags (JVMS 4.1, 4.5, 4.6).
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
	AccModule       = 0x8000
)

// ClassFile is a fully parsed .class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool []ConstantPoolEntry
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	Attributes   []AttributeInfo

	// Promoted class-level attributes, parsed eagerly because the
	// interpreter/class-loader consult them on every class load.
	BootstrapMethods []BootstrapMethod
	SourceFile       string
	Signature        string
	EnclosingMethod  *EnclosingMethodAttr
	InnerClasses     []InnerClassEntry
	NestHost         string
	NestMembers      []string
	Deprecated       bool
	RuntimeVisibleAnnotations []byte
}

// FieldInfo is a field_info entry (JVMS 4.5).
type FieldInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
	ConstantValue interface{} // populated from a ConstantValue attribute, if present
	Signature   string
	Deprecated  bool
	RuntimeVisibleAnnotations []byte
}

// MethodInfo is a method_info entry (JVMS 4.6).
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
	Code        *CodeAttribute
	Exceptions  []string // checked exception class names (Exceptions attribute)
	Signature   string
	Deprecated  bool
	MethodParameters []MethodParameter
	RuntimeVisibleAnnotations []byte
	AnnotationDefault []byte
}

// MethodParameter is one entry of a MethodParameters attribute.
type MethodParameter struct {
	Name        string
	AccessFlags uint16
}

// AttributeInfo is a raw, not-yet-specialized attribute.
type AttributeInfo struct {
	Name string
	Data []byte
}

// ExceptionHandler is one entry of a Code attribute's exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 means catch-all (e.g. finally)
}

// LineNumberEntry maps a bytecode offset to a source line.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// LocalVariableEntry is one entry of a LocalVariableTable attribute.
type LocalVariableEntry struct {
	StartPC   uint16
	Length    uint16
	Name      string
	Descriptor string
	Index     uint16
}

// CodeAttribute is the parsed Code attribute of a method.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
	LineNumbers       []LineNumberEntry
	LocalVariables    []LocalVariableEntry
	StackMapTable     []byte // opaque; verification beyond structural parsing is a non-goal
}

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	MethodRef          uint16 // CP index of a CONSTANT_MethodHandle
	BootstrapArguments []uint16
}

// EnclosingMethodAttr is the parsed EnclosingMethod attribute.
type EnclosingMethodAttr struct {
	ClassIndex       uint16
	MethodIndex      uint16 // 0 if the class is not enclosed by a method
}

// InnerClassEntry is one entry of the InnerClasses attribute.
type InnerClassEntry struct {
	InnerClassInfoIndex   uint16
	OuterClassInfoIndex   uint16
	InnerNameIndex        uint16
	InnerClassAccessFlags uint16
}

// ConstantPoolEntry is implemented by every constant-pool entry variant.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct{ Value string }

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct{ Value int32 }

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct{ Value float32 }

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct{ Value int64 }

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct{ Value float64 }

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct{ NameIndex uint16 }

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct{ StringIndex uint16 }

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// ConstantMethodHandle is a fully parsed CONSTANT_MethodHandle entry.
// ReferenceKind is one of the 9 JVMS reference-kinds (REF_getField=1 ...
// REF_invokeInterface=9).
type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (c *ConstantMethodHandle) Tag() uint8 { return TagMethodHandle }

type ConstantMethodType struct{ DescriptorIndex uint16 }

func (c *ConstantMethodType) Tag() uint8 { return TagMethodType }

// ConstantDynamic is a CONSTANT_Dynamic entry (a condy constant).
type ConstantDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantDynamic) Tag() uint8 { return TagDynamic }

// ConstantInvokeDynamic is a CONSTANT_InvokeDynamic entry.
type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantInvokeDynamic) Tag() uint8 { return TagInvokeDynamic }

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// SuperClassName returns the fully qualified name of the superclass, or ""
// for java/lang/Object (SuperClass index 0).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := GetClassName(cf.ConstantPool, cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// InterfaceNames resolves the interface table to fully qualified names.
func (cf *ClassFile) InterfaceNames() []string {
	names := make([]string, 0, len(cf.Interfaces))
	for _, idx := range cf.Interfaces {
		if name, err := GetClassName(cf.ConstantPool, idx); err == nil {
			names = append(names, name)
		}
	}
	return names
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindField finds a field by name.
func (cf *ClassFile) FindField(name string) *FieldInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name == name {
			return &cf.Fields[i]
		}
	}
	return nil
}

func (f *FieldInfo) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }
func (m *MethodInfo) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }
func (m *MethodInfo) IsNative() bool { return m.AccessFlags&AccNative != 0 }
func (m *MethodInfo) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }
