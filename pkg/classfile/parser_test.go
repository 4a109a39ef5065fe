package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classBuilder assembles a minimal, well-formed class file byte-for-byte,
// used to drive Parse without needing a real javac-compiled fixture.
type classBuilder struct {
	buf bytes.Buffer
}

func (b *classBuilder) u1(v uint8)  { b.buf.WriteByte(v) }
func (b *classBuilder) u2(v uint16) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *classBuilder) u4(v uint32) { binary.Write(&b.buf, binary.BigEndian, v) }

func (b *classBuilder) utf8(s string) {
	b.u1(TagUtf8)
	b.u2(uint16(len(s)))
	b.buf.WriteString(s)
}

func (b *classBuilder) class(nameIdx uint16) {
	b.u1(TagClass)
	b.u2(nameIdx)
}

// minimalClassFile builds "Foo extends java/lang/Object" with no fields,
// methods or attributes: constant pool has
//
//	#1 Utf8 "Foo"
//	#2 Class #1
//	#3 Utf8 "java/lang/Object"
//	#4 Class #3
func minimalClassFile() []byte {
	var b classBuilder
	b.u4(magic)
	b.u2(0)  // minor
	b.u2(52) // major
	b.u2(5)  // constant_pool_count (1-based, 4 real entries + slot 0)
	b.utf8("Foo")
	b.class(1)
	b.utf8("java/lang/Object")
	b.class(3)
	b.u2(AccPublic | AccSuper) // access_flags
	b.u2(2)                    // this_class -> #2 (Foo)
	b.u2(4)                    // super_class -> #4 (Object)
	b.u2(0)                    // interfaces_count
	b.u2(0)                    // fields_count
	b.u2(0)                    // methods_count
	b.u2(0)                    // attributes_count
	return b.buf.Bytes()
}

func TestParseMinimalClassFile(t *testing.T) {
	cf, err := Parse(minimalClassFile())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cf.MajorVersion != 52 {
		t.Fatalf("MajorVersion = %d, want 52", cf.MajorVersion)
	}
	thisName, err := cf.ClassName()
	if err != nil {
		t.Fatalf("ClassName: %v", err)
	}
	if thisName != "Foo" {
		t.Fatalf("ClassName() = %q, want \"Foo\"", thisName)
	}
	superName := cf.SuperClassName()
	if superName != "java/lang/Object" {
		t.Fatalf("SuperClassName() = %q, want \"java/lang/Object\"", superName)
	}
	if len(cf.Fields) != 0 || len(cf.Methods) != 0 {
		t.Fatalf("expected no fields/methods, got %d fields, %d methods", len(cf.Fields), len(cf.Methods))
	}
}

func TestParseBadMagicFails(t *testing.T) {
	data := minimalClassFile()
	// Corrupt the magic number.
	data[0] = 0x00
	if _, err := Parse(data); err == nil {
		t.Fatalf("Parse with corrupted magic: want error, got nil")
	}
}

func TestParseTruncatedStreamFails(t *testing.T) {
	data := minimalClassFile()
	if _, err := Parse(data[:10]); err == nil {
		t.Fatalf("Parse of truncated stream: want error, got nil")
	}
}

func TestLongDoubleConstantsOccupyTwoSlots(t *testing.T) {
	var b classBuilder
	b.u4(magic)
	b.u2(0)
	b.u2(52)
	b.u2(5) // count: slot0, #1 Long (occupies #1,#2), #3 Utf8, #4 Class
	b.u1(TagLong)
	b.u4(0)
	b.u4(42) // a small positive long value, split hi/lo words
	b.utf8("java/lang/Object")
	b.class(3)
	b.u2(AccPublic | AccSuper)
	b.u2(4) // this_class: reuse #4 as a stand-in, only constant-pool shape matters here
	b.u2(4) // super_class
	b.u2(0)
	b.u2(0)
	b.u2(0)
	b.u2(0)

	cf, err := Parse(b.buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cf.ConstantPool) != 5 {
		t.Fatalf("len(ConstantPool) = %d, want 5 (slot 0, Long at 1+2, Utf8 at 3, Class at 4)", len(cf.ConstantPool))
	}
	if cf.ConstantPool[2] != nil {
		t.Fatalf("ConstantPool[2] (Long's padding slot) = %#v, want nil", cf.ConstantPool[2])
	}
}
