package heap

import (
	"fmt"
	"unicode/utf16"

	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// NewJavaString materializes a Go string as a java.lang.String instance
// backed by a char[] (pre-"Compact Strings" JDK layout, matching
// daimatz-gojvm's String handling, which also always stores chars rather
// than a latin1/UTF-16 coder-tagged byte[]).
func (a *ThreadAllocator) NewJavaString(s string, stringClass, charArrayClass *rclass.Class) (*Oop, error) {
	if stringClass.Well == nil {
		return nil, fmt.Errorf("heap: java/lang/String linked without well-known slots")
	}
	units := utf16.Encode([]rune(s))
	arr, err := a.NewTypeArray(charArrayClass, len(units))
	if err != nil {
		return nil, err
	}
	for i, u := range units {
		arr.Elements[i] = slot.Int(int32(u))
	}
	str := a.NewInstance(stringClass)
	str.Fields[stringClass.Well.StringValue] = slot.Reference(arr)
	return str, nil
}

// GoString reads a java.lang.String instance back out as a Go string.
func GoString(str *Oop) (string, error) {
	if str == nil {
		return "", fmt.Errorf("heap: GoString of nil reference")
	}
	if str.Class.Well == nil {
		return "", fmt.Errorf("heap: %s linked without well-known slots", str.Class.Name)
	}
	v := str.Fields[str.Class.Well.StringValue]
	if v.IsNull() {
		return "", nil
	}
	arr, ok := v.Ref.(*Oop)
	if !ok {
		return "", fmt.Errorf("heap: String.value is not an array oop")
	}
	units := make([]uint16, len(arr.Elements))
	for i, e := range arr.Elements {
		units[i] = uint16(e.I32)
	}
	return string(utf16.Decode(units)), nil
}
