// Package descriptor parses the JVM field and method descriptor grammar
// (JVMS 4.3) into a small typed AST, split out of the class-file parser
// because the interpreter, the class model and the method-handle bridge
// each consume it independently (spec component table: "Constant-pool &
// descriptor parser"). Grounded on daimatz-gojvm's countParams helper
// (pkg/vm/vm.go), generalized from a counter into a full descriptor type.
package descriptor

import "fmt"

// Kind is the basic shape of a descriptor type.
type Kind uint8

const (
	Byte Kind = iota
	Char
	Double
	Float
	Int
	Long
	Short
	Boolean
	Void
	Object
	Array
)

// Type is a parsed field-descriptor type.
type Type struct {
	Kind      Kind
	ClassName string // set when Kind == Object
	Elem      *Type  // set when Kind == Array
}

// Slots returns how many local-variable/operand-stack slots a value of
// this type occupies: 2 for long/double, 1 for everything else.
func (t Type) Slots() int {
	if t.Kind == Long || t.Kind == Double {
		return 2
	}
	return 1
}

// IsReference reports whether this type is a reference (object or array).
func (t Type) IsReference() bool { return t.Kind == Object || t.Kind == Array }

// String renders the type back to its descriptor form; parse(format(parse(d))) == parse(d).
func (t Type) String() string {
	switch t.Kind {
	case Byte:
		return "B"
	case Char:
		return "C"
	case Double:
		return "D"
	case Float:
		return "F"
	case Int:
		return "I"
	case Long:
		return "J"
	case Short:
		return "S"
	case Boolean:
		return "Z"
	case Void:
		return "V"
	case Object:
		return "L" + t.ClassName + ";"
	case Array:
		return "[" + t.Elem.String()
	}
	return "?"
}

// ParseField parses a single field descriptor, e.g. "I", "Ljava/lang/String;", "[[I".
func ParseField(desc string) (Type, error) {
	t, rest, err := parseOne(desc)
	if err != nil {
		return Type{}, err
	}
	if rest != "" {
		return Type{}, fmt.Errorf("descriptor: trailing data in field descriptor %q", desc)
	}
	return t, nil
}

func parseOne(desc string) (Type, string, error) {
	if desc == "" {
		return Type{}, "", fmt.Errorf("descriptor: empty type")
	}
	switch desc[0] {
	case 'B':
		return Type{Kind: Byte}, desc[1:], nil
	case 'C':
		return Type{Kind: Char}, desc[1:], nil
	case 'D':
		return Type{Kind: Double}, desc[1:], nil
	case 'F':
		return Type{Kind: Float}, desc[1:], nil
	case 'I':
		return Type{Kind: Int}, desc[1:], nil
	case 'J':
		return Type{Kind: Long}, desc[1:], nil
	case 'S':
		return Type{Kind: Short}, desc[1:], nil
	case 'Z':
		return Type{Kind: Boolean}, desc[1:], nil
	case 'V':
		return Type{Kind: Void}, desc[1:], nil
	case 'L':
		end := 1
		for end < len(desc) && desc[end] != ';' {
			end++
		}
		if end >= len(desc) {
			return Type{}, "", fmt.Errorf("descriptor: unterminated class type in %q", desc)
		}
		return Type{Kind: Object, ClassName: desc[1:end]}, desc[end+1:], nil
	case '[':
		elem, rest, err := parseOne(desc[1:])
		if err != nil {
			return Type{}, "", err
		}
		return Type{Kind: Array, Elem: &elem}, rest, nil
	default:
		return Type{}, "", fmt.Errorf("descriptor: invalid type char %q in %q", desc[0], desc)
	}
}

// Method is a parsed method descriptor: parameter types and a return type.
type Method struct {
	Params []Type
	Return Type
}

// ParseMethod parses a method descriptor, e.g. "(ILjava/lang/String;)Z".
func ParseMethod(desc string) (Method, error) {
	if len(desc) == 0 || desc[0] != '(' {
		return Method{}, fmt.Errorf("descriptor: method descriptor must start with '(': %q", desc)
	}
	rest := desc[1:]
	var params []Type
	for len(rest) > 0 && rest[0] != ')' {
		t, r, err := parseOne(rest)
		if err != nil {
			return Method{}, err
		}
		params = append(params, t)
		rest = r
	}
	if len(rest) == 0 {
		return Method{}, fmt.Errorf("descriptor: unterminated parameter list in %q", desc)
	}
	rest = rest[1:] // skip ')'
	ret, rest, err := parseOne(rest)
	if err != nil {
		return Method{}, err
	}
	if rest != "" {
		return Method{}, fmt.Errorf("descriptor: trailing data after return type in %q", desc)
	}
	return Method{Params: params, Return: ret}, nil
}

// ParamSlotCount returns the number of local-variable/operand-stack slots
// occupied by the parameters of a method descriptor (longs/doubles count
// as 2), not including an implicit leading `this`.
func ParamSlotCount(desc string) (int, error) {
	m, err := ParseMethod(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range m.Params {
		n += p.Slots()
	}
	return n, nil
}

// String renders a method descriptor back to its string form.
func (m Method) String() string {
	s := "("
	for _, p := range m.Params {
		s += p.String()
	}
	return s + ")" + m.Return.String()
}
