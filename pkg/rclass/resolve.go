package rclass

import "fmt"

// ResolveMethod implements JVMS 5.4.3.3/5.4.3.4 method resolution: search
// this class and its superclass chain first, then its transitive
// interfaces (for default methods and, on failure, for a usable abstract
// declaration to report). Grounded on daimatz-gojvm's Frame.findMethod,
// which only walks the superclass chain (the teacher never calls a
// default interface method); interface search is added because
// invokeinterface and invokevirtual targeting a default method both need
// it.
func (c *Class) ResolveMethod(name, desc string) (*Method, error) {
	for cur := c; cur != nil; cur = cur.Super {
		for _, m := range cur.Methods {
			if m.Name == name && m.Descriptor == desc && !m.IsAbstract() {
				return m, nil
			}
		}
	}
	if m := c.resolveInterfaceMethod(name, desc, map[*Class]bool{}); m != nil {
		return m, nil
	}
	// Fall back to an abstract declaration so the caller can distinguish
	// "no such method" from "method exists but has no body" (AbstractMethodError).
	for cur := c; cur != nil; cur = cur.Super {
		for _, m := range cur.Methods {
			if m.Name == name && m.Descriptor == desc {
				return m, nil
			}
		}
	}
	return nil, fmt.Errorf("rclass: %s: no such method %s%s", c.Name, name, desc)
}

func (c *Class) resolveInterfaceMethod(name, desc string, seen map[*Class]bool) *Method {
	if c == nil || seen[c] {
		return nil
	}
	seen[c] = true
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == desc && !m.IsAbstract() {
			return m
		}
	}
	for _, iface := range c.Interfaces {
		if m := iface.resolveInterfaceMethod(name, desc, seen); m != nil {
			return m
		}
	}
	if c.Super != nil {
		return c.Super.resolveInterfaceMethod(name, desc, seen)
	}
	return nil
}

// ResolveVirtual performs dynamic (virtual) dispatch: given a declared
// target descriptor, find the most-derived override starting from the
// receiver's actual runtime class. Private and static methods never
// participate — those are resolved statically by the caller before a
// Class is even consulted (invokespecial/invokestatic).
func (receiver *Class) ResolveVirtual(name, desc string) (*Method, error) {
	return receiver.ResolveMethod(name, desc)
}

// ResolveField implements JVMS 5.4.3.2 field resolution: search this
// class, then superinterfaces, then superclasses.
func (c *Class) ResolveField(name string) (*Field, error) {
	if f := c.findOwnField(name); f != nil {
		return f, nil
	}
	for _, iface := range c.Interfaces {
		if f, err := iface.ResolveField(name); err == nil {
			return f, nil
		}
	}
	if c.Super != nil {
		return c.Super.ResolveField(name)
	}
	return nil, fmt.Errorf("rclass: %s: no such field %s", c.Name, name)
}

func (c *Class) findOwnField(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// IsAssignableFrom reports whether a value of class `from` can be
// assigned to a variable of class `c` (JVMS 4.10.1.2 / checkcast-ldc
// semantics), i.e. whether `from` is `c` or a subtype of it. Grounded on
// daimatz-gojvm's instanceOf helper in pkg/vm/vm.go, generalized to cover
// arrays and interfaces which the teacher's version special-cases only
// partially (it has no array covariance handling).
func (c *Class) IsAssignableFrom(from *Class) bool {
	if c == nil || from == nil {
		return false
	}
	if c.Name == "java/lang/Object" && !from.IsPrimitive() {
		return true
	}
	if c.IsArray() && from.IsArray() {
		return arrayAssignable(c, from)
	}
	if c.IsArray() != from.IsArray() {
		return false
	}
	for cur := from; cur != nil; cur = cur.Super {
		if cur == c {
			return true
		}
		if c.IsInterface() && cur.implementsInterface(c) {
			return true
		}
	}
	return false
}

func (c *Class) implementsInterface(target *Class) bool {
	for _, iface := range c.Interfaces {
		if iface == target || iface.implementsInterface(target) {
			return true
		}
	}
	return false
}

// arrayAssignable implements JVMS 4.10.1.2's array covariance rules: T[]
// is assignable to S[] iff T is assignable to S (reference element types)
// or T == S (primitive element types, which are never covariant).
func arrayAssignable(to, from *Class) bool {
	if to.Kind == KindTypeArray || from.Kind == KindTypeArray {
		return to.Kind == from.Kind && to.ElemPrimitive == from.ElemPrimitive
	}
	return to.ElemClass.IsAssignableFrom(from.ElemClass)
}
