package interp

import "github.com/daimatz/rexvm/pkg/rclass"

// resolvedCache memoizes the result of resolving a constant-pool
// reference (field, method, class) keyed by the bytecode offset of the
// instruction that referenced it, so a hot loop executing getfield/
// invokevirtual/etc in a tight loop only pays JVMS 5.4.3 resolution cost
// once per call site, not once per execution. Grounded on spec §4.5's
// "per-frame resolved-ref cache" requirement; the teacher re-resolves
// the constant pool on every single instruction execution (no cache at
// all), acceptable for its scope but not for a frame that might run the
// same loop body millions of times.
type resolvedCache struct {
	entries map[int]interface{}
}

func (c *resolvedCache) get(pc int) (interface{}, bool) {
	if c.entries == nil {
		return nil, false
	}
	v, ok := c.entries[pc]
	return v, ok
}

func (c *resolvedCache) put(pc int, v interface{}) {
	if c.entries == nil {
		c.entries = make(map[int]interface{})
	}
	c.entries[pc] = v
}

// resolvedField is cached by getfield/putfield/getstatic/putstatic.
type resolvedField struct {
	Field *rclass.Field
	Owner *rclass.Class
}

// resolvedMethod is cached by invokevirtual/invokespecial/invokestatic/invokeinterface.
type resolvedMethod struct {
	Method *rclass.Method
	Owner  *rclass.Class
}

// resolvedClass is cached by new/anewarray/checkcast/instanceof/multianewarray.
type resolvedClass struct {
	Class *rclass.Class
}
