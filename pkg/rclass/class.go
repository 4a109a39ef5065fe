// Package rclass is the runtime class model: the live Class/Field/Method
// graph the interpreter executes against, as opposed to the classfile
// package's flat on-disk representation. Grounded on daimatz-gojvm's
// pkg/vm class bookkeeping (embedded directly in VM/Frame) and on
// jacobin's classes.go/statics.go split between a class table and a
// separate static-variable table — generalized here into a proper typed
// Class graph with JLS-5.5 initialization ordering and slot assignment,
// since the teacher's VM never separates "parsed class file" from
// "resolved runtime class" and stores static fields in a bare
// map[string]Value per class.
package rclass

import (
	"fmt"
	"sync"

	"github.com/daimatz/rexvm/pkg/classfile"
	"github.com/daimatz/rexvm/pkg/descriptor"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Kind distinguishes the four shapes a runtime Class can take. The
// teacher represents every class the same way (a *classfile.ClassFile
// wrapper); arrays and primitives need their own runtime shape because
// they have no class file at all (spec §3 Class variant design note).
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindInstance
	KindObjectArray
	KindTypeArray
)

// InitState is the class initialization state machine (JLS 12.4.2 / 5.5).
type InitState uint8

const (
	Loaded InitState = iota
	Linked
	Initializing
	Initialized
	Failed
)

// Class is the live, resolved runtime representation of a Java class,
// interface, array type, or primitive type.
type Class struct {
	Kind Kind
	Name string // internal form, e.g. "java/lang/String", "[I", "I"

	// Instance/interface-only fields.
	AccessFlags  uint16
	Super        *Class
	Interfaces   []*Class
	Fields       []*Field
	Methods      []*Method
	SourceFile   string
	Signature    string
	ConstantPool []classfile.ConstantPoolEntry
	BootstrapMethods []classfile.BootstrapMethod

	// Array-only: the element type. For object arrays ElemClass is set;
	// for primitive ("type") arrays ElemPrimitive names the primitive
	// ("I", "J", "Z", ...).
	ElemClass     *Class
	ElemPrimitive string

	// InstanceSlotCount is the total number of slot.Slot cells an
	// instance of this class needs, including all inherited fields
	// (computed bottom-up: Object's fields first, then each subclass
	// appends its own, matching JVMS field layout freedom exercised in
	// allocation order, not declaration order).
	InstanceSlotCount int

	// Statics holds this class's own static field storage (not
	// inherited — each class owns its declared statics independently,
	// JLS 8.3.1.1).
	Statics []slot.Slot

	Well *WellKnownSlots

	Loader ClassLoader

	mu    sync.Mutex
	cond  *sync.Cond
	state InitState
	// initializer is the thread identity (opaque) currently running
	// <clinit>, so the same thread can re-enter a class it is already
	// initializing (JLS 12.4.2 step 2) without deadlocking on mu.
	initializer interface{}
	initErr     error
}

// ClassLoader resolves class names to runtime Classes, loading and
// linking them on demand. Implemented by pkg/classpath and the bootstrap
// loader in cmd/rex; kept as an interface here so rclass never imports
// the class-loading machinery (avoids rclass -> classpath -> rclass
// cycles), mirroring daimatz-gojvm's ClassLoader interface in pkg/vm/classloader.go.
type ClassLoader interface {
	LoadClass(name string) (*Class, error)
}

func NewClass(kind Kind, name string) *Class {
	c := &Class{Kind: kind, Name: name, state: Loaded}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Class) IsInterface() bool { return c.AccessFlags&classfile.AccInterface != 0 }
func (c *Class) IsAbstract() bool  { return c.AccessFlags&classfile.AccAbstract != 0 }
func (c *Class) IsArray() bool     { return c.Kind == KindObjectArray || c.Kind == KindTypeArray }
func (c *Class) IsPrimitive() bool { return c.Kind == KindPrimitive }

// State returns the current initialization state under lock.
func (c *Class) State() InitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EnsureInitialized runs the JLS 5.5 initialization protocol: if another
// thread is initializing this class, block until it finishes (or, if
// it's this thread, return immediately — a class can recursively depend
// on itself during <clinit>, e.g. a static field initializer that
// allocates an instance of its own class). init is called exactly once,
// with the class's lock released, to run <clinit>; it must not be called
// while holding any class lock itself.
func (c *Class) EnsureInitialized(threadID interface{}, init func(*Class) error) error {
	c.mu.Lock()
	for {
		switch c.state {
		case Initialized:
			c.mu.Unlock()
			return nil
		case Failed:
			err := c.initErr
			c.mu.Unlock()
			return fmt.Errorf("rclass: %s: prior initialization failed: %w", c.Name, err)
		case Initializing:
			if c.initializer == threadID {
				c.mu.Unlock()
				return nil
			}
			c.cond.Wait()
			continue
		default: // Loaded, Linked
			c.state = Initializing
			c.initializer = threadID
			c.mu.Unlock()

			if c.Super != nil {
				if err := c.Super.EnsureInitialized(threadID, init); err != nil {
					c.mu.Lock()
					c.state = Failed
					c.initErr = err
					c.cond.Broadcast()
					c.mu.Unlock()
					return err
				}
			}

			err := init(c)

			c.mu.Lock()
			if err != nil {
				c.state = Failed
				c.initErr = err
			} else {
				c.state = Initialized
			}
			c.cond.Broadcast()
			c.mu.Unlock()
			return err
		}
	}
}

// Descriptor renders this class's type as a field descriptor, e.g.
// "Ljava/lang/String;" for an instance class, "[I" for an int array.
func (c *Class) Descriptor() string {
	switch c.Kind {
	case KindPrimitive:
		return c.Name
	case KindTypeArray:
		return "[" + c.ElemPrimitive
	case KindObjectArray:
		return "[" + c.ElemClass.Descriptor()
	default:
		return "L" + c.Name + ";"
	}
}

// FieldType parses a field's descriptor into a descriptor.Type, caching
// nothing — called rarely enough (class linking, reflection) that a
// fresh parse each time is simpler than a cache that must be invalidated.
func FieldType(desc string) (descriptor.Type, error) {
	return descriptor.ParseField(desc)
}
