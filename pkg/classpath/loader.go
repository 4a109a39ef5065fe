package classpath

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/daimatz/rexvm/pkg/classfile"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/internal/vmlog"
)

// BasicClass enumerates the "basic java classes" spec §4.2 says are
// preloaded and indexed by enum for O(1) lookup, instead of a name-keyed
// map lookup on every hot-path reference to e.g. java.lang.Object.
type BasicClass int

const (
	Object BasicClass = iota
	ClassClass
	StringClass
	ThreadClass
	ThreadGroupClass
	ThrowableClass
	CloneableClass
	SerializableClass
	BooleanClass
	ByteClass
	CharacterClass
	ShortClass
	IntegerClass
	LongClass
	FloatClass
	DoubleClass
	MethodHandleClass
	ClassLoaderClass
	StackTraceElementClass
	basicClassCount
)

var basicClassNames = map[BasicClass]string{
	Object:                 "java/lang/Object",
	ClassClass:             "java/lang/Class",
	StringClass:            "java/lang/String",
	ThreadClass:            "java/lang/Thread",
	ThreadGroupClass:       "java/lang/ThreadGroup",
	ThrowableClass:         "java/lang/Throwable",
	CloneableClass:         "java/lang/Cloneable",
	SerializableClass:      "java/io/Serializable",
	BooleanClass:           "java/lang/Boolean",
	ByteClass:              "java/lang/Byte",
	CharacterClass:         "java/lang/Character",
	ShortClass:             "java/lang/Short",
	IntegerClass:           "java/lang/Integer",
	LongClass:              "java/lang/Long",
	FloatClass:             "java/lang/Float",
	DoubleClass:            "java/lang/Double",
	MethodHandleClass:      "java/lang/invoke/MethodHandle",
	ClassLoaderClass:       "java/lang/ClassLoader",
	StackTraceElementClass: "java/lang/StackTraceElement",
}

// Loader resolves class names to linked rclass.Class instances,
// implementing rclass.ClassLoader and heap.ClassEnumerator. Thread-safe:
// mu guards only the classes map and is not held while a class is read
// and linked, because linking a class asks the same Loader to resolve the
// class's own super/interfaces. Two goroutines loading the same name at
// once may both link it; the first to store its result wins and the
// other's copy is discarded.
type Loader struct {
	resolver Resolver

	mu      sync.Mutex
	holders int // not used
	owner   *sync.Mutex
	classes map[string]*rclass.Class
	basics  [basicClassCount]*rclass.Class

	anonCounter int64

	mirrorAlloc *heap.ThreadAllocator
	mirrorMu    sync.Mutex
	mirrors     map[*rclass.Class]*heap.Oop
}

// New builds a Loader over resolver. Call Bootstrap before using it to
// load any class, so the basic-classes table and array-class
// superclass/interfaces are available.
func New(resolver Resolver) *Loader {
	return &Loader{
		resolver: resolver,
		classes:  make(map[string]*rclass.Class),
		mirrors:  make(map[*rclass.Class]*heap.Oop),
	}
}

// Bootstrap preloads the eight primitives + void and the basic-classes
// table (spec §4.2), and wires alloc as the allocator used to build
// java.lang.Class mirrors (the "shared holder" of spec §4.5 — mirrors
// are not owned by any one Java thread).
func (l *Loader) Bootstrap(alloc *heap.ThreadAllocator) error {
	l.mirrorAlloc = alloc

	for _, p := range []string{
		rclass.PrimBoolean, rclass.PrimByte, rclass.PrimChar, rclass.PrimShort,
		rclass.PrimInt, rclass.PrimLong, rclass.PrimFloat, rclass.PrimDouble, rclass.PrimVoid,
	} {
		l.classes[p] = rclass.NewPrimitiveClass(p)
	}

	for bc, name := range basicClassNames {
		c, err := l.LoadClass(name)
		if err != nil {
			return fmt.Errorf("classpath: bootstrap: loading basic class %s: %w", name, err)
		}
		l.basics[bc] = c
	}
	return nil
}

// Basic returns a preloaded basic-classes-table entry.
func (l *Loader) Basic(bc BasicClass) *rclass.Class { return l.basics[bc] }

// LoadClass implements rclass.ClassLoader: idempotent, dispatching on
// the name's first character exactly as spec §4.2 describes ('[' ->
// array synthesis, anything else -> instance load via the classpath).
func (l *Loader) LoadClass(name string) (*rclass.Class, error) {
	l.mu.Lock()
	if c, ok := l.classes[name]; ok {
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	var c *rclass.Class
	var err error
	if len(name) > 0 && name[0] == '[' {
		c, err = l.loadArrayClass(name)
	} else {
		c, err = l.loadInstanceClass(name)
	}
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	// Another goroutine may have raced us to the same class; the loser's
	// Class is simply discarded (linking is pure, no side effects on the
	// loader besides the map entry).
	if existing, ok := l.classes[name]; ok {
		l.mu.Unlock()
		return existing, nil
	}
	l.classes[name] = c
	l.mu.Unlock()
	vmlog.Trace("classpath: loaded %s", name)
	return c, nil
}

func (l *Loader) loadInstanceClass(name string) (*rclass.Class, error) {
	rc, ok, err := l.resolver.OpenStream(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("classpath: %s: %w", name, classNotFound{name})
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("classpath: reading %s: %w", name, err)
	}
	return l.linkBytes(data, name)
}

func (l *Loader) linkBytes(data []byte, expectedName string) (*rclass.Class, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("classpath: parsing %s: %w", expectedName, err)
	}

	var super *rclass.Class
	if superName := cf.SuperClassName(); superName != "" {
		super, err = l.LoadClass(superName)
		if err != nil {
			return nil, fmt.Errorf("classpath: resolving superclass of %s: %w", expectedName, err)
		}
	}

	var interfaces []*rclass.Class
	for _, ifname := range cf.InterfaceNames() {
		ic, err := l.LoadClass(ifname)
		if err != nil {
			return nil, fmt.Errorf("classpath: resolving interface of %s: %w", expectedName, err)
		}
		interfaces = append(interfaces, ic)
	}

	c, err := rclass.Link(cf, super, interfaces, l)
	if err != nil {
		return nil, err
	}

	switch c.Name {
	case "java/lang/String", "java/lang/Throwable", "java/lang/Thread":
		w, err := rclass.ResolveWellKnownSlots(c.Name, func(fieldName string) (*rclass.Field, error) {
			return c.ResolveField(fieldName)
		})
		if err == nil {
			c.Well = w
		}
	default:
		// Inherited instance fields keep their slot indices, so a
		// subclass shares its superclass's well-known slots.
		if super != nil {
			c.Well = super.Well
		}
	}
	return c, nil
}

// loadArrayClass synthesizes the runtime Class for "[I", "[[I", "[Ljava/lang/String;",
// etc, wiring it to Object/Cloneable/Serializable and recursing one
// dimension down so "[[I" naturally resolves "[I" first — the loader's
// own classes map is what gives this the "higher/lower dimension
// neighbour" caching spec §4.2 describes, without needing an explicit
// doubly-linked pointer pair on Class itself.
func (l *Loader) loadArrayClass(name string) (*rclass.Class, error) {
	object := l.basics[Object]
	cloneable := l.basics[CloneableClass]
	serializable := l.basics[SerializableClass]

	elemDesc := name[1:]
	if len(elemDesc) == 0 {
		return nil, fmt.Errorf("classpath: malformed array class name %q", name)
	}

	if elemDesc[0] == 'L' {
		elemName := elemDesc[1 : len(elemDesc)-1]
		elem, err := l.LoadClass(elemName)
		if err != nil {
			return nil, err
		}
		return rclass.NewObjectArrayClass(elem, object, cloneable, serializable), nil
	}
	if elemDesc[0] == '[' {
		elem, err := l.LoadClass(elemDesc)
		if err != nil {
			return nil, err
		}
		return rclass.NewObjectArrayClass(elem, object, cloneable, serializable), nil
	}
	return rclass.NewTypeArrayClass(elemDesc, object, cloneable, serializable), nil
}

// DefineClass implements the load_instance_class(bytes, len, named)
// contract (spec §4.2) for dynamically-defined classes
// (Unsafe.defineAnonymousClass, proxy generation): if declaredName
// collides with an already-loaded class, a synthetic unique name
// ANONYMOUS<N> is assigned instead.
func (l *Loader) DefineClass(data []byte, declaredName string) (*rclass.Class, error) {
	l.mu.Lock()
	_, collides := l.classes[declaredName]
	l.mu.Unlock()

	name := declaredName
	if collides {
		n := atomic.AddInt64(&l.anonCounter, 1)
		name = fmt.Sprintf("ANONYMOUS%d", n)
	}

	c, err := l.linkBytes(data, name)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.classes[name] = c
	l.mu.Unlock()
	return c, nil
}

// AllClasses implements heap.ClassEnumerator: every loaded class's
// Statics slice is a GC root (JLS 12.6.1).
func (l *Loader) AllClasses() []*rclass.Class {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*rclass.Class, 0, len(l.classes))
	for _, c := range l.classes {
		out = append(out, c)
	}
	return out
}

// Mirrors implements heap.ClassEnumerator: every java.lang.Class instance
// created so far by MirrorFor is a GC root in its own right (spec §4.6),
// independent of whether any other live reference still points at it.
func (l *Loader) Mirrors() []*heap.Oop {
	l.mirrorMu.Lock()
	defer l.mirrorMu.Unlock()
	out := make([]*heap.Oop, 0, len(l.mirrors))
	for _, m := range l.mirrors {
		out = append(out, m)
	}
	return out
}

// StringClass/CharArrayClass/MirrorFor implement interp.WellKnownClasses.
func (l *Loader) StringClass() *rclass.Class { return l.basics[StringClass] }

func (l *Loader) CharArrayClass() *rclass.Class {
	c, err := l.LoadClass("[C")
	if err != nil {
		// [C is synthesized purely from already-loaded Object/Cloneable/
		// Serializable, so this can only fail if Bootstrap was skipped.
		panic(fmt.Sprintf("classpath: [C unavailable: %v", err))
	}
	return c
}

// MirrorFor lazily creates (and caches, so `Foo.class == Foo.class`
// holds, spec §3 invariant) the java.lang.Class mirror for c.
func (l *Loader) MirrorFor(c *rclass.Class) (*heap.Oop, error) {
	l.mirrorMu.Lock()
	defer l.mirrorMu.Unlock()
	if m, ok := l.mirrors[c]; ok {
		return m, nil
	}
	classClass := l.basics[ClassClass]
	if classClass == nil {
		return nil, fmt.Errorf("classpath: mirror requested before bootstrap")
	}
	m := l.mirrorAlloc.NewMirror(classClass, &heap.MirrorTarget{Kind: heap.MirrorClass, Class: c})
	l.mirrors[c] = m
	return m, nil
}

type classNotFound struct{ name string }

func (e classNotFound) Error() string { return "class not found: " + e.name }

// IsClassNotFound reports whether err (or one of its wrapped causes)
// denotes a class the resolver simply never found, vs. a structural
// parse failure — callers translate the former into
// java.lang.ClassNotFoundException (spec §7) and treat the latter as fatal.
func IsClassNotFound(err error) bool {
	for err != nil {
		if _, ok := err.(classNotFound); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
