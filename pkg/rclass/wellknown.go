package rclass

// WellKnownSlots caches the field-slot indices of a handful of JDK
// classes the interpreter and native layer touch on every hot path
// (String's backing array, Throwable's message and stack trace, Thread's
// state fields) so they don't need a name-based ResolveField call on
// every access. Set by pkg/classpath's Loader on each class it links:
// java/lang/String, java/lang/Throwable and java/lang/Thread get their own
// indices, and every other class shares its superclass's.
// Grounded on SPEC_FULL.md §3.1's WellKnownSlots design, which replaces
// RexVM's composite_ptr.hpp pointer-tagging trick (not idiomatic Go) with
// plain cached integer indices.
type WellKnownSlots struct {
	// java/lang/String
	StringValue int // char[] or byte[] backing array (Compact Strings-free: char[])
	StringHash  int

	// java/lang/Throwable
	ThrowableDetailMessage int
	ThrowableCause          int
	ThrowableStackTrace     int
	ThrowableBackingTrace   int // the backtrace field; the fillInStackTrace native leaves it unset

	// java/lang/Thread
	ThreadName     int
	ThreadPriority int
	ThreadDaemon   int
	ThreadTarget   int // the Runnable passed to the constructor
	ThreadTid      int
	ThreadStatus   int // cached slot for the threadStatus int field, spec §4.7

	// java/lang/Class (the mirror object's own fields, distinct from the
	// rclass.Class it mirrors — see pkg/heap.MirrorTarget)
	ClassName int
}

// ResolveWellKnownSlots looks up the cached field indices for one of the
// bootstrap classes this struct tracks; it is a no-op (leaves zero
// values) for any class name it doesn't recognize, since most classes
// never need a WellKnownSlots entry at all.
func ResolveWellKnownSlots(name string, resolve func(string) (*Field, error)) (*WellKnownSlots, error) {
	w := &WellKnownSlots{}
	switch name {
	case "java/lang/String":
		if f, err := resolve("value"); err == nil {
			w.StringValue = f.SlotIndex
		}
		if f, err := resolve("hash"); err == nil {
			w.StringHash = f.SlotIndex
		}
	case "java/lang/Throwable":
		if f, err := resolve("detailMessage"); err == nil {
			w.ThrowableDetailMessage = f.SlotIndex
		}
		if f, err := resolve("cause"); err == nil {
			w.ThrowableCause = f.SlotIndex
		}
		if f, err := resolve("stackTrace"); err == nil {
			w.ThrowableStackTrace = f.SlotIndex
		}
		if f, err := resolve("backtrace"); err == nil {
			w.ThrowableBackingTrace = f.SlotIndex
		}
	case "java/lang/Thread":
		if f, err := resolve("name"); err == nil {
			w.ThreadName = f.SlotIndex
		}
		if f, err := resolve("priority"); err == nil {
			w.ThreadPriority = f.SlotIndex
		}
		if f, err := resolve("daemon"); err == nil {
			w.ThreadDaemon = f.SlotIndex
		}
		if f, err := resolve("target"); err == nil {
			w.ThreadTarget = f.SlotIndex
		}
		if f, err := resolve("tid"); err == nil {
			w.ThreadTid = f.SlotIndex
		}
		if f, err := resolve("threadStatus"); err == nil {
			w.ThreadStatus = f.SlotIndex
		}
	}
	return w, nil
}
