// Package natives is the native-method registry and dispatch contract: a
// process-wide name-indexed table mapping (class_name, method_name,
// descriptor) to a host Go function, populated at VM boot by a fixed set
// of native modules.
//
// Grounded on jacobin's gfunction package pattern (javaLangString.go,
// javaLangThread.go, javaLangStringBuilder.go, javaUtilHashMap.go,
// javaIoInputStreamReader.go: each exposes a Load_* function populating a
// package-level table keyed by "class/Name.method(descriptor)"), which
// generalizes daimatz-gojvm's bare switch-statement executeNativeMethod
// (pkg/vm/vm.go) into a name-indexed registration table.
package natives

import (
	"fmt"

	"github.com/daimatz/rexvm/internal/vmlog"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Fn is one native method body. args includes the receiver as args[0]
// for instance methods, matching how interp.invokeMethod assembles the
// call — exactly what a hand-written JNI-ish bridge function wants
// without re-deriving "is this static" from the Method every time.
type Fn func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error)

// Registry is the process-wide native method table, implementing
// interp.NativeInvoker.
type Registry struct {
	table map[string]Fn
}

// NewRegistry builds an empty table; call RegisterCore to populate the
// fixed native module set.
func NewRegistry() *Registry {
	return &Registry{table: make(map[string]Fn)}
}

// key renders the registration/dispatch key: "class/Name.method(descriptor)".
func key(className, methodName, descriptor string) string {
	return className + "." + methodName + descriptor
}

// Register adds one native method body to the table. Called by each
// module's load* function (loadLang, loadIO, ...) during RegisterCore.
func (r *Registry) Register(className, methodName, descriptor string, fn Fn) {
	r.table[key(className, methodName, descriptor)] = fn
}

// Invoke implements interp.NativeInvoker. The first successful lookup is
// cached onto method.NativeHandler so repeat calls through a hot loop
// skip the map lookup entirely.
func (r *Registry) Invoke(ctx interp.Context, method *rclass.Method, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	if cached, ok := method.NativeHandler.(Fn); ok {
		return cached(ctx, args)
	}

	k := key(method.DeclaringClass.Name, method.Name, method.Descriptor)
	fn, ok := r.table[k]
	if !ok {
		// The native layer is hand-written per host OS, not dynamically
		// linked, so an unregistered native is a build-time omission
		// rather than a recoverable runtime condition.
		vmlog.Fatal("natives: unregistered native method %s", k)
		return slot.Slot{}, nil, fmt.Errorf("natives: unregistered native method %s", k)
	}
	method.NativeHandler = fn
	return fn(ctx, args)
}

// Len reports how many natives are currently registered, for diagnostics
// and tests.
func (r *Registry) Len() int { return len(r.table) }
