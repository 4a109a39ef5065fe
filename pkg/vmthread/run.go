package vmthread

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// RunResult is what RunMain reports back to cmd/rex once the main
// thread's call to main([Ljava/lang/String;)V returns or propagates an
// exception past the top frame.
type RunResult struct {
	// Thrown is the Throwable that escaped main, if any (spec §7:
	// "on reaching the empty frame stack, the VM prints the exception
	// class name and detailMessage and exits").
	Thrown *heap.Oop
	// HaltCode, if HaltRequested, is the status java.lang.Shutdown.halt0
	// was called with; it takes priority over a normal return (spec §6).
	HaltRequested bool
	HaltCode      int
}

// RunMain drives the main thread exactly as spec §4.7 describes: it is
// created pre-populated with the bootstrap System.initializeSystemClass
// (best-effort — a minimal test classpath may not carry a full
// java.lang.System, in which case this step is silently skipped rather
// than failing the whole run), then mainClass's own <clinit>, then
// main(String[]) with argv threaded in as a String[] built from args.
func (m *Manager) RunMain(mainClass *rclass.Class, args []string) (RunResult, error) {
	t := m.newThread("main")
	m.register(t)
	defer m.unregister(t)
	t.status = int32(StatusRunnable)

	if err := t.bootstrapSystemClass(); err != nil {
		return RunResult{}, err
	}

	if err := interp.EnsureInit(t, mainClass); err != nil {
		return RunResult{}, fmt.Errorf("vmthread: initializing %s: %w", mainClass.Name, err)
	}

	mainMethod, err := mainClass.ResolveMethod("main", "([Ljava/lang/String;)V")
	if err != nil {
		return RunResult{}, fmt.Errorf("vmthread: %s has no main([Ljava/lang/String;)V: %w", mainClass.Name, err)
	}
	if !mainMethod.IsStatic() {
		return RunResult{}, fmt.Errorf("vmthread: %s.main is not static", mainClass.Name)
	}

	argv, err := t.buildArgs(args)
	if err != nil {
		return RunResult{}, fmt.Errorf("vmthread: building argv: %w", err)
	}

	f := interp.NewFrame(mainMethod, nil)
	f.Locals[0] = slot.Reference(argv)
	_, thrown, err := interp.Run(t, f)

	if halted, code := m.Halted(); halted {
		return RunResult{HaltRequested: true, HaltCode: code}, nil
	}
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{Thrown: thrown}, nil
}

// bootstrapSystemClass runs java/lang/System's own <clinit> plus, if
// present, its legacy initializeSystemClass()V bootstrap method (pre-
// Java-9 System bring-up, consistent with this VM's non-goal of Java 9+
// module-system support). A classpath that doesn't carry a full
// java.lang.System (e.g. a minimal hand-built test fixture) simply skips
// this step — the VM's own natives (System.currentTimeMillis,
// FileOutputStream.writeBytes, ...) work regardless of whether System's
// own Java-level bring-up ran.
func (t *VMThread) bootstrapSystemClass() error {
	sysClass, err := t.mgr.Loader.LoadClass("java/lang/System")
	if err != nil {
		return nil
	}
	if err := interp.EnsureInit(t, sysClass); err != nil {
		return fmt.Errorf("vmthread: java/lang/System.<clinit>: %w", err)
	}
	init, err := sysClass.ResolveMethod("initializeSystemClass", "()V")
	if err != nil || !init.IsStatic() {
		return nil
	}
	f := interp.NewFrame(init, nil)
	_, thrown, err := interp.Run(t, f)
	if err != nil {
		return fmt.Errorf("vmthread: System.initializeSystemClass: %w", err)
	}
	if thrown != nil {
		return fmt.Errorf("vmthread: System.initializeSystemClass threw %s", thrown.Class.Name)
	}
	return nil
}

// buildArgs materializes the CLI's trailing positional arguments as a
// java.lang.String[] for main's sole parameter.
func (t *VMThread) buildArgs(args []string) (*heap.Oop, error) {
	stringArrayClass, err := t.mgr.Loader.LoadClass("[Ljava/lang/String;")
	if err != nil {
		return nil, err
	}
	arr, err := t.alloc.NewObjectArray(stringArrayClass, len(args))
	if err != nil {
		return nil, err
	}
	stringClass := t.mgr.Loader.StringClass()
	charArrayClass := t.mgr.Loader.CharArrayClass()
	for i, a := range args {
		s, err := t.alloc.NewJavaString(a, stringClass, charArrayClass)
		if err != nil {
			return nil, err
		}
		arr.Elements[i] = slot.Reference(s)
	}
	return arr, nil
}
