// Command rex is the VM's CLI entrypoint (spec §6: "rex [-cp <classpath>]
// <main-class> [args…]"). Grounded on daimatz-gojvm's cmd/gojvm/main.go
// (env/flag-cascade classpath resolution, a two-level loader, a single
// top-level Execute call translating a VM error into a stderr message
// and a non-zero exit), generalized from a bare os.Args[1] parse into a
// proper cobra.Command per mabhi256-jdiag's and saferwall-pe's CLI
// wiring (SPEC_FULL.md §6.1).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daimatz/rexvm/internal/vmlog"
	"github.com/daimatz/rexvm/pkg/classpath"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/methodhandle"
	"github.com/daimatz/rexvm/pkg/natives"
	"github.com/daimatz/rexvm/pkg/vmthread"
)

var (
	classpathFlag string
	cpAlias       string
	verboseFlag   bool
)

func main() {
	root := &cobra.Command{
		Use:           "rex <main-class> [args...]",
		Short:         "rex is a self-hosted virtual machine for the Java class-file format",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cp := classpathFlag
			if cmd.Flags().Changed("cp") {
				cp = cpAlias
			}
			return run(cp, args[0], args[1:])
		},
	}
	root.Flags().StringVar(&classpathFlag, "classpath", defaultClasspath(), "colon-separated classpath of directories and .jar/.zip/.jmod files")
	root.Flags().StringVar(&cpAlias, "cp", "", "shorthand for --classpath")
	root.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose VM diagnostics")
	// Everything after the main class belongs to the Java program.
	root.Flags().SetInterspersed(false)

	// pflag reads a single-dash "-cp" as the shorthand cluster "-c -p";
	// rewrite it to the long form among the flags before the main class.
	args := os.Args[1:]
	for i := 0; i < len(args) && strings.HasPrefix(args[i], "-"); i++ {
		if args[i] == "-cp" {
			args[i] = "--cp"
		}
		if args[i] == "--cp" || args[i] == "--classpath" {
			i++ // skip the flag's value
		}
	}
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rex: %v\n", err)
		os.Exit(1)
	}
}

// defaultClasspath mirrors daimatz-gojvm's findJmodPath cascade
// (explicit env var, then JAVA_HOME, then a glob over common install
// locations), generalized into a full classpath entry instead of a
// single jmod path since §4.2.1 wires a colon-separated MultiResolver.
func defaultClasspath() string {
	var entries []string
	if env := os.Getenv("REX_CLASSPATH"); env != "" {
		entries = append(entries, env)
	}
	if jmod := findJavaBaseJmod(); jmod != "" {
		entries = append(entries, jmod)
	}
	entries = append(entries, ".")
	return strings.Join(entries, string(os.PathListSeparator))
}

func findJavaBaseJmod() string {
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// run wires every VM collaborator (spec §2's component list) and drives
// the main class to completion, translating its outcome into the exit
// codes spec §6 specifies.
func run(cp, mainClassArg string, args []string) error {
	vmlog.SetVerbose(verboseFlag)

	h := heap.NewHeap()
	resolver := classpath.ParseClasspath(cp)
	loader := classpath.New(resolver)

	bootAlloc := heap.NewThreadAllocator(h)
	if err := loader.Bootstrap(bootAlloc); err != nil {
		return fmt.Errorf("bootstrapping class loader: %w", err)
	}

	registry := natives.NewRegistry()
	natives.RegisterCore(registry)

	linker := &methodhandle.Linker{Loader: loader}
	mgr := vmthread.NewManager(h, loader, registry, linker)

	mainClassName := strings.ReplaceAll(strings.TrimSuffix(mainClassArg, ".class"), ".", "/")
	mainClass, err := loader.LoadClass(mainClassName)
	if err != nil {
		if classpath.IsClassNotFound(err) {
			return fmt.Errorf("class not found: %s", mainClassArg)
		}
		return err
	}

	result, err := mgr.RunMain(mainClass, args)
	if err != nil {
		return fmt.Errorf("executing %s: %w", mainClassArg, err)
	}

	if result.HaltRequested {
		os.Exit(result.HaltCode)
	}
	if result.Thrown != nil {
		printUncaught(result.Thrown)
		os.Exit(1)
	}
	return nil
}

// printUncaught reports an exception that escaped main exactly as spec
// §7 specifies: "the VM prints the exception class name and
// detailMessage and exits".
func printUncaught(thrown *heap.Oop) {
	name := strings.ReplaceAll(thrown.Class.Name, "/", ".")
	msg := detailMessage(thrown)
	if msg == "" {
		fmt.Fprintf(os.Stderr, "Exception in thread \"main\" %s\n", name)
		return
	}
	fmt.Fprintf(os.Stderr, "Exception in thread \"main\" %s: %s\n", name, msg)
}

func detailMessage(thrown *heap.Oop) string {
	if thrown.Class.Well == nil {
		return ""
	}
	v := thrown.GetField(thrown.Class.Well.ThrowableDetailMessage)
	if v.IsNull() {
		return ""
	}
	strOop, ok := v.Ref.(*heap.Oop)
	if !ok {
		return ""
	}
	s, err := heap.GoString(strOop)
	if err != nil {
		return ""
	}
	return s
}
