// Package classpath is the classpath probing collaborator and the
// concrete rclass.ClassLoader/heap.ClassEnumerator implementation: it
// turns a qualified class name into parsed, linked bytes via a
// colon-separated chain of directory and archive entries, synthesizes
// primitive and array classes, and preloads the "basic java classes"
// table spec §4.2 calls for.
//
// Grounded on daimatz-gojvm/pkg/vm/classloader.go's JmodClassLoader/
// UserClassLoader split (parent-delegates-first, per-loader cache),
// generalized from "one jmod + one user directory" into an arbitrary
// colon-separated classpath per SPEC_FULL.md §4.2.1, and on
// saferwall-pe's mmap-go-backed binary reads for the archive entry path.
package classpath

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// Resolver is the classpath probing collaborator spec §6 describes as
// external: "open_stream(qualified_name + '.class') -> optional<stream>".
type Resolver interface {
	// OpenStream opens qualifiedName+".class" (internal form, slash-
	// separated) if present, reporting ok=false rather than an error
	// when the entry simply isn't there so MultiResolver can fall
	// through to the next classpath entry.
	OpenStream(qualifiedName string) (rc io.ReadCloser, ok bool, err error)
}

// DirResolver is one classpath directory entry.
type DirResolver struct {
	Dir string
}

func (d *DirResolver) OpenStream(name string) (io.ReadCloser, bool, error) {
	path := filepath.Join(d.Dir, filepath.FromSlash(name)+".class")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("classpath: opening %s: %w", path, err)
	}
	return f, true, nil
}

// ArchiveResolver is a .jar/.zip/.jmod classpath entry. The archive's
// bytes are memory-mapped (saferwall-pe's mmap-go idiom) rather than
// slurped with ioutil.ReadFile, since classpath archives (especially a
// JDK's java.base module) run tens of megabytes and mapping avoids a
// full copy into the Go heap just to hand archive/zip a byte slice.
type ArchiveResolver struct {
	path   string
	isJmod bool

	mu     sync.Mutex
	file   *os.File
	region mmap.MMap
	zr     *zip.Reader
}

// NewArchiveResolver opens path lazily; the mmap and zip.Reader are only
// built on first OpenStream call, matching the teacher's
// ensureZipReader's lazy-open discipline.
func NewArchiveResolver(path string) *ArchiveResolver {
	return &ArchiveResolver{path: path, isJmod: strings.HasSuffix(path, ".jmod")}
}

func (a *ArchiveResolver) ensureOpen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.zr != nil {
		return nil
	}

	f, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("classpath: opening archive %s: %w", a.path, err)
	}

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("classpath: mmapping %s: %w", a.path, err)
	}

	data := []byte(region)
	if a.isJmod {
		// jmod files are a plain zip archive preceded by a 4-byte "JM\x01\x00"
		// magic header (daimatz-gojvm/pkg/vm/classloader.go's ensureZipReader).
		data = data[4:]
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		region.Unmap()
		f.Close()
		return fmt.Errorf("classpath: %s is not a valid archive: %w", a.path, err)
	}

	a.file = f
	a.region = region
	a.zr = zr
	return nil
}

func (a *ArchiveResolver) entryName(qualifiedName string) string {
	if a.isJmod {
		return "classes/" + qualifiedName + ".class"
	}
	return qualifiedName + ".class"
}

func (a *ArchiveResolver) OpenStream(name string) (io.ReadCloser, bool, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, false, err
	}
	target := a.entryName(name)
	for _, f := range a.zr.File {
		if f.Name == target {
			rc, err := f.Open()
			if err != nil {
				return nil, false, fmt.Errorf("classpath: opening archive entry %s: %w", target, err)
			}
			return rc, true, nil
		}
	}
	return nil, false, nil
}

func (a *ArchiveResolver) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.region != nil {
		a.region.Unmap()
	}
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// MultiResolver chains classpath entries in order, first hit wins — the
// concrete "classpath" of spec §6.
type MultiResolver struct {
	Entries []Resolver
}

func (m *MultiResolver) OpenStream(name string) (io.ReadCloser, bool, error) {
	for _, e := range m.Entries {
		rc, ok, err := e.OpenStream(name)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return rc, true, nil
		}
	}
	return nil, false, nil
}

// ParseClasspath splits a colon-separated classpath string (spec §6)
// into a MultiResolver of DirResolver/ArchiveResolver entries, one per
// path component in order.
func ParseClasspath(cp string) *MultiResolver {
	m := &MultiResolver{}
	for _, part := range strings.Split(cp, string(os.PathListSeparator)) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch {
		case strings.HasSuffix(part, ".jar"), strings.HasSuffix(part, ".zip"), strings.HasSuffix(part, ".jmod"):
			m.Entries = append(m.Entries, NewArchiveResolver(part))
		default:
			m.Entries = append(m.Entries, &DirResolver{Dir: part})
		}
	}
	return m
}
