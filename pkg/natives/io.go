package natives

import (
	"bufio"
	"fmt"
	"os"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/slot"
)

// loadIO registers the small set of java.io natives needed to get bytes
// on and off the process: FileOutputStream/FileInputStream's raw
// read/write on fd 0/1/2, plus PrintStream's write path, which in a real
// JDK bottoms out at FileOutputStream.writeBytes. Grounded on jacobin's
// javaPrintStream.go (Println delegating straight to a host stream) and
// generalized to byte-array writes and a File-backed read path.
func loadIO(r *Registry) {
	r.Register("java/io/FileOutputStream", "writeBytes", "([BIIZ)V", fileOutputWriteBytes)
	r.Register("java/io/FileOutputStream", "write", "(I)V", fileOutputWriteByte)
	r.Register("java/io/FileOutputStream", "open0", "(Ljava/lang/String;Z)V", fileOpenNoop)
	r.Register("java/io/FileOutputStream", "close0", "()V", fileCloseNoop)

	r.Register("java/io/FileInputStream", "read0", "()I", fileInputReadByte)
	r.Register("java/io/FileInputStream", "readBytes", "([BII)I", fileInputReadBytes)
	r.Register("java/io/FileInputStream", "open0", "(Ljava/lang/String;)V", fileOpenNoop)
	r.Register("java/io/FileInputStream", "close0", "()V", fileCloseNoop)
}

// fdOf returns the fd number of a FileOutputStream/FileInputStream oop,
// read from its first instance field (0/1/2 for stdin/stdout/stderr, the
// only channels this VM's natives ever open); a nil or field-less oop
// yields 1 (stdout) since there is no real file descriptor table behind it.
func fdOf(this *heap.Oop) int32 {
	if this == nil || len(this.Fields) == 0 {
		return 1
	}
	return this.Fields[0].I32
}

func writerFor(fd int32) *os.File {
	switch fd {
	case 0:
		return os.Stdin
	case 2:
		return os.Stderr
	default:
		return os.Stdout
	}
}

func fileOutputWriteBytes(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	arr := args[1].Ref.(*heap.Oop)
	off, length := args[2].I32, args[3].I32
	if off < 0 || length < 0 || int(off+length) > arr.Length() {
		oop, err := ctx.Exceptions().NewException(ctx, "java/lang/IndexOutOfBoundsException", "")
		return slot.Slot{}, oop, err
	}
	buf := make([]byte, length)
	for i := int32(0); i < length; i++ {
		buf[i] = byte(arr.Elements[off+i].I32)
	}
	w := writerFor(fdOf(this))
	_, err := w.Write(buf)
	if err != nil {
		oop, nerr := ctx.Exceptions().NewException(ctx, "java/io/IOException", err.Error())
		return slot.Slot{}, oop, nerr
	}
	return slot.Slot{}, nil, nil
}

func fileOutputWriteByte(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	b := byte(args[1].I32)
	fmt.Fprintf(writerFor(fdOf(this)), "%c", b)
	return slot.Slot{}, nil, nil
}

func fileOpenNoop(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Slot{}, nil, nil
}

func fileCloseNoop(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Slot{}, nil, nil
}

var stdinReader = bufio.NewReader(os.Stdin)

func fileInputReadByte(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	b, err := stdinReader.ReadByte()
	if err != nil {
		return slot.Int(-1), nil, nil
	}
	return slot.Int(int32(b)), nil, nil
}

func fileInputReadBytes(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	arr := args[1].Ref.(*heap.Oop)
	off, length := args[2].I32, args[3].I32
	if off < 0 || length < 0 || int(off+length) > arr.Length() {
		oop, err := ctx.Exceptions().NewException(ctx, "java/lang/IndexOutOfBoundsException", "")
		return slot.Slot{}, oop, err
	}
	buf := make([]byte, length)
	n, err := stdinReader.Read(buf)
	if n == 0 && err != nil {
		return slot.Int(-1), nil, nil
	}
	for i := 0; i < n; i++ {
		arr.Elements[off+int32(i)] = slot.Int(int32(buf[i]))
	}
	return slot.Int(int32(n)), nil, nil
}
