package trace

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// OpCode identifies the kind of a trace record
type OpCode uint8

const (
	// OpAlloc records an allocation of Size bytes
	OpAlloc OpCode = iota
	// OpFree records the release of the object created by record ID
	OpFree
	// OpRealloc records the resize of the object created by record ID to Size bytes
	OpRealloc
)

var opCodeMapping = map[OpCode]string{
	OpAlloc:   "Alloc",
	OpFree:    "Free",
	OpRealloc: "Realloc",
}

func (c OpCode) String() string {
	str, ok := opCodeMapping[c]
	if !ok {
		return "Unknown"
	}
	return str
}

// Operation is a single trace record. Every OpAlloc and OpRealloc record creates an object whose
// id is the record's index in the trace. OpFree and OpRealloc records consume the object named
// by ID.
type Operation struct {
	Op   OpCode
	ID   uint32
	Size uint32
}

// Operations is an allocation trace that can be replayed against an Allocator
type Operations []Operation

// ReadTrace loads a binary trace file
func ReadTrace(path string) (Operations, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open trace %s", path)
	}
	defer file.Close()

	ops, err := ParseTrace(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read trace %s", path)
	}
	return ops, nil
}

// ParseTrace decodes a binary trace. Each record is a one-byte OpCode followed by its fields as
// little-endian uint32s: OpAlloc carries {size}, OpFree carries {id}, and OpRealloc carries
// {id, size}.
func ParseTrace(r io.Reader) (Operations, error) {
	reader := bufio.NewReader(r)
	var ops Operations
	var field [4]byte

	readField := func() (uint32, error) {
		_, err := io.ReadFull(reader, field[:])
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, errors.Wrapf(err, "truncated record %d", len(ops))
		}
		return binary.LittleEndian.Uint32(field[:]), nil
	}

	for {
		opByte, err := reader.ReadByte()
		if err == io.EOF {
			return ops, nil
		} else if err != nil {
			return nil, errors.WithStack(err)
		}

		op := Operation{Op: OpCode(opByte)}
		switch op.Op {
		case OpAlloc:
			op.Size, err = readField()
		case OpFree:
			op.ID, err = readField()
		case OpRealloc:
			op.ID, err = readField()
			if err == nil {
				op.Size, err = readField()
			}
		default:
			return nil, errors.Newf("record %d has unknown op code %d", len(ops), opByte)
		}
		if err != nil {
			return nil, err
		}

		ops = append(ops, op)
	}
}

// WriteTo encodes the trace in the format read by ParseTrace
func (o Operations) WriteTo(w io.Writer) (int64, error) {
	writer := bufio.NewWriter(w)
	var record [9]byte
	var written int64

	for i, op := range o {
		record[0] = byte(op.Op)
		var length int
		switch op.Op {
		case OpAlloc:
			binary.LittleEndian.PutUint32(record[1:], op.Size)
			length = 5
		case OpFree:
			binary.LittleEndian.PutUint32(record[1:], op.ID)
			length = 5
		case OpRealloc:
			binary.LittleEndian.PutUint32(record[1:], op.ID)
			binary.LittleEndian.PutUint32(record[5:], op.Size)
			length = 9
		default:
			return written, errors.Newf("record %d has unknown op code %d", i, op.Op)
		}

		n, err := writer.Write(record[:length])
		written += int64(n)
		if err != nil {
			return written, errors.WithStack(err)
		}
	}

	return written, errors.WithStack(writer.Flush())
}

// Validate verifies that every OpFree and OpRealloc record names an object that is live at that
// point in the trace
func (o Operations) Validate() error {
	live := make([]bool, len(o))

	for i, op := range o {
		switch op.Op {
		case OpAlloc:
		case OpFree, OpRealloc:
			if int64(op.ID) >= int64(i) || !live[op.ID] {
				return errors.Newf("record %d (%s) names object %d, which is not live", i, op.Op, op.ID)
			}
			live[op.ID] = false
		default:
			return errors.Newf("record %d has unknown op code %d", i, op.Op)
		}

		if op.Op != OpFree {
			live[i] = true
		}
	}

	return nil
}
