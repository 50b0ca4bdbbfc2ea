package trace_test

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/linmem/trace"
)

// alloc 16, alloc 300, realloc object 0 to 64, free object 1
var smallTraceBytes = []byte{
	0, 16, 0, 0, 0,
	0, 0x2c, 1, 0, 0,
	2, 0, 0, 0, 0, 64, 0, 0, 0,
	1, 1, 0, 0, 0,
}

var smallTrace = trace.Operations{
	{Op: trace.OpAlloc, Size: 16},
	{Op: trace.OpAlloc, Size: 300},
	{Op: trace.OpRealloc, ID: 0, Size: 64},
	{Op: trace.OpFree, ID: 1},
}

// syntheticTrace builds a valid trace that mixes small and large allocations with frees and
// reallocs, leaving some objects live at the end
func syntheticTrace(seed int64, count int) trace.Operations {
	rng := rand.New(rand.NewSource(seed))
	ops := make(trace.Operations, 0, count)
	var live []uint32

	randomSize := func() uint32 {
		return uint32(rng.Intn(1<<uint(rng.Intn(12))) + 1)
	}

	for len(ops) < count {
		id := uint32(len(ops))
		roll := rng.Intn(10)

		switch {
		case len(live) == 0 || roll < 5:
			ops = append(ops, trace.Operation{Op: trace.OpAlloc, Size: randomSize()})
			live = append(live, id)
		case roll < 8:
			index := rng.Intn(len(live))
			ops = append(ops, trace.Operation{Op: trace.OpFree, ID: live[index]})
			live = append(live[:index], live[index+1:]...)
		default:
			index := rng.Intn(len(live))
			ops = append(ops, trace.Operation{Op: trace.OpRealloc, ID: live[index], Size: randomSize()})
			live[index] = id
		}
	}

	return ops
}

func TestParseTrace(t *testing.T) {
	ops, err := trace.ParseTrace(bytes.NewReader(smallTraceBytes))
	require.NoError(t, err)
	require.Equal(t, smallTrace, ops)
	require.NoError(t, ops.Validate())

	ops, err = trace.ParseTrace(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Empty(t, ops)
}

func TestParseTraceErrors(t *testing.T) {
	testCases := map[string]struct {
		data          []byte
		expectedError error
	}{
		"TruncatedField": {
			data:          []byte{0, 16, 0},
			expectedError: io.ErrUnexpectedEOF,
		},
		"MissingField": {
			data:          []byte{0, 16, 0, 0, 0, 2, 0, 0, 0, 0},
			expectedError: io.ErrUnexpectedEOF,
		},
		"UnknownOp": {
			data: []byte{7, 0, 0, 0, 0},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := trace.ParseTrace(bytes.NewReader(testCase.data))
			require.Error(t, err)

			if testCase.expectedError != nil {
				require.ErrorIs(t, err, testCase.expectedError)
			}
		})
	}
}

func TestWriteTo(t *testing.T) {
	var buffer bytes.Buffer
	written, err := smallTrace.WriteTo(&buffer)
	require.NoError(t, err)
	require.Equal(t, int64(len(smallTraceBytes)), written)
	require.Equal(t, smallTraceBytes, buffer.Bytes())

	_, err = trace.Operations{{Op: trace.OpCode(9)}}.WriteTo(io.Discard)
	require.Error(t, err)
}

func TestReadTrace(t *testing.T) {
	ops := syntheticTrace(1, 500)
	path := filepath.Join(t.TempDir(), "synthetic.trace")

	file, err := os.Create(path)
	require.NoError(t, err)
	_, err = ops.WriteTo(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	read, err := trace.ReadTrace(path)
	require.NoError(t, err)
	require.Equal(t, ops, read)
	require.NoError(t, read.Validate())

	_, err = trace.ReadTrace(filepath.Join(t.TempDir(), "missing.trace"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	testCases := map[string]trace.Operations{
		"FreeBeforeAlloc": {
			{Op: trace.OpFree, ID: 0},
		},
		"FreeOfFutureObject": {
			{Op: trace.OpAlloc, Size: 8},
			{Op: trace.OpFree, ID: 2},
			{Op: trace.OpAlloc, Size: 8},
		},
		"DoubleFree": {
			{Op: trace.OpAlloc, Size: 8},
			{Op: trace.OpFree, ID: 0},
			{Op: trace.OpFree, ID: 0},
		},
		"ReallocOfConsumedObject": {
			{Op: trace.OpAlloc, Size: 8},
			{Op: trace.OpRealloc, ID: 0, Size: 16},
			{Op: trace.OpRealloc, ID: 0, Size: 32},
		},
		"FreeOfFreeRecord": {
			{Op: trace.OpAlloc, Size: 8},
			{Op: trace.OpFree, ID: 0},
			{Op: trace.OpFree, ID: 1},
		},
		"UnknownOp": {
			{Op: trace.OpCode(3)},
		},
	}

	for name, ops := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, ops.Validate())
		})
	}

	require.NoError(t, syntheticTrace(2, 2000).Validate())
}
