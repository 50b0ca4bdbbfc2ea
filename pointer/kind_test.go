package pointer_test

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/linmem/pointer"
)

var kindTestCases = map[string]struct {
	Kind pointer.Kind
	Tag  pointer.Tag
	Name string
}{
	"Native": {
		Kind: pointer.KindNative,
		Tag:  0x0000,
		Name: "Native",
	},
	"Unknown": {
		Kind: pointer.KindUnknown,
		Tag:  0xfffe,
		Name: "Unknown",
	},
	"Dangling": {
		Kind: pointer.KindDangling,
		Tag:  0xffff,
		Name: "Dangling",
	},
}

func TestKindRoundTrip(t *testing.T) {
	for testName, testCase := range kindTestCases {
		t.Run(testName, func(t *testing.T) {
			require.Equal(t, testCase.Tag, testCase.Kind.Tag())
			require.Equal(t, testCase.Name, testCase.Kind.String())
			require.True(t, testCase.Kind.Known())

			kind, err := pointer.KindFromTag(testCase.Kind.Tag())
			require.NoError(t, err)
			require.Equal(t, testCase.Kind, kind)

			p := pointer.Compose(testCase.Kind, 0x1234, 0x5678)
			require.Equal(t, testCase.Kind, p.Kind())
		})
	}
}

func TestKindFromTagRejectsUnknownTags(t *testing.T) {
	for tag := 0; tag <= math.MaxUint16; tag++ {
		kind, err := pointer.KindFromTag(pointer.Tag(tag))

		switch pointer.Tag(tag) {
		case 0x0000, 0xfffe, 0xffff:
			require.NoError(t, err)
			require.Equal(t, pointer.Tag(tag), kind.Tag())
			continue
		}

		require.Error(t, err)

		var badKind *pointer.BadKindError
		require.True(t, errors.As(err, &badKind), "tag %#x", tag)
		require.Equal(t, pointer.Tag(tag), badKind.Tag)
		require.Equal(t, pointer.Word(tag)<<pointer.TagShift, badKind.Value())
	}
}

func TestKindLayoutConstants(t *testing.T) {
	require.Equal(t, 48, pointer.TagShift)
	require.Equal(t, pointer.Word(0xffff_0000_0000_0000), pointer.KindMask)
	require.Equal(t, pointer.Word(0x0000_ffff_0000_0000), pointer.HandleMask)
	require.Equal(t, pointer.Word(0x0000_ffff_ffff_ffff), pointer.ValueMask)
	require.Equal(t, pointer.Word(0x0000_0000_ffff_ffff), pointer.OffsetMask)
	require.Equal(t, 32, pointer.HandleShift)
	require.Equal(t, 0, pointer.OffsetShift)
	require.Equal(t, uint64(math.MaxUint32), uint64(pointer.OffsetMax))
}

func TestKindUnmapped(t *testing.T) {
	kind := pointer.Kind(pointer.Word(0x00ff) << pointer.TagShift)
	require.False(t, kind.Known())
	require.Equal(t, pointer.Tag(0x00ff), kind.Tag())
}
