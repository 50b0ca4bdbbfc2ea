package trace_test

import (
	"strings"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/linmem/trace"
)

func TestSizeHistogram(t *testing.T) {
	histogram := smallTrace.SizeHistogram()

	require.Equal(t, 9, histogram.Buckets())
	require.Equal(t, 3, histogram.Total())
	require.Equal(t, 1, histogram.Count(4))
	require.Equal(t, 1, histogram.Count(6))
	require.Equal(t, 1, histogram.Count(8))
	require.Equal(t, 0, histogram.Count(5))
	require.Equal(t, 0, histogram.Count(20))

	rendered := histogram.String()
	require.Equal(t, 9, strings.Count(rendered, "\n"))
	require.Contains(t, rendered, "2^8")
	require.Contains(t, rendered, strings.Repeat("#", 60))
}

func TestLifetimeHistogram(t *testing.T) {
	histogram := smallTrace.LifetimeHistogram()

	// Both consumed objects lived two records, and the realloc result lives until the end
	require.Equal(t, 2, histogram.Buckets())
	require.Equal(t, 3, histogram.Count(1))

	writer := jwriter.NewWriter()
	histogram.WriteJSON(&writer)
	require.NoError(t, writer.Error())
	require.JSONEq(t, `[{"Log2": 0, "Count": 0}, {"Log2": 1, "Count": 3}]`, string(writer.Bytes()))
}

func TestHistogramZero(t *testing.T) {
	var histogram trace.Histogram
	require.Equal(t, "", histogram.String())

	histogram.Add(0)
	histogram.Add(1)
	require.Equal(t, 1, histogram.Buckets())
	require.Equal(t, 2, histogram.Count(0))
}
