package match

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

// TestPriceWithinBoundsUnbounded is the P2 property: nil bounds on either
// side impose no restriction.
func TestPriceWithinBoundsUnbounded(t *testing.T) {
	ok, err := priceWithinBounds("1000", nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPriceWithinBoundsInclusiveEdges(t *testing.T) {
	ok, err := priceWithinBounds("100", ptr("100"), ptr("200"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = priceWithinBounds("200", ptr("100"), ptr("200"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = priceWithinBounds("99", ptr("100"), ptr("200"))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = priceWithinBounds("201", ptr("100"), ptr("200"))
	require.NoError(t, err)
	require.False(t, ok)
}

// TestPriceWithinBoundsBigIntegerBoundary is the P3 property: comparisons
// around 2^64-1 must remain exact, which would silently wrap with a native
// uint64 subtraction/compare bug.
func TestPriceWithinBoundsBigIntegerBoundary(t *testing.T) {
	const maxUint64 = "18446744073709551615" // 2^64 - 1
	const beyond = "18446744073709551616"    // 2^64

	ok, err := priceWithinBounds(maxUint64, ptr("0"), ptr(maxUint64))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = priceWithinBounds(beyond, ptr("0"), ptr(maxUint64))
	require.NoError(t, err)
	require.False(t, ok)
}
