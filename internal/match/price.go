// Package match is the Alert Matcher: it evaluates one NftActivity against
// every enabled AlertConfig scoped to its collection, matching on activity
// type, price bounds (arbitrary-precision, per spec.md's P2/P3 properties)
// and trait filters.
package match

import "github.com/holiman/uint256"

// priceWithinBounds reports whether priceDrops satisfies [min, max], where
// either bound being nil means unbounded on that side. All three values are
// decimal strings parsed with uint256 so ledger-scale amounts up to and
// beyond 2^64-1 compare exactly, never through a lossy int64 conversion.
func priceWithinBounds(priceDrops string, min, max *string) (bool, error) {
	price, err := uint256.FromDecimal(priceDrops)
	if err != nil {
		return false, err
	}

	if min != nil {
		lo, err := uint256.FromDecimal(*min)
		if err != nil {
			return false, err
		}
		if price.Lt(lo) {
			return false, nil
		}
	}

	if max != nil {
		hi, err := uint256.FromDecimal(*max)
		if err != nil {
			return false, err
		}
		if price.Gt(hi) {
			return false, nil
		}
	}

	return true, nil
}
