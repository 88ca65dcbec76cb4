package staking

import "math"

// SecondsPerDay is the accrual granularity: partial days earn nothing.
const SecondsPerDay int64 = 86_400

// The helpers below clamp at the bounds of their exact operand widths instead
// of wrapping.

func satSubI64(a, b int64) int64 {
	diff := a - b
	// Overflow happened iff the operands have different signs and the result's
	// sign differs from a.
	if (a >= 0) != (b >= 0) && (diff >= 0) != (a >= 0) {
		if a >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return diff
}

func satMulI64(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	product := a * b
	if product/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return product
}

func satAddU32(a, b uint32) uint32 {
	sum := a + b
	if sum < a {
		return math.MaxUint32
	}
	return sum
}

func satSubU8(a, b uint8) uint8 {
	if b > a {
		return 0
	}
	return a - b
}

// clampU32 narrows a signed accrual into the points counter range. Negative
// values become zero and values above the range become MaxUint32; the value
// is never truncated to its low bits.
func clampU32(v int64) uint32 {
	if v <= 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// Accrual is the reward arithmetic of one unstake.
type Accrual struct {
	Elapsed       int64
	FreezeSeconds int64
	Days          int64
	Earned        int64
	// Credited is Earned narrowed into the points counter range.
	Credited uint32
}

// ComputeAccrual evaluates the freeze gate and the points owed for a lock
// staked at stakedAt and released at now.
func ComputeAccrual(now, stakedAt int64, freezePeriodDays uint32, pointsPerStake uint8) (Accrual, error) {
	elapsed := satSubI64(now, stakedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	freeze := satMulI64(int64(freezePeriodDays), SecondsPerDay)
	acc := Accrual{Elapsed: elapsed, FreezeSeconds: freeze}
	if elapsed < freeze {
		return acc, ErrFreezePeriodNotPassed
	}
	acc.Days = elapsed / SecondsPerDay
	acc.Earned = satMulI64(acc.Days, int64(pointsPerStake))
	acc.Credited = clampU32(acc.Earned)
	return acc, nil
}
