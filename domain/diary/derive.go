package diary

import "solodiary/domain/core"

// Naming scheme for derived feature columns. Centering first, then the
// between/within split, then squaring of the split components keeps the
// quadratic decomposition aligned with the linear one.
const (
	suffixCentered  = "_c"
	suffixLag       = "_lag"
	suffixBetween   = "_cb"
	suffixWithin    = "_cw"
	suffixBetweenSq = "_cb2"
	suffixWithinSq  = "_cw2"
)

// Centered names the grand-mean-centered variant of a column.
func Centered(key core.VariableKey) core.VariableKey {
	return key + suffixCentered
}

// Lagged names the one-day-lagged variant of a column.
func Lagged(key core.VariableKey) core.VariableKey {
	return key + suffixLag
}

// Between names the between-person (subject mean) component.
func Between(key core.VariableKey) core.VariableKey {
	return key + suffixBetween
}

// Within names the within-person (daily deviation) component.
func Within(key core.VariableKey) core.VariableKey {
	return key + suffixWithin
}

// BetweenSq names the square of the between-person component.
func BetweenSq(key core.VariableKey) core.VariableKey {
	return key + suffixBetweenSq
}

// WithinSq names the square of the within-person component.
func WithinSq(key core.VariableKey) core.VariableKey {
	return key + suffixWithinSq
}
