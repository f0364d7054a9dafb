package ups

// UnknownChargeState is returned for status phrases outside the lexicon
const UnknownChargeState = -1

// ChargeStateEntry pairs a status phrase with its ordinal code
type ChargeStateEntry struct {
	Phrase string
	Code   int
}

// chargeStates is ordered from healthiest to worst
var chargeStates = []ChargeStateEntry{
	{Phrase: "OL", Code: 5},
	{Phrase: "OL CHRG", Code: 4},
	{Phrase: "OB DISCHRG", Code: 3},
	{Phrase: "LB", Code: 2},
	{Phrase: "RB", Code: 1},
}

var chargeStateIndex = func() map[string]int {
	m := make(map[string]int, len(chargeStates))
	for _, e := range chargeStates {
		m[e.Phrase] = e.Code
	}
	return m
}()

// ChargeStateCode looks phrase up in the lexicon. Matching is exact; every
// other string, including the empty one, yields UnknownChargeState.
func ChargeStateCode(phrase string) int {
	if code, ok := chargeStateIndex[phrase]; ok {
		return code
	}
	return UnknownChargeState
}

// ChargeStates returns a copy of the lexicon in table order
func ChargeStates() []ChargeStateEntry {
	return append([]ChargeStateEntry(nil), chargeStates...)
}
