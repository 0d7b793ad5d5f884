// Package knob derives powering knobs from pairs of twiss tables.
//
// A Knob is the signed change of one circuit's powering between a nominal and
// a perturbed configuration, in the circuit's native control unit. A Set
// groups the knobs of one beam, IP and scenario; circuit names are unique and
// kept in lower case.
//
// Derive selects circuits with a Selector (explicit names plus a Predicate
// over header variables and element rows) and computes every delta as the
// plain difference perturbed - nominal. Circuits that a Selector groups as
// symmetric partners receive the mean delta of their group, so the left and
// right triplets of an IP always move together.
//
// Key invariants:
//   - A circuit absent from both tables is an UnknownCircuitError
//   - A circuit present in one table only is a ConfigurationMismatchError
//   - Deltas never depend on other circuits beyond symmetric averaging
package knob
