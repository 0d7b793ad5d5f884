// Package knobfile reads and writes knob sets as MAD-X input files.
//
// A delta file increments every circuit by its knob:
//
//	! rws knob delta
//	! beam: 1
//	! ip: 1
//	! energy: 6800
//	! scenario: matched
//	! label: triplets
//	kqx.l1 = kqx.l1 + (-3.5e-06);
//
// A powering file assigns the absolute value nominal + delta:
//
//	! rws knob powering
//	kqx.l1 = 246.5;
//
// Circuits are written sorted by name and numbers in the shortest form that
// parses back to the same float64. Files are rendered in memory and written
// in a single call, so a failed encode never leaves a partial file behind.
package knobfile
