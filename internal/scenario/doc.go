// Package scenario loads the description of one rws run: the nominal, bare
// and matched twiss tables of a beam and IP, and the knob groups to derive.
//
// Scenarios are written in YAML or CUE. Both are checked against the same
// embedded CUE schema; YAML is additionally decoded with unknown fields
// rejected. Example:
//
//	name: ip1-beam1
//	beam: 1
//	ip: 1
//	tables:
//	  nominal: twiss_nominal.tfs
//	  bare: twiss_bare.tfs
//	  matched: twiss_matched.tfs
//	groups:
//	  - name: triplets
//	    kind: triplets
//	  - name: quadrupoles
//	    kind: quadrupoles
//	    quads: [4, 5, 6, 7]
//	  - name: working_point
//	    kind: working_point
package scenario
