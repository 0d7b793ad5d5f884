// Package optics holds the twiss table model consumed by every other rws
// package.
//
// A Table is an ordered, immutable set of per-element rows (NAME, KEYWORD and
// numeric columns such as S, BETX, BETY, MUX, MUY) together with a scalar
// header (tunes, chromaticities, beam energy and circuit powering variables).
// Tables are produced by the simulation tool and read here from TFS files;
// filters and projections always return a new Table.
//
// Element names and column names are case-insensitive, as in MAD-X. Columns
// also answer to descriptive aliases:
//
//	beta_x -> BETX    mu_x -> MUX    alpha_x -> ALFX    disp_x -> DX    s -> S
//	beta_y -> BETY    mu_y -> MUY    alpha_y -> ALFY    disp_y -> DY
package optics
