// Package sqlsafe is the type-enforced escaping layer between template values
// and generated SQL.
//
// It has two halves. The wrapper types (Identifier, Literal, Raw) and Queryf
// give code that constructs SQL a compile-time guarantee: Queryf only accepts
// values satisfying the sealed Safe interface, so an unwrapped string is a
// type error, not a runtime surprise. Raw is the single sanctioned bypass and
// is loudly named for that reason.
//
// Format is the renderer's automatic value formatter: every expression a
// template interpolates passes through it, mapping each Go value kind to its
// PostgreSQL literal form (or failing with ErrInvalidValue). Between the two,
// no unescaped value can reach generated SQL without an explicit Raw marker
// placed by trusted code.
package sqlsafe
