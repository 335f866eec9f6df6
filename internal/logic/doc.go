// Package logic defines the annotated program model checked by hoare and
// the purely syntactic operations over it.
//
// The model is a set of closed sum types: expressions, predicates,
// program conditions and statements. Each family is a sealed interface,
// so every walker in this package is a type switch over a fixed set of
// variants.
//
// Operations provided here:
//   - structural equality and canonical structural keys
//   - predicate and expression simplification
//   - scalar, array-cell and simultaneous substitution
//   - small queries (call detection, occurrence checks, depth)
//
// Nothing in this package talks to a solver; see internal/wp and
// internal/encode for the layers built on top of it.
package logic
