// Package z3 is an in-process solver backend built on the Z3 Go binding.
//
// The backend needs cgo and libz3, so it is only compiled with the z3
// build tag:
//
//	go build -tags z3 ./cmd/hoare
//
// Without the tag the package is empty and only the smtlib backend is
// registered.
package z3
