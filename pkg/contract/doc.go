// Package contract defines the evaluation input: a Contract holding the
// logged interactions of one AI application.
//
// Contracts are loaded from JSON files (Load, LoadFolder), adapted from
// raw conversations (FromConversations) or merged for a consolidated
// evaluation of one application (Consolidate). Schema validation uses
// go-playground/validator struct tags; any read, parse or validation
// failure is reported as a *LoadError.
//
// A contract is immutable once loaded.
package contract
