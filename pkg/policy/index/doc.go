// Package index resolves policy categories and folders to rule files.
//
// A policy repository is laid out as
//
//	<root>/<category>/<subcategory...>/<rule>.rego
//
// Build walks the repository once and records every rule with its category
// (the first path element) and subcategory (the directories between the
// category and the file). Library directories such as "common" and
// "helper_functions" hold shared modules: they are loaded alongside every
// rule but are never evaluated on their own.
//
// Example:
//
//	idx, err := index.Build("./policies", []string{"common", "helper_functions"})
//	if err != nil {
//	    return err
//	}
//	cat, sub := index.SplitCategory("eu_ai_act/fairness")
//	rules := idx.Resolve(cat, sub)
package index
