// Package view derives the renderable node and edge lists from the domain
// model.
//
// Projection is a pure function of its inputs plus the previous output,
// which is consulted only to carry over purely visual sub-state (selection,
// in-flight drag positions, edge animation). Callers compare slices by
// identity to skip redundant work, so functions in this package return
// their previous result unchanged whenever nothing differs.
package view
