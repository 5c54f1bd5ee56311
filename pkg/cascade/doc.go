// Package cascade recomputes the derived progress fields of the
// accreditation tree. Approving or unapproving an aspect changes its
// factor's completion percentage, and a factor crossing the completion
// threshold changes its project's progress. Both recomputations run
// synchronously, inside the transaction that performed the triggering
// write, so readers never observe a half-propagated state.
//
// Writes are guarded by value comparison: recomputing a value that
// already matches the stored one performs no UPDATE, which makes the
// cascade safe to re-run (the reconciler relies on this).
package cascade
