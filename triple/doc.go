// Package triple holds the in-memory triple representation: three parallel
// 64-byte aligned uint64 columns (subject, predicate, object), predicate
// runs over them, and a roaring-bitmap predicate index that derives runs
// at the ingestion boundary.
//
// Terms are interned to uint64 ids before they reach this package. Zero is
// reserved: a zero subject marks a dead lane.
package triple
