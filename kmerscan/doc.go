// Package kmerscan matches fixed-length protein k-mers against a
// precomputed signature dictionary and groups the resulting hit stream into
// CALL and OTU-COUNTS records.
//
// The dictionary is a large open-addressed hash table of signature k-mers,
// persisted as a host-endian memory-mapped image (SignatureTable). A
// Session owns the per-request mutable state (thresholds, hit buffer, OTU
// tally) so that the table and name arrays can be shared, read-only, across
// concurrent requests.
package kmerscan
