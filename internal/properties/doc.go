// Package properties implements the delimited key/value encoding used by
// the ingest API and the insertion-ordered property mapping attached to
// every indexed image.
//
// The wire form is two parallel strings, one carrying keys and one
// carrying values, each split on ";". Token i of the keys string pairs
// with token i of the values string. The two token counts must match;
// a mismatch is rejected with ErrMalformed. An absent keys string decodes
// to an empty mapping and the values string is not consulted.
//
// Mappings preserve encounter order. Duplicate keys are not rejected:
// the last value wins, the first-seen position is kept.
package properties
