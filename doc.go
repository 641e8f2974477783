// Package valuestore implements a per-slot, chunked, delta-coded value
// storage subsystem for a document database: it is the layer between "set
// the value of slot S for document D" and the ordered key/value tables that
// physically hold the bytes.
//
// Values for a given slot are grouped into chunks of consecutively numbered
// documents, each chunk stored under one key in an underlying ordered table
// (see Table and Cursor). A separate per-document blob records, for each
// document, which slots it has a value in, encoded so a single-slot access
// does not require touching every slot's chunk chain.
package valuestore
