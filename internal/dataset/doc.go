// Package dataset reads delimited tabular files for dashboard scripts.
//
// Files are decoded to UTF-8 after charset detection, so exports from
// spreadsheet tools in legacy encodings load without preprocessing. Tables
// are immutable: Filter and SortBy return new tables.
package dataset
