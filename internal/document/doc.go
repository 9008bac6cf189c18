// Package document holds the dashboard document the embedded script builds
// and the host page renders.
//
// A Document is a set of root models plus every model they reference. The
// page receives it once as docs_json/render_items/root_ids and afterwards
// both sides exchange patches: ordered lists of change events. Each change
// carries a setter tag so a linked listener can skip changes that came from
// the side it would send them to.
//
// The optional Location mirrors the page URL. Its fields are read-only to
// scripts; inbound location messages write them through EditReadonly.
package document
