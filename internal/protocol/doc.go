// Package protocol defines the messages exchanged between the worker and a
// host page.
//
// Every message is a JSON object with a "type" discriminator.
//
// Worker → page:
//   - status: {msg} progress and error text shown by the page
//   - patch: {patch, buffers, msg_id} document change for the page to apply
//   - render: {docs_json, render_items, root_ids} the serialized document
//   - idle: {} acknowledges an inbound patch
//
// Page → worker:
//   - rendered: {} the page finished rendering the document
//   - patch: {patch} JSON text of a document patch
//   - location: {location} JSON text of location fields
package protocol
