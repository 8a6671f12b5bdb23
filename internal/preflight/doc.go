// Package preflight provides readiness checks for the filesystem paths and
// external services audiovault depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before it starts serving and refuses to start
//     when the storage root cannot be written.
//   - The CLI "audiovault status" command renders every Result as a table.
package preflight
