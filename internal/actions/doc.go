// Package actions implements the operations shared by the command line and
// the MCP server.
//
// Each action takes an Env and an options struct, resolves the target
// (a local directory or a GitHub repository), discovers files once and runs
// one analyzer. Results are rendered through Write in any output.Format the
// result supports.
//
// Dependencies:
//   - discovery: file walking and language detection
//   - remote: cloning GitHub targets
//   - cache: optional per-file memoization
package actions
