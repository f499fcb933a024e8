// Package preflight provides readiness checks for the host capabilities and
// external services stlpipe depends on.
//
// These checks run in two contexts:
//   - The process and watch commands call RunAll before accepting work and
//     refuse to start when a required check fails.
//   - The CLI "stlpipe doctor" command prints every check, including optional
//     ones such as the unrar binary and the ntfy server.
package preflight
