// Package textutil provides name handling shared by the sorter, the
// coordinator, and the feed listeners.
//
// The primary use cases are:
//   - Cleaning project and file names by stripping configured marketing
//     patterns and collapsing leftover whitespace and dashes
//   - Normalizing Unicode names to NFC so names decoded from different
//     archive encodings compare equal
//   - Sanitizing filenames and tokens for safe filesystem use
package textutil
