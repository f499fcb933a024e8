// Package extract unpacks zip and rar archives into a job's scratch
// workspace.
//
// The Extractor sniffs the archive signature, cross-checks it against the
// file extension, and hands the archive to the matching Backend. Zip archives
// are read in-process; rar archives are delegated to the external unrar tool.
// Callers never branch on format.
//
// Every entry name passes through the same guard before anything is written:
// absolute paths, drive-letter paths, names that escape the destination after
// cleaning, and symlinks are rejected individually and recorded on the Result
// while their siblings are still extracted. Legacy zip names without the UTF-8
// flag are decoded from CP437, and all names are normalized to NFC.
//
// Failures are reported as *Error values whose Reason can be matched with
// errors.Is against ErrFormatMismatch, ErrCapabilityUnavailable,
// ErrCorruptArchive, ErrPathTraversal, and ErrWriteFailure. Context
// cancellation is returned unchanged.
package extract
