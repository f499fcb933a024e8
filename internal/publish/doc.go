// Package publish delivers model archives to remote storage and turns them
// into shareable links.
//
// Storage is the narrow seam to the remote side: upload a file, then make it
// publicly readable and return its URL. Publisher sits in front of any
// Storage and maps every failure onto three kinds (transient, quota,
// permission denied) so the coordinator can decide what to retry without
// knowing the backend. Drive is the Google Drive implementation.
//
// The link descriptor is the text file written next to the archive that
// carries the public URL for humans.
package publish
