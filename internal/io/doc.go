// Package ioutils provides file system utilities for writing catalog output.
//
// # File Operations
//
//	// Write a file atomically
//	err := ioutils.WriteFile(ctx, "/path/to/SHA1SUMS", data)
//
//	// Write a value as indented JSON, atomically
//	err := ioutils.WriteJSON(ctx, "/path/to/catalog.json", catalog)
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/path/to/new/directory")
//
// A crash or Ctrl-C in the middle of a write never leaves a truncated file
// behind: data is written to a temporary file next to the target and
// renamed into place.
package ioutils
