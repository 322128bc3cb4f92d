// Package qudi loads and saves measurement-suite configuration files.
//
// A configuration file is YAML text extended with three tags: !ndarray
// (an inline compressed array blob), !extndarray (an array stored in a
// sibling archive file), and !frozenset (an immutable set). Loading
// produces an insertion-ordered document, so a file survives a
// load/save cycle without its keys being rearranged.
//
// Key features:
//   - Order-preserving load and dump built on the YAML node AST
//   - Dense numeric arrays embedded inline or externalized to archive files
//   - Corrected scientific-notation scalar resolution ("1e10" is a float)
//   - Safe construction: only registered tags, no arbitrary types
//   - File change notification for loaded configuration paths
package qudi
