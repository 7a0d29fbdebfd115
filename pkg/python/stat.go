// This file mimics `stat.py`, trimmed to the mode bits the wheel
// source's executable-bit check consults; Python's fuller st_mode
// surface (type bits, Go-mode conversion, ls -l formatting) and the
// Windows st_file_attributes surface have no caller in an installer
// that only ever asks "does the archive's Unix mode carry an execute
// bit."

package python

// A StatMode represents a file's mode and permission bits, as represented in Python
// (i.e. `os.stat()`'s `st_mode` member).  Similar to how Go's `io/fs.FileMode` assigns bits to have
// the same definition on all systems for portability, Python's `stat` assigns bits to have the same
// definition on all systems for portability.  And it just so happens that Go's bits match those of
// Plan 9, and Python's bits match those of the Linux kernel.
type StatMode uint16

const (
	ModePermUsrX StatMode = 0o00_0100 // permission: user: execute
	ModePermGrpX StatMode = 0o00_0010 // permission: group: execute
	ModePermOthX StatMode = 0o00_0001 // permission: other: execute
)
