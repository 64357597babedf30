// Package queue provides persistent job storage for swinglab.
//
// Jobs track an uploaded swing recording from spooled artifact through
// analysis to a stored result. State lives in a SQLite database under the
// configured log directory; every mutation commits before the call returns,
// so a crash never leaves a half-written job behind.
package queue
