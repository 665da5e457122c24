// Package terminal implements the interactive session manager: it creates,
// multiplexes and tears down concurrent pty-backed shell sessions behind a
// poll-based read/write/resize/rename/close surface.
//
// Each session owns a pty master/slave pair, a child shell process, and one
// background pump goroutine that drains the blocking master read into a
// buffered delivery channel. Callers never block: Read drains whatever the
// pump has produced and returns immediately, Write holds only the session's
// write lock for the duration of the kernel write.
//
// Lifecycle:
//   - Create opens the pty at the requested size, spawns the platform shell,
//     starts the pump and registers the session under a fresh prefixed ULID.
//   - Close removes the record and closes the master side; the pump
//     self-terminates on the resulting EOF/error. The child is not killed
//     explicitly; losing its controlling terminal is the shutdown signal.
//   - The pump closing the delivery channel is the authoritative sign that
//     the underlying process is gone; Read reports ErrSessionClosed only
//     once every buffered chunk has been handed out.
//
// A session whose shell has exited stays listed until explicitly closed so
// the UI can show its final output and a disconnected indicator.
package terminal
