// Package process spawns short-lived measurement commands and reaps them.
//
// Host starts a command with stdout and stderr attached to the same pipe, so
// diagnostics printed on stderr surface as ordinary output lines:
//
//	host, err := process.NewHost("ping", logger)
//	proc, err := host.Start([]string{"-q", "-c", "4", "example.org"})
//	// read lines from proc ...
//	proc.Close()
//
// Close never blocks. It closes the read end of the pipe and reaps the child
// in the background:
//   - wait up to the graceful timeout for a normal exit
//   - send SIGINT and wait up to the kill timeout
//   - send SIGKILL (reported as exit code 137)
//
// Done is closed once the child has been reaped.
package process
