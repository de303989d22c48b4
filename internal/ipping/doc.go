// Package ipping implements the IP Ping diagnostic object (object 12359).
//
// A manager configures the target host and probe parameters, executes the
// Run resource, and reads the resulting statistics. Run spawns the system
// ping command through a ProcessHost. Its merged output is fed one line at
// a time from a Scheduler into a Parser, and each parsed update is stored
// and announced through a dm.Notifier.
//
// All façade calls and scheduler callbacks are serialised by a per-object
// mutex, and notifications are delivered with that mutex held.
package ipping
