// Package nats connects pingnode objects to a NATS server.
//
// # Architecture
//
//   - Server: optional embedded NATS server running in the main process
//   - Bridge: publishes resource changes and probe results from the event
//     bus, and executes control requests through the object registry
//   - Client: sends control requests and watches results from another
//     process (pingnode remote)
//
// # Subject Hierarchy
//
//	pingnode.objects.{oid}.{iid}.{rid}            # Resource values (server → clients)
//	pingnode.probes.finished                      # Probe summaries (server → clients)
//	pingnode.control.{oid}.{iid}.{rid}.execute    # Execute a resource (client → server)
//	pingnode.control.{oid}.{iid}.{rid}.write      # Write a resource (client → server)
//
// Notifications are fire-and-forget (core NATS, no JetStream).
// Control requests sent with a reply subject are answered with a
// ControlReply. The server keeps serving HTTP when NATS is unavailable.
//
// # Useful Debug Commands
//
// Monitor every resource change of the IP Ping object:
//
//	nats sub "pingnode.objects.12359.>"
//
// Monitor finished probes:
//
//	nats sub "pingnode.probes.finished" | jq .
//
// Configure and start a probe manually:
//
//	nats req "pingnode.control.12359.0.0.write" '{"value":"example.org"}'
//	nats req "pingnode.control.12359.0.1.write" '{"value":4}'
//	nats req "pingnode.control.12359.0.5.execute" '{"reason":"manual_debug"}'
//
// # Message Formats
//
// ResourceMessage (pingnode.objects.{oid}.{iid}.{rid}):
//
//	{
//	  "path": "/12359/0/6",
//	  "value": 2,
//	  "timestamp": "2024-01-01T12:00:00Z"
//	}
//
// ProbeMessage (pingnode.probes.finished):
//
//	{
//	  "session_id": "0b5c7f9e-4a51-4bb5-9a37-3f3f1c1a2b8d",
//	  "hostname": "example.org",
//	  "state": "complete",
//	  "success_count": 4,
//	  "error_count": 0,
//	  "avg_rtt_ms": 12,
//	  "min_rtt_ms": 10,
//	  "max_rtt_ms": 15,
//	  "rtt_stdev_us": 2000,
//	  "duration_ms": 3012,
//	  "timestamp": "2024-01-01T12:00:03Z"
//	}
//
// ControlReply (reply to pingnode.control.*):
//
//	{
//	  "ok": false,
//	  "code": "4.05",
//	  "error": "resource 6 is not writable"
//	}
package nats
