// Package bridge implements the loopback TCP server that exposes
// sandboxed, read-only workspace file access to IDE assistant clients.
//
// # Architecture
//
//   - Server: binds an ordered candidate port list on loopback, keeps
//     every successful listener open concurrently, and tracks sessions
//   - Client: owns one accepted connection and runs its
//     read -> parse -> dispatch -> encode -> write loop
//   - Handler: maps parsed requests to response payloads, consulting
//     the filesystem sandbox for anything that touches disk
//
// # Message Protocol
//
// Communication uses length-prefixed JSON frames:
//
//	[4 bytes length, big-endian unsigned][length bytes of UTF-8 JSON]
//
// The protocol supports three request types:
//   - init: handshake returning the server identity and capabilities
//   - read_file: full UTF-8 contents of one workspace file
//   - check_file: existence check for one workspace path
//
// Frames declaring more than the maximum payload size (10 MiB by
// default) are answered with an error and their body drained; the
// payload read after a header is bounded by a 5 second timeout.
//
// # Usage
//
//	server := bridge.NewServer(cfg, bridge.NewHandler(bridge.DefaultIdentity(), workspaceFS))
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	<-ctx.Done()
//	server.Stop()
//
// Every response is written on the connection its request arrived on,
// in the order the requests were framed. Sessions share nothing but
// the immutable identity and the workspace root.
package bridge
