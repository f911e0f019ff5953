package consts

import "time"

// Wire protocol limits
const (
	// FrameHeaderSize is the size of the big-endian length prefix on every frame
	FrameHeaderSize = 4
	// MaxFrameSize is the largest payload a frame may declare (10 MiB)
	MaxFrameSize = 10 * 1024 * 1024
)

// Buffer sizes for stream operations
const (
	// BufferSize1KB is 1 kilobyte
	BufferSize1KB = 1024
	// BufferSize64KB is 64 kilobytes, used when draining oversized payloads
	BufferSize64KB = 64 * 1024
)

// Timeouts for socket operations
const (
	// ReadTimeout bounds waiting for a frame payload after its header arrived
	ReadTimeout = 5 * time.Second
	// WriteTimeout bounds writing a response frame back to the peer
	WriteTimeout = 10 * time.Second
	// AcceptPollInterval is how often the accept loop re-checks for shutdown
	AcceptPollInterval = 1 * time.Second
	// ShutdownGrace is how long Stop waits for sessions to wind down
	ShutdownGrace = 100 * time.Millisecond
)

// Cache defaults for the workspace filesystem
const (
	// DefaultCacheTTL is how long cached reads stay valid without an fsnotify event
	DefaultCacheTTL = 5 * time.Minute
	// DefaultMaxCacheEntries caps the read cache size
	DefaultMaxCacheEntries = 100
)

// Connection limits
const (
	// DefaultMaxConnections caps concurrent client connections per server
	DefaultMaxConnections = 32
)
