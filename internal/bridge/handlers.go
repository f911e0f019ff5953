package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/codefionn/wsbridge/internal/fs"
	"github.com/codefionn/wsbridge/internal/logger"
	"github.com/codefionn/wsbridge/internal/protocol"
	"github.com/codefionn/wsbridge/internal/sandbox"
)

// Handler maps parsed requests to response payloads. Stateless across
// requests; every request is handled independently.
type Handler struct {
	identity Identity
	fs       *fs.WorkspaceFS
}

// NewHandler creates a dispatch handler backed by a workspace filesystem.
func NewHandler(identity Identity, workspaceFS *fs.WorkspaceFS) *Handler {
	return &Handler{
		identity: identity,
		fs:       workspaceFS,
	}
}

// Handle dispatches a request and returns the response payload to frame
// back to the client. It never returns nil.
func (h *Handler) Handle(ctx context.Context, req *protocol.Request) interface{} {
	switch req.Type {
	case protocol.TypeInit:
		return h.handleInit(req.Init)

	case protocol.TypeReadFile:
		return h.handleReadFile(ctx, req.ReadFile)

	case protocol.TypeCheckFile:
		return h.handleCheckFile(ctx, req.CheckFile)

	case "":
		logger.Warn("request without a type field")
		return protocol.NewStatusError(protocol.MsgUnknownRequestType)

	default:
		logger.Warn("unknown request type %q", req.Type)
		return protocol.NewStatusError(protocol.MsgUnknownRequestType)
	}
}

// handleInit returns the server identity. Always succeeds.
func (h *Handler) handleInit(params *protocol.InitParams) interface{} {
	if params != nil && params.Options != nil {
		logger.Info("handshake with options: %v", params.Options)
	} else {
		logger.Info("handshake")
	}

	return protocol.InitResponse{
		Status:        "success",
		Message:       fmt.Sprintf("Connected to %s", h.identity.Name),
		ServerName:    h.identity.Name,
		ServerVersion: h.identity.Version,
		Capabilities:  h.identity.Capabilities,
	}
}

// handleReadFile reads a workspace file. Exactly one of path/file must
// be usable after normalization; path wins when both are present.
func (h *Handler) handleReadFile(ctx context.Context, params *protocol.ReadFileParams) interface{} {
	if params == nil {
		return protocol.ErrorResponse{Error: protocol.MsgNoValidPath}
	}

	var path string
	switch {
	case params.Path != nil:
		path = *params.Path
	case params.File != nil:
		path = *params.File
	default:
		return protocol.ErrorResponse{Error: protocol.MsgNoValidPath}
	}

	content, err := h.fs.ReadFile(ctx, path)
	if err != nil {
		if errors.Is(err, sandbox.ErrAccessDenied) {
			logger.Warn("read_file denied for %q", path)
			return protocol.ErrorResponse{Error: protocol.MsgAccessDenied}
		}
		return protocol.ErrorResponse{Error: err.Error()}
	}

	logger.Debug("read_file served %q (%d bytes)", path, len(content))
	return protocol.ReadFileResponse{Content: content}
}

// handleCheckFile reports whether a workspace path exists, echoing the
// client-supplied path back unresolved.
func (h *Handler) handleCheckFile(ctx context.Context, params *protocol.CheckFileParams) interface{} {
	if params == nil || params.Path == nil {
		return protocol.ErrorResponse{Error: protocol.MsgPathMustBeString}
	}
	path := *params.Path

	exists, err := h.fs.Exists(ctx, path)
	if err != nil {
		if errors.Is(err, sandbox.ErrAccessDenied) {
			logger.Warn("check_file denied for %q", path)
			return protocol.ErrorResponse{Error: protocol.MsgAccessDenied}
		}
		return protocol.ErrorResponse{Error: err.Error()}
	}

	return protocol.CheckFileResponse{Exists: exists, Path: path}
}
