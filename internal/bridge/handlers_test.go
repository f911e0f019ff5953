package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/wsbridge/internal/fs"
	"github.com/codefionn/wsbridge/internal/protocol"
	"github.com/codefionn/wsbridge/internal/sandbox"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := sandbox.NewRoot(dir)
	require.NoError(t, err)
	workspaceFS := fs.NewWorkspaceFS(root, 0, 0)
	t.Cleanup(func() { workspaceFS.Close() })
	return NewHandler(DefaultIdentity(), workspaceFS), root.Path()
}

func handle(t *testing.T, h *Handler, payload string) interface{} {
	t.Helper()
	req, err := protocol.Parse([]byte(payload))
	require.NoError(t, err)
	return h.Handle(context.Background(), req)
}

func TestHandleInit(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := handle(t, h, `{"type":"init","options":{"client":"ide"}}`)
	init, ok := resp.(protocol.InitResponse)
	require.True(t, ok, "expected InitResponse, got %T", resp)

	assert.Equal(t, "success", init.Status)
	assert.Equal(t, ServerName, init.ServerName)
	assert.Equal(t, ServerVersion, init.ServerVersion)
	assert.True(t, init.Capabilities.FileAccess)
	assert.True(t, init.Capabilities.CheckFile)
	assert.True(t, init.Capabilities.ReadFile)
}

func TestHandleReadFile(t *testing.T) {
	h, dir := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))

	resp := handle(t, h, `{"type":"read_file","path":"a.txt"}`)
	read, ok := resp.(protocol.ReadFileResponse)
	require.True(t, ok, "expected ReadFileResponse, got %T", resp)
	assert.Equal(t, "hello", read.Content)
}

func TestHandleReadFilePrefersPathOverFile(t *testing.T) {
	h, dir := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("from path"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("from file"), 0644))

	resp := handle(t, h, `{"type":"read_file","path":"a.txt","file":"b.txt"}`)
	read, ok := resp.(protocol.ReadFileResponse)
	require.True(t, ok)
	assert.Equal(t, "from path", read.Content)
}

func TestHandleReadFileUndefinedPathFallsBackToFile(t *testing.T) {
	h, dir := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))

	resp := handle(t, h, `{"type":"read_file","path":"undefined","file":"a.txt"}`)
	read, ok := resp.(protocol.ReadFileResponse)
	require.True(t, ok, "expected ReadFileResponse, got %T", resp)
	assert.Equal(t, "hello", read.Content)
}

func TestHandleReadFileNoValidPath(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, payload := range []string{
		`{"type":"read_file"}`,
		`{"type":"read_file","path":"undefined"}`,
		`{"type":"read_file","path":null,"file":"UNDEFINED"}`,
	} {
		resp := handle(t, h, payload)
		errResp, ok := resp.(protocol.ErrorResponse)
		require.True(t, ok, "payload %s: expected ErrorResponse, got %T", payload, resp)
		assert.Equal(t, protocol.MsgNoValidPath, errResp.Error)
	}
}

func TestHandleReadFileDeniesEscape(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := handle(t, h, `{"type":"read_file","path":"../secret.txt"}`)
	errResp, ok := resp.(protocol.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.MsgAccessDenied, errResp.Error)
}

func TestHandleReadFileMissing(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := handle(t, h, `{"type":"read_file","path":"nope.txt"}`)
	errResp, ok := resp.(protocol.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, "File not found: nope.txt", errResp.Error)
}

func TestHandleCheckFile(t *testing.T) {
	h, dir := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.txt"), []byte("x"), 0644))

	resp := handle(t, h, `{"type":"check_file","path":"present.txt"}`)
	check, ok := resp.(protocol.CheckFileResponse)
	require.True(t, ok)
	assert.True(t, check.Exists)
	assert.Equal(t, "present.txt", check.Path)

	resp = handle(t, h, `{"type":"check_file","path":"missing.txt"}`)
	check, ok = resp.(protocol.CheckFileResponse)
	require.True(t, ok)
	assert.False(t, check.Exists)
	assert.Equal(t, "missing.txt", check.Path)
}

func TestHandleCheckFilePathMustBeString(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, payload := range []string{
		`{"type":"check_file"}`,
		`{"type":"check_file","path":123}`,
		`{"type":"check_file","path":null}`,
		`{"type":"check_file","path":"undefined"}`,
	} {
		resp := handle(t, h, payload)
		errResp, ok := resp.(protocol.ErrorResponse)
		require.True(t, ok, "payload %s: expected ErrorResponse, got %T", payload, resp)
		assert.Equal(t, protocol.MsgPathMustBeString, errResp.Error)
	}
}

func TestHandleCheckFileDeniesEscape(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := handle(t, h, `{"type":"check_file","path":"../../etc/passwd"}`)
	errResp, ok := resp.(protocol.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.MsgAccessDenied, errResp.Error)
}

func TestHandleUnknownAndMissingType(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, payload := range []string{
		`{"type":"write_file","path":"a.txt"}`,
		`{"path":"a.txt"}`,
	} {
		resp := handle(t, h, payload)
		statusErr, ok := resp.(protocol.StatusError)
		require.True(t, ok, "payload %s: expected StatusError, got %T", payload, resp)
		assert.Equal(t, "error", statusErr.Status)
		assert.Equal(t, protocol.MsgUnknownRequestType, statusErr.Message)
	}
}
