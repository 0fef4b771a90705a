package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	nethttp "net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docmanager/internal/http"
	"github.com/fyrsmithlabs/docmanager/internal/notify"
	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
)

// setupEnv points configuration at a throwaway home with a persistent
// chromem collection so separate command runs share data.
func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DOCMANAGER_STORE_CHROMEM__PATH", filepath.Join(home, "chromem"))
	t.Setenv("DOCMANAGER_SETTINGS_DATA_DIR", filepath.Join(home, "data"))
	t.Setenv("DOCMANAGER_LOGGING_LEVEL", "error")
	return home
}

func seed(t *testing.T, points ...pointstore.Point) {
	t.Helper()
	a, err := bootstrap(context.Background(), &rootOptions{}, logStderr)
	require.NoError(t, err)
	defer a.Close()

	up, ok := a.store.(pointstore.Upserter)
	require.True(t, ok)
	require.NoError(t, up.Upsert(context.Background(), points))
}

func chunk(id, source, content string) pointstore.Point {
	return pointstore.Point{ID: id, Payload: map[string]any{
		"page_content": content,
		"metadata":     map[string]any{"source": source, "when": 1700000000.0},
	}}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBootstrap_UnreachableNATSLogsOnly(t *testing.T) {
	setupEnv(t)
	t.Setenv("DOCMANAGER_NOTIFY_URL", "nats://127.0.0.1:1")

	a, err := bootstrap(context.Background(), &rootOptions{}, logStderr)
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.notifier.(*notify.LogNotifier)
	assert.True(t, ok, "notifier is %T", a.notifier)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
		assert.NotEmpty(t, c.Short, c.Name())
	}
	for _, want := range []string{"serve", "mcp", "list", "remove", "clear", "stats", "chat", "config", "version"} {
		assert.True(t, names[want], "missing %s", want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
	assert.Contains(t, out, "Plugin:     2.0.3")
}

func TestDocumentCommands(t *testing.T) {
	setupEnv(t)
	seed(t,
		chunk("1", "report.pdf", "quarterly revenue grew"),
		chunk("2", "report.pdf", "revenue forecast"),
		chunk("3", "notes.md", "buy milk"),
	)

	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "notes.md")

	out, err = execute(t, "stats", "--detailed")
	require.NoError(t, err)
	assert.Contains(t, out, "📊 **Document Statistics**")

	out, err = execute(t, "remove", "Report.PDF")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Successfully removed 'Report.PDF' (2 chunks deleted)")

	out, err = execute(t, "clear")
	require.NoError(t, err)
	assert.NotContains(t, out, "cleared successfully")

	out, err = execute(t, "clear", "CONFIRM")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ **Rabbit Hole cleared successfully**")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "📄 No documents found.")
}

func TestChatCmd(t *testing.T) {
	setupEnv(t)
	seed(t, chunk("1", "report.pdf", "quarterly revenue grew"))

	out, err := execute(t, "chat", "show", "documents")
	require.NoError(t, err)
	assert.Contains(t, out, "[prefix] You are the **Document Manager Assistant**")
	assert.Contains(t, out, "report.pdf")

	out, err = execute(t, "chat", "good", "morning")
	require.NoError(t, err)
	assert.Contains(t, out, "no fast reply")
}

func TestConfigShow(t *testing.T) {
	setupEnv(t)
	t.Setenv("DOCMANAGER_AUTH_JWT_SECRET", "hunter2")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "Server")
}

func TestLogLevelFlag(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "--log-level", "loud", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --log-level")

	_, err = execute(t, "--log-level", "TRACE", "stats")
	assert.NoError(t, err)
}

func TestMissingExplicitConfig(t *testing.T) {
	home := setupEnv(t)

	_, err := execute(t, "--config", filepath.Join(home, ".config", "docmanager", "absent.yaml"), "stats")
	assert.Error(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServe(t *testing.T) {
	setupEnv(t)
	port := freePort(t)
	t.Setenv("DOCMANAGER_SERVER_HOST", "127.0.0.1")
	t.Setenv("DOCMANAGER_SERVER_PORT", strconv.Itoa(port))
	seed(t, chunk("1", "report.pdf", "quarterly revenue grew"))

	a, err := bootstrap(context.Background(), &rootOptions{}, logStderr)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan *http.Server, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, a, ready) }()
	<-ready

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := nethttp.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == nethttp.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	resp, err := nethttp.Post(base+http.HooksPath, "application/json", strings.NewReader(`{"message":"list_documents"}`))
	require.NoError(t, err)
	var reply http.HookResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	resp.Body.Close()
	assert.True(t, reply.Handled)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
