package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zulandar/chatrelay/internal/config"
	"github.com/zulandar/chatrelay/internal/server"
)

// newTestRelay serves a fully wired relay backed by a temp sqlite file.
func newTestRelay(t *testing.T, yaml string) *httptest.Server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	cfg, err := config.Parse([]byte("database:\n  path: " + dbPath + "\n" + yaml))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	a, err := buildApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	t.Cleanup(a.Close)

	router, err := server.NewRouter(server.StartOpts{Service: a.service, Hub: a.hub, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSendCmd_Success(t *testing.T) {
	ts := newTestRelay(t, "")

	out, err := runCmd(t, "", "send", "hello there", "--channel", "ops", "--user-name", "Ana", "--server", ts.URL)
	if err != nil {
		t.Fatalf("send failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Sent message 1 to #ops") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestSendCmd_FromStdin(t *testing.T) {
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return true }
	defer func() { stdinIsTerminal = orig }()

	ts := newTestRelay(t, "")

	out, err := runCmd(t, "typed message\n", "send", "--server", ts.URL)
	if err != nil {
		t.Fatalf("send failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Message: ") {
		t.Errorf("expected prompt, got: %s", out)
	}
	if !strings.Contains(out, "to #general") {
		t.Errorf("expected default channel, got: %s", out)
	}

	out, err = runCmd(t, "", "history", "--server", ts.URL)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "typed message") {
		t.Errorf("expected stdin content in history, got: %s", out)
	}
}

func TestSendCmd_ValidationErrors(t *testing.T) {
	ts := newTestRelay(t, "")

	out, err := runCmd(t, "", "send", "hi", "--channel", "bad channel!", "--server", ts.URL)
	if err == nil {
		t.Fatal("expected error for invalid channel")
	}
	if !strings.Contains(err.Error(), "HTTP 422") {
		t.Errorf("expected HTTP 422 in error, got: %v", err)
	}
	if !strings.Contains(out, "channel: Channel name can only contain letters") {
		t.Errorf("expected field error in output, got: %s", out)
	}
}

func TestSendCmd_EmptyStdin(t *testing.T) {
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	defer func() { stdinIsTerminal = orig }()

	ts := newTestRelay(t, "")

	out, err := runCmd(t, "", "send", "--server", ts.URL)
	if err == nil {
		t.Fatal("expected error for empty content")
	}
	if strings.Contains(out, "Message: ") {
		t.Errorf("prompt shown for non-terminal stdin: %s", out)
	}
	if !strings.Contains(out, "content: Message content is required.") {
		t.Errorf("expected content error, got: %s", out)
	}
}

func TestSendCmd_RateLimited(t *testing.T) {
	ts := newTestRelay(t, "rate_limit:\n  max_attempts: 1\n")

	if out, err := runCmd(t, "", "send", "first", "--server", ts.URL); err != nil {
		t.Fatalf("first send failed: %v\n%s", err, out)
	}
	out, err := runCmd(t, "", "send", "second", "--server", ts.URL)
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if !strings.Contains(err.Error(), "HTTP 429") {
		t.Errorf("expected HTTP 429 in error, got: %v", err)
	}
	if !strings.Contains(out, "Too many messages") || !strings.Contains(out, "Retry in") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestSendCmd_ServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := runCmd(t, "", "send", "hi", "--server", url)
	if err == nil {
		t.Fatal("expected error when relay is unreachable")
	}
	if !strings.Contains(err.Error(), "POST /api/chat/send") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSendCmd_PromptsForChannel(t *testing.T) {
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return true }
	defer func() { stdinIsTerminal = orig }()

	ts := newTestRelay(t, "")

	out, err := runCmd(t, "hi\nops\n", "send", "--server", ts.URL)
	if err != nil {
		t.Fatalf("send failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Channel [general]: ") {
		t.Errorf("expected channel prompt, got: %s", out)
	}
	if !strings.Contains(out, "to #ops") {
		t.Errorf("expected prompted channel, got: %s", out)
	}
}
