// ABOUTME: Tests for the control API server and client
// ABOUTME: Round trips commands over a real WebSocket connection
package control

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/capture"
)

func newTestControl(t *testing.T) (*Server, *capture.Session, *Client) {
	t.Helper()

	source := capture.NewTestTone(audio.DefaultFormat(), 440, 256)
	session := capture.NewSession(source, capture.Config{})
	srv := NewServer("unused", session)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)

	client := NewClient(strings.TrimPrefix(ts.URL, "http://"))
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	t.Cleanup(func() {
		switch session.State() {
		case capture.StateActive, capture.StatePaused:
			session.Stop()
		}
	})

	return srv, session, client
}

func TestControlLifecycleRoundTrip(t *testing.T) {
	_, session, client := newTestControl(t)

	if err := client.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.State() != capture.StateActive {
		t.Fatalf("session state = %v, want active", session.State())
	}

	stats, err := client.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.State != "active" {
		t.Errorf("stats state = %s, want active", stats.State)
	}

	if err := client.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := client.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	stats, err = client.Stats()
	if err != nil {
		t.Fatalf("stats after stop: %v", err)
	}
	if stats.State != "stopped" {
		t.Errorf("stats state = %s, want stopped", stats.State)
	}
}

func TestControlInvalidTransition(t *testing.T) {
	_, _, client := newTestControl(t)

	if err := client.Pause(); err == nil {
		t.Fatal("expected error pausing an idle session")
	}
}

func TestControlOutputManagement(t *testing.T) {
	_, _, client := newTestControl(t)

	if err := client.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	info, err := client.AddOutput(AddOutputPayload{
		Kind: "file",
		Path: filepath.Join(t.TempDir(), "take"),
	})
	if err != nil {
		t.Fatalf("add output: %v", err)
	}
	if info.Kind != "file" || info.ID == "" {
		t.Fatalf("output info = %+v, want file kind with an id", info)
	}

	outputs, err := client.Outputs()
	if err != nil {
		t.Fatalf("outputs: %v", err)
	}
	if len(outputs) != 1 || outputs[0].ID != info.ID {
		t.Fatalf("outputs = %+v, want the added sink", outputs)
	}

	if err := client.RemoveOutput(info.ID); err != nil {
		t.Fatalf("remove output: %v", err)
	}
	outputs, err = client.Outputs()
	if err != nil {
		t.Fatalf("outputs after remove: %v", err)
	}
	if len(outputs) != 0 {
		t.Fatalf("outputs after remove = %+v, want none", outputs)
	}

	if err := client.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestControlRejectsBadRequests(t *testing.T) {
	_, _, client := newTestControl(t)

	if _, err := client.Do(Command{Type: "bogus/none"}); err == nil {
		t.Error("expected error for unknown command type")
	}
	if _, err := client.AddOutput(AddOutputPayload{Kind: "tape"}); err == nil {
		t.Error("expected error for unknown output kind")
	}
	if _, err := client.AddOutput(AddOutputPayload{Kind: "file"}); err == nil {
		t.Error("expected error for file output without a path")
	}
	if err := client.RemoveOutput("not-a-uuid"); err == nil {
		t.Error("expected error for malformed sink id")
	}
}

func TestControlStatePush(t *testing.T) {
	srv, session, client := newTestControl(t)

	// Start() wires this observer in production; the test drives the
	// handler directly, so register it here.
	observer := session.ObserveState(srv.broadcastState)
	defer session.RemoveObserver(observer)

	if err := client.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case state := <-client.StateChanges:
			if state.New == "active" {
				return
			}
		case <-deadline:
			t.Fatal("no active state push received")
		}
	}
}
