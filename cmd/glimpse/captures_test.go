package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards command output so the test can read it while the
// command is still running.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCapturesWatchReportsWhileRunning(t *testing.T) {
	tmp := t.TempDir()
	prevRoot := projectRoot
	projectRoot = tmp
	t.Cleanup(func() { projectRoot = prevRoot })

	incoming := filepath.Join(tmp, "incoming")
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(incoming, "shot.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := &syncBuffer{}
	cmd := newCapturesWatchCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--dir", incoming})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	// The registration must surface while the command is still watching,
	// not after shutdown.
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "Registered") {
		if time.Now().After(deadline) {
			t.Fatalf("no registration reported while running; output:\n%s", out.String())
		}
		select {
		case err := <-done:
			t.Fatalf("watch exited early (err=%v); output:\n%s", err, out.String())
		case <-time.After(25 * time.Millisecond):
		}
	}

	text := out.String()
	if !strings.Contains(text, "Watching "+incoming) {
		t.Errorf("banner missing from output:\n%s", text)
	}
	if strings.Index(text, "Watching") > strings.Index(text, "Registered") {
		t.Errorf("banner printed after registration:\n%s", text)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
