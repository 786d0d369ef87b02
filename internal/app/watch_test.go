package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevantEvent(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "notes/a.txt", "AAAA")
	writeDoc(t, cfg, "b.csv", "x")
	writeDoc(t, cfg, ".hidden/c.txt", "CCCC")
	a := newTestApp(t, cfg, nil, nil)
	a.metadata.Files["old/gone.md"] = FileInfo{Path: "old/gone.md"}

	path := func(rel string) string { return filepath.Join(cfg.DataDir, filepath.FromSlash(rel)) }

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create matching file", fsnotify.Event{Name: path("notes/a.txt"), Op: fsnotify.Create}, true},
		{"write matching file", fsnotify.Event{Name: path("notes/a.txt"), Op: fsnotify.Write}, true},
		{"write and chmod", fsnotify.Event{Name: path("notes/a.txt"), Op: fsnotify.Write | fsnotify.Chmod}, true},
		{"chmod only", fsnotify.Event{Name: path("notes/a.txt"), Op: fsnotify.Chmod}, false},
		{"unsupported extension", fsnotify.Event{Name: path("b.csv"), Op: fsnotify.Write}, false},
		{"hidden directory", fsnotify.Event{Name: path(".hidden/c.txt"), Op: fsnotify.Write}, false},
		{"new directory", fsnotify.Event{Name: path("notes"), Op: fsnotify.Create}, true},
		{"removed indexed directory", fsnotify.Event{Name: path("old"), Op: fsnotify.Remove}, true},
		{"removed indexed file", fsnotify.Event{Name: path("old/gone.md"), Op: fsnotify.Rename}, true},
		{"removed unknown directory", fsnotify.Event{Name: path("misc"), Op: fsnotify.Remove}, false},
		{"outside data dir", fsnotify.Event{Name: filepath.Join(t.TempDir(), "x.txt"), Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.relevantEvent(tt.ev))
		})
	}
}

func TestHidden(t *testing.T) {
	assert.True(t, hidden(".git/config"))
	assert.True(t, hidden("notes/.draft.md"))
	assert.False(t, hidden("notes/a.txt"))
	assert.False(t, hidden("./data/a.txt"))
	assert.False(t, hidden("../data/a.txt"))
}

func TestWatch_ReingestsChangedFiles(t *testing.T) {
	cfg := testConfig(t)
	st := openStore(t, cfg)
	a := newTestApp(t, cfg, nil, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	// give the watcher time to register the tree
	time.Sleep(200 * time.Millisecond)
	writeDoc(t, cfg, "new.txt", "AAAABBBB")

	assert.Eventually(t, func() bool {
		n, err := st.Count(context.Background())
		return err == nil && n == 2
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
