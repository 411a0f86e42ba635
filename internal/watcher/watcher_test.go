package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu    sync.Mutex
	known map[string]bool
	done  map[string]bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{known: map[string]bool{}, done: map[string]bool{}}
}

func (r *fakeRegistry) Done(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done[id]
}

func (r *fakeRegistry) Register(_ context.Context, ids []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var added []string
	for _, id := range ids {
		if r.known[id] {
			continue
		}
		r.known[id] = true
		added = append(added, id)
	}
	return added
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	return p
}

func TestPoll_RegistersAndNotifiesOnlyNew(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.jpg")
	b := touch(t, dir, "b.jpg")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	reg := newFakeRegistry()
	w := New(Config{Dir: dir}, reg, nil)

	var notified [][]string
	w.AddListener(func(_ context.Context, ids []string) { notified = append(notified, ids) })

	added, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, added)

	added, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Len(t, notified, 1, "no notification without new images")

	c := touch(t, dir, "c.jpg")
	added, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{c}, added)
	assert.Equal(t, [][]string{{a, b}, {c}}, notified)
}

func TestPoll_SkipsDoneAndFiltered(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.jpg")
	touch(t, dir, "notes.txt")
	b := touch(t, dir, "b.png")

	reg := newFakeRegistry()
	reg.done[a] = true
	w := New(Config{Dir: dir, Accept: func(p string) bool { return filepath.Ext(p) != ".txt" }}, reg, nil)

	added, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{b}, added)
}

func TestPoll_MissingDirectory(t *testing.T) {
	w := New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, newFakeRegistry(), nil)
	_, err := w.Poll(context.Background())
	assert.Error(t, err)
}

func TestRun_RecoversFromListingErrors(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "incoming")
	reg := newFakeRegistry()
	w := New(Config{Dir: dir, Interval: 10 * time.Millisecond}, reg, nil)

	got := make(chan []string, 4)
	w.AddListener(func(_ context.Context, ids []string) { got <- ids })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.Mkdir(dir, 0o755))
	a := touch(t, dir, "a.jpg")

	select {
	case ids := <-got:
		assert.Equal(t, []string{a}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("listener not notified")
	}

	w.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_NotifyWakesEarly(t *testing.T) {
	dir := t.TempDir()
	reg := newFakeRegistry()
	w := New(Config{Dir: dir, Interval: time.Hour, Notify: true}, reg, nil)

	got := make(chan []string, 1)
	w.AddListener(func(_ context.Context, ids []string) { got <- ids })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	a := touch(t, dir, "a.jpg")

	select {
	case ids := <-got:
		assert.Equal(t, []string{a}, ids)
	case <-time.After(3 * time.Second):
		t.Fatal("filesystem event did not trigger a poll")
	}

	cancel()
	<-done
}
