package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPath(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://github.com/alice/notes.git", want: filepath.Join("repos", "github.com", "alice", "notes")},
		{url: "http://git.example.com/team/notes", want: filepath.Join("repos", "git.example.com", "team", "notes")},
		{url: "git@github.com:alice/notes.git", want: filepath.Join("repos", "github.com", "alice", "notes")},
		{url: "ftp://example.com/notes", wantErr: true},
		{url: "https://github.com", wantErr: true},
		{url: "just-a-dir", wantErr: true},
		{url: "https://example.com/../../../tmp/evil", wantErr: true},
		{url: "https://example.com/team/../../../etc", wantErr: true},
		{url: "git@github.com:../../x", wantErr: true},
		{url: "git@..:../escape", wantErr: true},
		{url: "https://github.com/alice/../bob/notes.git", want: filepath.Join("repos", "github.com", "bob", "notes")},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := LocalPath("repos", tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://github.com/alice/notes.git"))
	assert.True(t, IsURL("git@github.com:alice/notes.git"))
	assert.False(t, IsURL("./notes"))
	assert.False(t, IsURL("/home/alice/notes"))
}

// newOriginRepo creates a repository with one committed markdown file.
func newOriginRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	commitFile(t, dir, wt, "notes.md", "# Goroutines\nCheap threads.\n")
	return dir, wt
}

func commitFile(t *testing.T, dir string, wt *git.Worktree, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	_, err := wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestSyncClonesThenPulls(t *testing.T) {
	origin, wt := newOriginRepo(t)
	local := filepath.Join(t.TempDir(), "checkout", "notes")
	ctx := context.Background()

	require.NoError(t, Sync(ctx, origin, local))
	_, err := os.Stat(filepath.Join(local, "notes.md"))
	require.NoError(t, err)

	// Pulling an unchanged origin is not an error.
	require.NoError(t, Sync(ctx, origin, local))

	commitFile(t, origin, wt, "channels.md", "# Channels\nTyped pipes.\n")
	require.NoError(t, Sync(ctx, origin, local))
	_, err = os.Stat(filepath.Join(local, "channels.md"))
	assert.NoError(t, err)
}

func TestSyncFailsOnNonRepository(t *testing.T) {
	local := t.TempDir() // exists but is not a git checkout
	err := Sync(context.Background(), "https://example.invalid/notes.git", local)
	assert.Error(t, err)
}
