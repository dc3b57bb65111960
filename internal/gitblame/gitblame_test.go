package gitblame

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocket-tycoon/rocketindex/internal/store"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	r, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := r.Worktree()
	require.NoError(t, err)

	mainGo := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(mainGo, []byte("package main\n\nfunc main() {}\n"), 0o644))

	_, err = wt.Add("main.go")
	require.NoError(t, err)

	_, err = wt.Commit("initial commit", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir
}

func TestOpen_ValidRepo(t *testing.T) {
	dir := initTestRepo(t)
	e, err := Open(dir)
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestOpen_NotARepo(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNoGit)
}

func TestBlame_TrackedFile(t *testing.T) {
	dir := initTestRepo(t)
	e, err := Open(dir)
	require.NoError(t, err)

	blame, err := e.Blame(1, filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	require.NotNil(t, blame)
	assert.Equal(t, int64(1), blame.FileID)
	assert.Equal(t, "Test", blame.LastAuthor)
	assert.NotEmpty(t, blame.LastCommit)
}

func TestBlame_UntrackedFileReturnsNil(t *testing.T) {
	dir := initTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.go"), []byte("package main\n"), 0o644))

	e, err := Open(dir)
	require.NoError(t, err)

	blame, err := e.Blame(2, filepath.Join(dir, "untracked.go"))
	require.NoError(t, err)
	assert.Nil(t, blame)
}

func TestEnrichAll_UpsertsBlameForTrackedFiles(t *testing.T) {
	dir := initTestRepo(t)
	e, err := Open(dir)
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate())

	mainPath := filepath.Join(dir, "main.go")
	fileID, err := s.InsertFile(&store.File{Path: mainPath, Language: "go", ContentHash: 1})
	require.NoError(t, err)

	files := []*store.File{{ID: fileID, Path: mainPath}}
	require.NoError(t, EnrichAll(s, e, files))

	blame, err := s.FileBlameByFile(fileID)
	require.NoError(t, err)
	require.NotNil(t, blame)
	assert.Equal(t, "Test", blame.LastAuthor)
}
