package release

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/depforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifacts(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func TestPublishFiltersByIncludeRules(t *testing.T) {
	buildRoot := t.TempDir()
	artifactsRoot := filepath.Join(buildRoot, "artifacts")
	releasesRoot := filepath.Join(buildRoot, "releases")
	writeArtifacts(t, filepath.Join(artifactsRoot, "zlib"), map[string]string{
		"lib/libz.a":     "lib",
		"include/zlib.h": "header",
		"tmp/build.log":  "noise",
	})

	pub := NewDirPublisher()
	res, err := pub.Publish(context.Background(), Request{
		DepName:          "zlib",
		Out:              &config.OutConfig{Include: []string{"lib/*", "include/*"}},
		Version:          "2026.08",
		ArtifactsRoot:    artifactsRoot,
		ArtifactsDirName: "zlib",
		ReleasesRoot:     releasesRoot,
		BuildRoot:        buildRoot,
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, filepath.Join(releasesRoot, "2026.08", "zlib"), res.ReleaseDir)
	assert.Equal(t, []string{"include/zlib.h", "lib/libz.a"}, res.CopiedFiles)

	// The filtered file must not exist in the release tree.
	_, statErr := os.Stat(filepath.Join(res.ReleaseDir, "tmp", "build.log"))
	assert.True(t, os.IsNotExist(statErr))

	data, err := os.ReadFile(filepath.Join(res.ReleaseDir, "lib", "libz.a"))
	require.NoError(t, err)
	assert.Equal(t, "lib", string(data))
}

func TestPublishExcludeWinsOverInclude(t *testing.T) {
	buildRoot := t.TempDir()
	artifactsRoot := filepath.Join(buildRoot, "artifacts")
	writeArtifacts(t, filepath.Join(artifactsRoot, "dep"), map[string]string{
		"lib/libdep.a":  "keep",
		"lib/libdep.la": "drop",
	})

	pub := NewDirPublisher()
	res, err := pub.Publish(context.Background(), Request{
		DepName:          "dep",
		Out:              &config.OutConfig{Include: []string{"lib/*"}, Exclude: []string{"*.la"}},
		Version:          "v1",
		ArtifactsRoot:    artifactsRoot,
		ArtifactsDirName: "dep",
		ReleasesRoot:     filepath.Join(buildRoot, "releases"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/libdep.a"}, res.CopiedFiles)
}

func TestPublishWithoutRulesCopiesEverything(t *testing.T) {
	buildRoot := t.TempDir()
	artifactsRoot := filepath.Join(buildRoot, "artifacts")
	writeArtifacts(t, filepath.Join(artifactsRoot, "dep"), map[string]string{
		"a.txt":       "a",
		"nested/b.so": "b",
	})

	pub := NewDirPublisher()
	res, err := pub.Publish(context.Background(), Request{
		DepName:          "dep",
		Version:          "v1",
		ArtifactsRoot:    artifactsRoot,
		ArtifactsDirName: "dep",
		ReleasesRoot:     filepath.Join(buildRoot, "releases"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "nested/b.so"}, res.CopiedFiles)
}

func TestPublishMissingArtifactsDirFails(t *testing.T) {
	buildRoot := t.TempDir()
	pub := NewDirPublisher()
	_, err := pub.Publish(context.Background(), Request{
		DepName:          "ghost",
		Version:          "v1",
		ArtifactsRoot:    filepath.Join(buildRoot, "artifacts"),
		ArtifactsDirName: "ghost",
		ReleasesRoot:     filepath.Join(buildRoot, "releases"),
	})
	require.Error(t, err)
	var perr *PublicationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ghost", perr.Dep)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, map[string]string{
		"lib/libz.a":     "x",
		"include/zlib.h": "y",
	})

	files, err := NewDirPublisher().ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"include/zlib.h", "lib/libz.a"}, files)
}
