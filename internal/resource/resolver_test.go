package resource_test

import (
	"regexp"
	"testing"

	"dropkeep/internal/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentifier(t *testing.T) {
	hex := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := resource.NewIdentifier()
		require.Regexp(t, hex, id)
		require.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true
	}
}

func TestShardPath(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		depth int
		group int
		want  string
	}{
		{name: "default layout", id: "abcdef0123456789", depth: 3, group: 2, want: "ab/cd/ef/"},
		{name: "separators ignored", id: "ab/cd\\ef01", depth: 3, group: 2, want: "ab/cd/ef/"},
		{name: "exact length", id: "abcdef", depth: 3, group: 2, want: "ab/cd/ef/"},
		{name: "custom layout", id: "abcdef0123", depth: 2, group: 3, want: "abc/def/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resource.ShardPath(tt.id, tt.depth, tt.group)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShardPath_ShortIdentifier(t *testing.T) {
	_, err := resource.ShardPath("abc", 3, 2)
	require.ErrorIs(t, err, resource.ErrShortIdentifier)

	_, err = resource.ShardPath("abcdef", 0, 2)
	require.ErrorIs(t, err, resource.ErrShortIdentifier)
}

func TestShardPath_IgnoresTrailingCharacters(t *testing.T) {
	a, err := resource.ShardPath("abcdef0000.jpg", 3, 2)
	require.NoError(t, err)
	b, err := resource.ShardPath("abcdefffff.png", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConfig_Normalize(t *testing.T) {
	cfg := resource.Config{Root: "/srv/www/", TempFolder: "/tmp_up/"}.Normalize()

	assert.Equal(t, "/srv/www", cfg.Root)
	assert.Equal(t, resource.DefaultResourceFolder, cfg.ResourceFolder)
	assert.Equal(t, "tmp_up", cfg.TempFolder)
	assert.Equal(t, resource.DefaultShardDepth, cfg.ShardDepth)
	assert.Equal(t, resource.DefaultShardGroupSize, cfg.ShardGroupSize)
	assert.Equal(t, resource.DefaultFileMode, cfg.FileMode)
	assert.Equal(t, resource.DefaultDirMode, cfg.DirMode)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, resource.Config{Root: testRoot}.Normalize().Validate())

	err := resource.Config{}.Normalize().Validate()
	require.ErrorContains(t, err, "root is required")

	err = resource.Config{Root: testRoot, ResourceFolder: "files", TempFolder: "files/tmp"}.Normalize().Validate()
	require.ErrorContains(t, err, "overlap")

	err = resource.Config{Root: testRoot, ResourceFolder: "same", TempFolder: "same"}.Normalize().Validate()
	require.ErrorContains(t, err, "overlap")

	// 仅字符串前缀相同并不算重叠
	require.NoError(t, resource.Config{Root: testRoot, ResourceFolder: "upload", TempFolder: "upload_temp"}.Normalize().Validate())
}

func TestResolver_IsTemporary(t *testing.T) {
	r := resource.NewResolver(resource.Config{Root: testRoot})

	assert.True(t, r.IsTemporary("/upload_temp/x.jpg"))
	assert.True(t, r.IsTemporary("upload_temp/x.jpg"))
	assert.False(t, r.IsTemporary("/upload_temp"))
	assert.False(t, r.IsTemporary("/upload_temp_old/x.jpg"))
	assert.False(t, r.IsTemporary("abcdef0123.jpg"))
	assert.False(t, r.IsTemporary("/image/upload_temp/x.jpg"))
	assert.False(t, r.IsTemporary("upload_temp/../image/ab/cd/ef/abcdef0123.jpg"))
	assert.False(t, r.IsTemporary("/upload_temp/sub/../../x.jpg"))
}

func TestResolver_CheckRejectsParentSegments(t *testing.T) {
	r := resource.NewResolver(resource.Config{Root: testRoot})

	require.NoError(t, r.Check(""))
	require.NoError(t, r.Check("/upload_temp/x..jpg"))
	require.NoError(t, r.Check("abcdef0123.jpg"))
	require.ErrorIs(t, r.Check("upload_temp/../image/ab/cd/ef/abcdef0123.jpg"), resource.ErrInvalidReference)
	require.ErrorIs(t, r.Check(`upload_temp\..\image\x.jpg`), resource.ErrInvalidReference)

	_, err := r.Path("upload_temp/../image/ab/cd/ef/abcdef0123.jpg", true)
	require.ErrorIs(t, err, resource.ErrInvalidReference)
}

func TestResolver_Classify(t *testing.T) {
	r := resource.NewResolver(resource.Config{Root: testRoot})

	assert.Equal(t, resource.StateEmpty, r.Classify(resource.Value{}))
	assert.Equal(t, resource.StatePendingUpload, r.Classify(resource.UploadValue(memUpload{name: "a.jpg"})))
	assert.Equal(t, resource.StateTemp, r.Classify(resource.RefValue("/upload_temp/a.jpg")))
	assert.Equal(t, resource.StateCommitted, r.Classify(resource.RefValue("abcdef01.jpg")))
	assert.Equal(t, "committed", resource.StateCommitted.String())
}

func TestResolver_Paths(t *testing.T) {
	r := resource.NewResolver(resource.Config{Root: testRoot})

	assert.Equal(t, "/upload_temp", r.TempDir(false))
	assert.Equal(t, "/srv/www/upload_temp", r.TempDir(true))

	assert.Equal(t, "/upload_temp/x.jpg", r.TempPath("x.jpg", false))
	assert.Equal(t, "/upload_temp/x.jpg", r.TempPath("/upload_temp/x.jpg", false))
	assert.Equal(t, "/srv/www/upload_temp/x.jpg", r.TempPath("/upload_temp/x.jpg", true))

	dir, err := r.ShardDir("abcdef0123.jpg", false)
	require.NoError(t, err)
	assert.Equal(t, "/image/ab/cd/ef", dir)

	bare, err := r.CommittedPath("abcdef0123.jpg", true)
	require.NoError(t, err)
	assert.Equal(t, "/srv/www/image/ab/cd/ef/abcdef0123.jpg", bare)

	sharded, err := r.CommittedPath("ab/cd/ef/abcdef0123.jpg", true)
	require.NoError(t, err)
	assert.Equal(t, bare, sharded)

	p, err := r.Path("/upload_temp/x.jpg", false)
	require.NoError(t, err)
	assert.Equal(t, "/upload_temp/x.jpg", p)

	_, err = r.CommittedPath("abc.jpg", false)
	require.ErrorIs(t, err, resource.ErrShortIdentifier)
}

func TestVariantPattern(t *testing.T) {
	assert.Equal(t, "/srv/www/image/ab/cd/ef/abcdef01.*.jpg",
		resource.VariantPattern("abcdef01.jpg", "/srv/www/image/ab/cd/ef"))
}
