package resource_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"dropkeep/internal/resource"
	"dropkeep/internal/storage/local"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testRoot = "/srv/www"

type memUpload struct {
	name string
	ext  string
	data []byte
	err  error
}

func (u memUpload) Name() string      { return u.name }
func (u memUpload) Extension() string { return u.ext }

func (u memUpload) Open() (io.ReadCloser, error) {
	if u.err != nil {
		return nil, u.err
	}
	return io.NopCloser(bytes.NewReader(u.data)), nil
}

type fakeRecord struct {
	values map[string]resource.Value
	old    map[string]string
	errs   map[string][]string
}

func newFakeRecord() *fakeRecord {
	return &fakeRecord{
		values: map[string]resource.Value{},
		old:    map[string]string{},
		errs:   map[string][]string{},
	}
}

func (r *fakeRecord) Value(attribute string) resource.Value { return r.values[attribute] }

func (r *fakeRecord) SetValue(attribute string, value resource.Value) {
	r.values[attribute] = value
}

func (r *fakeRecord) OldValue(attribute string) string { return r.old[attribute] }

func (r *fakeRecord) AddError(attribute, message string) {
	r.errs[attribute] = append(r.errs[attribute], message)
}

// sequence 依次返回给定标识，用完后回落到随机标识。
func sequence(ids ...string) func() string {
	return func() string {
		if len(ids) == 0 {
			return resource.NewIdentifier()
		}
		id := ids[0]
		ids = ids[1:]
		return id
	}
}

func newTestFS() *local.FS {
	return local.NewMemory()
}

func testOptions(fsys resource.Filesystem, ids ...string) resource.Options {
	return resource.Options{
		Config: resource.Config{
			Root:                  testRoot,
			OriginalNameAttribute: "image_name",
		},
		FS:            fsys,
		NewIdentifier: sequence(ids...),
	}
}

func writeFile(t *testing.T, fsys *local.FS, rel, content string) string {
	t.Helper()
	full := filepath.Join(testRoot, filepath.FromSlash(rel))
	require.NoError(t, fsys.Afero().MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, afero.WriteFile(fsys.Afero(), full, []byte(content), 0o644))
	return full
}

func readFile(t *testing.T, fsys *local.FS, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys.Afero(), filepath.Join(testRoot, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func fileExists(t *testing.T, fsys *local.FS, rel string) bool {
	t.Helper()
	ok, err := afero.Exists(fsys.Afero(), filepath.Join(testRoot, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return ok
}

// failingFS 在指定操作上对指定路径返回错误，其余委托给内存实现。
type failingFS struct {
	*local.FS
	renameFail map[string]bool
	globErr    error
}

var errInjected = errors.New("injected failure")

func (f *failingFS) Rename(ctx context.Context, oldpath, newpath string) error {
	if f.renameFail[oldpath] {
		return errInjected
	}
	return f.FS.Rename(ctx, oldpath, newpath)
}

func (f *failingFS) Glob(ctx context.Context, pattern string) ([]string, error) {
	if f.globErr != nil {
		return nil, f.globErr
	}
	return f.FS.Glob(ctx, pattern)
}
