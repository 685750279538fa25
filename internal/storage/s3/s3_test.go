package s3

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_KeyMapping(t *testing.T) {
	s := &FS{root: "/srv/www"}

	key, err := s.key("/srv/www/image/ab/cd/ef/abcdef01.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/ab/cd/ef/abcdef01.jpg", key)
	assert.Equal(t, "/srv/www/image/ab/cd/ef/abcdef01.jpg", s.abs(key))

	key, err = s.key("/srv/www")
	require.NoError(t, err)
	assert.Equal(t, ".", key)

	_, err = s.key("/etc/passwd")
	require.ErrorContains(t, err, "outside storage root")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}
