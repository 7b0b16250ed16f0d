package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compress-service/pkg/config"
)

func TestMinioOptions(t *testing.T) {
	opts, err := newMinioOptions(config.MinioConfig{Endpoint: ""})
	require.NoError(t, err)
	assert.False(t, opts.enabled)

	opts, err = newMinioOptions(config.MinioConfig{
		Enabled:      true,
		Endpoint:     " minio:9000 ",
		AccessKey:    "ak",
		SecretKey:    "sk",
		BucketName:   "media",
		OutputPrefix: "/compressed/",
	})
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", opts.endpoint)
	assert.Equal(t, "ak", opts.accessKey)
	assert.Equal(t, "sk", opts.secretKey)
	assert.Equal(t, "compressed", opts.outputPrefix)

	_, err = newMinioOptions(config.MinioConfig{Enabled: true, BucketName: "media"})
	assert.ErrorContains(t, err, "endpoint")
	_, err = newMinioOptions(config.MinioConfig{Enabled: true, Endpoint: "minio:9000"})
	assert.ErrorContains(t, err, "bucket_name")
}

func TestDisabledMinioResource(t *testing.T) {
	r := &MinioResource{}
	require.NoError(t, r.open(config.MinioConfig{Enabled: false, OutputPrefix: "compressed"}))
	assert.False(t, r.Enabled())
	assert.Nil(t, r.GetClient())
	assert.Empty(t, r.GetBucketName())
	assert.Empty(t, r.OutputPrefix())
}
