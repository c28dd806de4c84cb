package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kvquery"
	"github.com/hupe1980/kvquery/blobstore"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, ":8080", o.addr)
	assert.Equal(t, "local", o.store)
	assert.Equal(t, 10*time.Second, o.poll)
	assert.False(t, o.failFast)

	o, err = parseFlags([]string{"-store", "s3", "-bucket", "b", "-prefix", "p/", "-poll", "1s"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "s3", o.store)
	assert.Equal(t, "b", o.bucket)
	assert.Equal(t, time.Second, o.poll)

	o, err = parseFlags([]string{"-max-concurrent-queries", "8", "-fail-fast"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, int64(8), o.maxQueries)
	assert.True(t, o.failFast)

	_, err = parseFlags([]string{"-poll", "0s"}, io.Discard)
	assert.ErrorIs(t, err, kvquery.ErrInvalidConfiguration)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		l, err := newLogger(options{logLevel: "debug", logFormat: format})
		require.NoError(t, err)
		assert.NotNil(t, l)
	}

	_, err := newLogger(options{logLevel: "loud", logFormat: "text"})
	assert.ErrorIs(t, err, kvquery.ErrInvalidConfiguration)

	_, err = newLogger(options{logLevel: "info", logFormat: "xml"})
	assert.ErrorIs(t, err, kvquery.ErrInvalidConfiguration)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, err := newStore(ctx, options{store: "local", dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, store)

	for _, o := range []options{
		{store: "s3"},
		{store: "minio", bucket: "b"},
		{store: "gcs"},
	} {
		_, err := newStore(ctx, o)
		assert.ErrorIs(t, err, kvquery.ErrInvalidConfiguration, o.store)
	}
}
