package storage_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeflow/internal/config"
	"homeflow/internal/storage"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := storage.NewMemory()

	require.NoError(t, s.Put("door:kitchen", []byte(`{"locked":true}`)))
	value, err := s.Get("door:kitchen")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"locked":true}`), value)

	require.NoError(t, s.Delete("door:kitchen"))
	value, err = s.Get("door:kitchen")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryStoreMissingKeyIsNilNil(t *testing.T) {
	s := storage.NewMemory()

	value, err := s.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := storage.NewMemory()

	original := []byte("abc")
	require.NoError(t, s.Put("k", original))
	original[0] = 'x'

	value, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)

	value[1] = 'y'
	again, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestFactoryFallsBackToMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := storage.New(config.DatabaseConfig{Host: ""}, logger)
	_, ok := s.(*storage.MemoryStore)
	assert.True(t, ok)
}

func TestSessionStorageNilWithoutDatabase(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Nil(t, storage.SessionStorage(config.DatabaseConfig{Host: ""}, logger))
}
