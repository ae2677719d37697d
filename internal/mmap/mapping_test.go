//go:build unix || windows

package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAnon_ReadWriteClose(t *testing.T) {
	m, err := MapAnon(4096)
	require.NoError(t, err)

	data := m.Bytes()
	require.Len(t, data, 4096)
	assert.Equal(t, 4096, m.Size())

	// Anonymous mappings start zeroed.
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not zero: %d", i, b)
		}
	}

	data[0], data[4095] = 0xAB, 0xCD
	assert.Equal(t, byte(0xAB), m.Bytes()[0])
	assert.Equal(t, byte(0xCD), m.Bytes()[4095])

	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())

	// Idempotent.
	require.NoError(t, m.Close())
}

func TestMapAnon_InvalidSize(t *testing.T) {
	_, err := MapAnon(0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = MapAnon(-1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}
