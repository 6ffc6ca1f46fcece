// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002.png", "0001.png", "0010.png", ".hidden.png", "notes.txt"} {
		must.M(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	must.M(os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	files, err := ListFiles(dir, ".png")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "0001.png"),
		filepath.Join(dir, "0002.png"),
		filepath.Join(dir, "0010.png"),
	}, files)

	_, err = ListFiles(filepath.Join(dir, "missing"), ".png")
	require.Error(t, err)
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "0001.gob", ReplaceExt("/data/DIV2K_train_HR/0001.png", ".gob"))
	assert.Equal(t, "png_file.gob", ReplaceExt("png_file.png", ".gob"))
	assert.Equal(t, "noext.gob", ReplaceExt("noext", ".gob"))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, MustFileExists(dir))
	assert.False(t, MustFileExists(filepath.Join(dir, "nope")))
}

func TestValidateChecksum(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "blob")
	content := []byte("super-resolution")
	must.M(os.WriteFile(filePath, content, 0644))
	sum := sha256.Sum256(content)
	require.NoError(t, ValidateChecksum(filePath, hex.EncodeToString(sum[:])))

	require.Error(t, ValidateChecksum(filePath, "deadbeef"))
	assert.False(t, MustFileExists(filePath), "file failing the checksum should have been removed")
}

func TestByteCountIEC(t *testing.T) {
	assert.Equal(t, "12 B", ByteCountIEC(12))
	assert.Equal(t, "1.5 KiB", ByteCountIEC(1536))
	assert.Equal(t, "2.0 MiB", ByteCountIEC(2*1024*1024))
}
