package convert

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netreplay/pkg/response"
)

func writeCapture(t *testing.T, path string, n int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := response.NewWriter(f)
	for i := 0; i < n; i++ {
		require.NoError(t, w.Write(response.KindPacket, []byte{byte(i), 0x45}))
	}
	require.NoError(t, w.Flush())
}

func readDocument(t *testing.T, path string) response.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc response.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "trace.json", DefaultOutputPath("trace.net"))
	assert.Equal(t, filepath.Join("a", "b.json"), DefaultOutputPath(filepath.Join("a", "b.net")))
	assert.Equal(t, "noext.json", DefaultOutputPath("noext"))
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "trace.net")
	out := filepath.Join(dir, "trace.json")
	writeCapture(t, in, 4)

	c := New(response.DefaultLayout, quietLogger())
	require.NoError(t, c.Run(in, ""))

	doc := readDocument(t, out)
	assert.Equal(t, response.DocumentVersion, doc.Version)
	assert.Equal(t, in, doc.OriginalFile)
	assert.Equal(t, 4, doc.TotalResponses)
	assert.Len(t, doc.Responses, 4)
}

func TestConvertDir(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	writeCapture(t, filepath.Join(inDir, "a.net"), 3)
	writeCapture(t, filepath.Join(inDir, "b.net"), 5)
	// Non-capture files are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "notes.txt"), []byte("x"), 0o644))

	c := New(response.DefaultLayout, quietLogger())
	require.NoError(t, c.Run(inDir, outDir))

	assert.Equal(t, 3, readDocument(t, filepath.Join(outDir, "a.json")).TotalResponses)
	assert.Equal(t, 5, readDocument(t, filepath.Join(outDir, "b.json")).TotalResponses)

	_, err := os.Stat(filepath.Join(outDir, "notes.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestConvertDirNeedsOutput(t *testing.T) {
	c := New(response.DefaultLayout, quietLogger())
	err := c.Run(t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output directory")
}

func TestConvertMissingInput(t *testing.T) {
	c := New(response.DefaultLayout, quietLogger())
	err := c.Run(filepath.Join(t.TempDir(), "nope.net"), "")
	assert.Error(t, err)
}

func TestConvertDirContinuesPastBadFile(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(inDir, "out")
	writeCapture(t, filepath.Join(inDir, "good.net"), 2)
	// Truncated framing: a tag with no size field.
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "bad.net"), []byte{1, 0, 0, 0}, 0o644))

	c := New(response.DefaultLayout, quietLogger())
	require.NoError(t, c.Run(inDir, outDir))

	assert.Equal(t, 2, readDocument(t, filepath.Join(outDir, "good.json")).TotalResponses)
	_, err := os.Stat(filepath.Join(outDir, "bad.json"))
	assert.True(t, os.IsNotExist(err), "failed conversions must not leave output")
}
