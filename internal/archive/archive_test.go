package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedTime = time.Date(2024, 3, 9, 14, 30, 10, 0, time.UTC)

type testEntry struct {
	name    string
	data    []byte
	method  uint16
	comment string
	extra   []byte
}

// writeJar writes entries to a jar in dir and returns its path.
func writeJar(t *testing.T, dir, name string, entries ...testEntry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		method := e.method
		if method == 0 && len(e.data) > 0 {
			method = zip.Deflate
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   method,
			Modified: fixedTime,
			Comment:  e.comment,
			Extra:    e.extra,
		})
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

type jarContents struct {
	names   []string
	data    map[string][]byte
	headers map[string]zip.FileHeader
}

func readJar(t *testing.T, path string) jarContents {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := jarContents{data: map[string][]byte{}, headers: map[string]zip.FileHeader{}}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out.names = append(out.names, f.Name)
		out.data[f.Name] = b
		out.headers[f.Name] = f.FileHeader
	}
	return out
}

func manifest(lines ...string) []byte {
	var b bytes.Buffer
	b.WriteString("Manifest-Version: 1.0\r\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.Bytes()
}
