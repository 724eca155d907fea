package emit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dualbuild/internal/format"
)

type readerStub struct{}

func (readerStub) ReadFile(string) ([]byte, error) { return []byte("src"), nil }
func (readerStub) WriteFile(context.Context, string, []byte) error { return errors.New("unexpected write") }

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dist/index.js", "index.js"},
		{"lib/a/index.js", "index.js"},
		{"index.js", "index.js"},
		{"./dist/index.d.ts", "index.d.ts"},
		{"dist//nested/../index.js", "index.js"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Flatten(tt.in))
		})
	}
}

func TestRewriter_Target(t *testing.T) {
	out := filepath.Join("build", "out")
	tests := []struct {
		name string
		f    format.Format
		in   string
		want string
	}{
		{"legacy js", format.Legacy, "dist/index.js", filepath.Join(out, "index.cjs")},
		{"modern js", format.Modern, "dist/index.js", filepath.Join(out, "index.mjs")},
		{"declaration keeps extension", format.Modern, "dist/index.d.ts", filepath.Join(out, "index.d.ts")},
		{"non-js untouched", format.Legacy, "dist/index.json", filepath.Join(out, "index.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRewriter(tt.f, out, readerStub{}, NewWriter())
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Target(tt.in))
		})
	}
}

func TestNewRewriter_RejectsUnknownFormat(t *testing.T) {
	_, err := NewRewriter(format.Format{}, "dist", readerStub{}, NewWriter())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	tampered := format.Legacy
	tampered.Extension = ".js"
	_, err = NewRewriter(tampered, "dist", readerStub{}, NewWriter())
	require.Error(t, err)
}

func TestRewriter_WritesFormats(t *testing.T) {
	out := t.TempDir()
	console := &safeBuffer{}
	w := NewWriter(WithConsole(console))

	legacy, err := NewRewriter(format.Legacy, out, readerStub{}, w)
	require.NoError(t, err)
	modern, err := NewRewriter(format.Modern, out, readerStub{}, w)
	require.NoError(t, err)

	require.NoError(t, legacy.WriteFile(context.Background(), "dist/index.js", []byte("exports.x = 1;")))
	require.NoError(t, modern.WriteFile(context.Background(), "dist/index.js", []byte("export const x = 1;\n")))
	require.NoError(t, modern.WriteFile(context.Background(), "dist/index.d.ts", []byte("export declare const x: 1;\n")))

	results := w.Wait()
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.OK(), r.Path)
	}

	cjs, err := os.ReadFile(filepath.Join(out, "index.cjs"))
	require.NoError(t, err)
	assert.Equal(t, "exports.x = 1;\n"+format.LegacyShim, string(cjs))

	mjs, err := os.ReadFile(filepath.Join(out, "index.mjs"))
	require.NoError(t, err)
	assert.Equal(t, "export const x = 1;\n", string(mjs))

	dts, err := os.ReadFile(filepath.Join(out, "index.d.ts"))
	require.NoError(t, err)
	assert.Equal(t, "export declare const x: 1;\n", string(dts))

	for _, name := range []string{"index.cjs", "index.mjs", "index.d.ts"} {
		assert.Contains(t, console.String(), "Built "+filepath.Join(out, name)+"\n")
	}
	assert.True(t, results[2].Declaration)
	assert.Equal(t, "esm", results[2].Format)
}

func TestRewriter_ReadFileDelegates(t *testing.T) {
	r, err := NewRewriter(format.Modern, "dist", readerStub{}, NewWriter())
	require.NoError(t, err)
	data, err := r.ReadFile("src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, "src", string(data))
}

func TestWriter_CollisionIsFatal(t *testing.T) {
	w := NewWriter(WithWriteFunc(func(string, []byte) error { return nil }), WithConsole(&safeBuffer{}))
	r, err := NewRewriter(format.Legacy, "out", readerStub{}, w)
	require.NoError(t, err)

	require.NoError(t, r.WriteFile(context.Background(), "lib/a/index.js", []byte("a")))
	err = r.WriteFile(context.Background(), "lib/b/index.js", []byte("b"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	first, _ := ce.Context().GetString("first")
	assert.Equal(t, "lib/a/index.js", first)

	assert.Len(t, w.Wait(), 1)
}

func TestWriter_FailureIsIsolated(t *testing.T) {
	console := &safeBuffer{}
	var written atomic.Int32
	w := NewWriter(WithConsole(console), WithWriteFunc(func(path string, _ []byte) error {
		if strings.HasSuffix(path, "bad.js") {
			return errors.New("permission denied")
		}
		written.Add(1)
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, w.Dispatch(ctx, "out/a.js", []byte("a"), Meta{Format: "cjs"}))
	require.NoError(t, w.Dispatch(ctx, "out/bad.js", []byte("b"), Meta{Format: "cjs"}))
	require.NoError(t, w.Dispatch(ctx, "out/c.js", []byte("c"), Meta{Format: "cjs"}))

	results := w.Wait()
	require.Len(t, results, 3)
	assert.Equal(t, []string{"out/a.js", "out/bad.js", "out/c.js"},
		[]string{results[0].Path, results[1].Path, results[2].Path})
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.ErrorContains(t, results[1].Err, "permission denied")
	assert.True(t, results[2].OK())
	assert.Equal(t, int32(2), written.Load())
	assert.NotContains(t, console.String(), "bad.js")
}

func TestWriter_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	w := NewWriter(WithConcurrency(1), WithConsole(&safeBuffer{}), WithWriteFunc(func(string, []byte) error {
		n := inFlight.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		<-release
		inFlight.Add(-1)
		return nil
	}))

	go func() {
		for i := 0; i < 3; i++ {
			release <- struct{}{}
		}
	}()
	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, w.Dispatch(context.Background(), p, nil, Meta{}))
	}
	assert.Len(t, w.Wait(), 3)
	assert.Equal(t, int32(1), peak.Load())
}

func TestWriter_WaitWithoutDispatch(t *testing.T) {
	assert.Empty(t, NewWriter().Wait())
}
