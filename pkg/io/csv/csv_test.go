package csv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gio "github.com/hed1ad/goguardgan/pkg/io"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReaderRead(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    []Option
		want    [][]float64
		wantErr bool
	}{
		{
			name:    "with header",
			content: "a,b\n1,2\n3, 4\n",
			want:    [][]float64{{1, 2}, {3, 4}},
		},
		{
			name:    "without header",
			content: "1,2\n3,4\n",
			opts:    []Option{WithHeader(false)},
			want:    [][]float64{{1, 2}, {3, 4}},
		},
		{
			name:    "semicolon",
			content: "a;b\n1;2\n",
			opts:    []Option{WithComma(';')},
			want:    [][]float64{{1, 2}},
		},
		{
			name:    "malformed row is an error",
			content: "a,b\n1,2\nx,4\n",
			wantErr: true,
		},
		{
			name:    "malformed row skipped",
			content: "a,b\n1,2\nx,4\n5,6\n",
			opts:    []Option{WithSkipMalformed(true)},
			want:    [][]float64{{1, 2}, {5, 6}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(writeFile(t, tt.content), tt.opts...)
			require.NoError(t, err)
			defer r.Close()

			data, err := r.Read()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)
		})
	}
}

func TestReaderHeaders(t *testing.T) {
	r, err := NewReader(writeFile(t, "size,ttl\n1,2\n"))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []string{"size", "ttl"}, r.Headers())
	assert.Equal(t, r.Headers(), r.FeatureNames())

	_, err = NewReader(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReaderStream(t *testing.T) {
	r, err := NewReader(writeFile(t, "a\n1\n2\n3\n"))
	require.NoError(t, err)
	defer r.Close()

	ch, err := r.Stream(context.Background())
	require.NoError(t, err)

	var got [][]float64
	for row := range ch {
		got = append(got, row)
	}
	assert.Equal(t, [][]float64{{1}, {2}, {3}}, got)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, []string{"x", "y"})

	results := gio.Results([][]float64{{1, 2}, {3, 4}}, []float64{0.5, 2.25}, 1)
	require.NoError(t, w.WriteAll(results))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"index,score,is_anomaly,x,y",
		"0,0.5,false,1,2",
		"1,2.25,true,3,4",
	}, lines)
}

func TestCreateWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := CreateWriter(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(gio.Result{Index: 3, Score: 1}))
	require.NoError(t, w.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3,1,false\n", string(content))
}
