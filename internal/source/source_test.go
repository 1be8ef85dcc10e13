package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/internal/testutil"
	"github.com/leapstack-labs/legacyscan/pkg/core"
)

func TestLoader_Load(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"jobs/load.py":              "from pyspark.sql import SparkSession\nspark.table('x')\n",
		"jobs/util.py":              "import os\n",
		"sql/mart.hql":              "INSERT INTO t SELECT * FROM s;\n",
		"sql/big.sql":               "SELECT 1 FROM a_rather_long_table_name, another_rather_long_table_name;\n",
		"bin/run.sh":                "hive -f sql/mart.hql\n",
		"docs/readme.md":            "# not scanned\n",
		".git/config.conf":          "x=1\n",
		"node_modules/pkg/index.py": "x = 1\n",
		"build/gen/out.sql":         "SELECT 1;\n",
		"jobs/__pycache__/a.py":     "x = 1\n",
		"notes/tmp_scratch.txt":     "scratch\n",
	})

	l := NewLoader(Options{
		Exclude:     []string{"build/**", "tmp_*.txt"},
		MaxFileSize: 64,
		Logger:      testutil.NewTestLogger(t),
	})
	set, err := l.Load(context.Background(), root)
	require.NoError(t, err)

	var paths []string
	langs := map[string]core.Language{}
	for _, f := range set.Files {
		paths = append(paths, f.Path)
		langs[f.Path] = f.Language
		assert.NotZero(t, f.Hash)
	}
	assert.Equal(t, []string{"bin/run.sh", "jobs/load.py", "jobs/util.py", "sql/mart.hql"}, paths)
	assert.Equal(t, core.LangPySpark, langs["jobs/load.py"])
	assert.Equal(t, core.LangPython, langs["jobs/util.py"])
	assert.Equal(t, core.LangHQL, langs["sql/mart.hql"])

	require.Len(t, set.Diagnostics, 1)
	assert.Equal(t, core.UnreadableFile, set.Diagnostics[0].Kind)
	assert.Equal(t, "sql/big.sql", set.Diagnostics[0].Path)
	assert.Equal(t, 1, set.Unsupported)
	assert.GreaterOrEqual(t, set.Excluded, 4)
}

func TestLoader_Errors(t *testing.T) {
	_, err := NewLoader(Options{}).Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = NewLoader(Options{Exclude: []string{"[bad"}}).Load(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		pattern string
		wantErr bool
	}{
		{pattern: "**/vendor/**"},
		{pattern: "tmp_*.txt"},
		{pattern: "build/{a,b}/*.sql"},
		{pattern: "[", wantErr: true},
		{pattern: "[bad", wantErr: true},
		{pattern: "a[bad", wantErr: true},
		{pattern: "sql/x[", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			err := ValidatePattern(tt.pattern)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoader_Cancelled(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"a.sql": "SELECT 1;\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(Options{}).Load(ctx, root)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("caf\xc3\xa9"), "café"},
		{"utf8 bom", []byte("\xef\xbb\xbfSELECT 1"), "SELECT 1"},
		{"utf16le bom", []byte{0xFF, 0xFE, 'o', 0, 'k', 0}, "ok"},
		{"windows-1252", []byte("caf\xe9 \x93q\x94"), "café “q”"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.in))
		})
	}
}

func TestNewFile(t *testing.T) {
	f, ok := NewFile("etl/job.py", []byte("spark = SparkSession.builder.getOrCreate()\n"))
	require.True(t, ok)
	assert.Equal(t, core.LangPySpark, f.Language)
	assert.Equal(t, Hash([]byte("spark = SparkSession.builder.getOrCreate()\n")), f.Hash)

	_, ok = NewFile("x.md", []byte("hi"))
	assert.False(t, ok)

	assert.NotEqual(t, Hash([]byte("a")), Hash([]byte("b")))
}
