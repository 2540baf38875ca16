package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixture(t *testing.T) Sources {
	t.Helper()
	dir := t.TempDir()
	src := Sources{
		CSVPath:     filepath.Join(dir, "sp500.csv"),
		KeywordDir:  filepath.Join(dir, "keywords"),
		IndustryDir: filepath.Join(dir, "industry"),
	}
	writeFile(t, src.CSVPath, strings.Join([]string{
		"ticker,security,industry_group",
		"TSLA,\"Tesla, Inc.\",Automobiles & Components",
		"F,Ford Motor Company,Automobiles & Components",
		"aapl,Apple Inc.,Technology Hardware & Equipment",
		"TSLA,Duplicate Row,Ignored",
		",Missing Symbol,Ignored",
	}, "\n"))
	writeFile(t, filepath.Join(src.KeywordDir, "TSLA_keyword.json"),
		`{"ticker":"TSLA","static_keywords":["Electric Vehicle","Tech"],"dynamic_keywords":["cybertruck"]}`)
	writeFile(t, filepath.Join(src.KeywordDir, "F_keyword.json"),
		`{"ticker":"F","static":["pickup"],"dynamic":["mustang"]}`)
	writeFile(t, filepath.Join(src.KeywordDir, "ZZZZ_keyword.json"),
		`{"ticker":"ZZZZ","static_keywords":["unknown"]}`)
	writeFile(t, filepath.Join(src.KeywordDir, "notes.txt"), `ignored`)
	writeFile(t, filepath.Join(src.IndustryDir, "autos.json"),
		`{"industry_group":"Automobiles & Components","keywords":["ev","electric vehicle","car"]}`)
	return src
}

func TestLoader_Load(t *testing.T) {
	cat, err := NewLoader(fixture(t), nil).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "F", "TSLA"}, cat.Symbols())

	tsla, ok := cat.Get("TSLA")
	require.True(t, ok)
	assert.Equal(t, "Tesla, Inc.", tsla.Name())
	assert.Equal(t, []string{"tesla"}, tsla.NameKeywords().Sorted())
	assert.Equal(t, []string{"cybertruck", "electric vehicle"}, tsla.KeywordProfile().Sorted(),
		"generic terms are dropped at ingestion")
	assert.True(t, tsla.Aliases().Has("cybertruck"), "default aliases apply without an aliases file")

	f, ok := cat.Get("F")
	require.True(t, ok)
	assert.Equal(t, []string{"mustang", "pickup"}, f.KeywordProfile().Sorted())
	assert.Equal(t, []string{"ford", "motor"}, f.NameKeywords().Sorted())

	assert.True(t, cat.IndustryKeywords("automobiles & components").Has("ev"))
	_, ok = cat.Get("ZZZZ")
	assert.False(t, ok)
}

func TestLoader_AliasesFile(t *testing.T) {
	src := fixture(t)
	src.AliasesPath = filepath.Join(filepath.Dir(src.CSVPath), "aliases.yaml")
	writeFile(t, src.AliasesPath, "tsla:\n  - Tesla Motors\nF:\n  - blue oval\n")

	cat, err := NewLoader(src, nil).Load()
	require.NoError(t, err)

	tsla, _ := cat.Get("TSLA")
	assert.Equal(t, []string{"tesla motors"}, tsla.Aliases().Sorted())
	f, _ := cat.Get("F")
	assert.True(t, f.Aliases().Has("blue oval"))
}

func TestLoader_MissingDirectoriesAreOptional(t *testing.T) {
	src := fixture(t)
	src.KeywordDir = filepath.Join(t.TempDir(), "absent")
	src.IndustryDir = ""

	cat, err := NewLoader(src, nil).Load()
	require.NoError(t, err)
	tsla, _ := cat.Get("TSLA")
	assert.Equal(t, 0, tsla.KeywordProfile().Len())
	assert.Nil(t, cat.IndustryKeywords("Automobiles & Components"))
}

func TestLoader_Errors(t *testing.T) {
	t.Run("missing csv", func(t *testing.T) {
		_, err := NewLoader(Sources{CSVPath: filepath.Join(t.TempDir(), "none.csv")}, nil).Load()
		require.Error(t, err)
	})

	t.Run("no ticker column", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "bad.csv")
		writeFile(t, p, "symbol,name\nTSLA,Tesla\n")
		_, err := NewLoader(Sources{CSVPath: p}, nil).Load()
		require.ErrorIs(t, err, domain.ErrInvalidCatalog)
	})

	t.Run("header only", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "empty.csv")
		writeFile(t, p, "ticker,security\n")
		_, err := NewLoader(Sources{CSVPath: p}, nil).Load()
		require.ErrorIs(t, err, domain.ErrEmptyCatalog)
	})

	t.Run("malformed keyword json", func(t *testing.T) {
		src := fixture(t)
		writeFile(t, filepath.Join(src.KeywordDir, "BAD_keyword.json"), "{")
		_, err := NewLoader(src, nil).Load()
		require.ErrorIs(t, err, domain.ErrInvalidCatalog)
	})
}

func TestParseCompanies_NameFallbacks(t *testing.T) {
	rows, err := parseCompanies(strings.NewReader("\ufeffTicker,company_name\nmsft,Microsoft Corporation\nxyz,\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, companyRow{symbol: "MSFT", name: "Microsoft Corporation"}, rows[0])
	assert.Equal(t, "XYZ", rows[1].name)
}
