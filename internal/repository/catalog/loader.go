// Package catalog loads the entity universe from CSV, keyword JSON files and an aliases YAML file.
package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
)

// Sources points at the catalog inputs. Only CSVPath is required.
type Sources struct {
	CSVPath     string
	KeywordDir  string
	IndustryDir string
	AliasesPath string
}

// Loader builds an entity.Catalog from files on disk.
type Loader struct {
	src     Sources
	stop    terms.Set
	generic terms.Set
	logger  *zap.Logger
}

// NewLoader creates a catalog loader using the default stopword and generic-term lists.
func NewLoader(src Sources, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		src:     src,
		stop:    terms.DefaultStopwords(),
		generic: terms.DefaultGenericTerms(),
		logger:  logger,
	}
}

type companyRow struct {
	symbol   string
	name     string
	industry string
}

type keywordProfile struct {
	static  []string
	dynamic []string
}

// Load reads every source and returns a validated catalog.
// Keyword, industry and alias entries for symbols absent from the CSV are ignored.
func (l *Loader) Load() (*entity.Catalog, error) {
	rows, err := l.readCompanies()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", l.src.CSVPath, domain.ErrEmptyCatalog)
	}

	keywords, err := l.readKeywordProfiles()
	if err != nil {
		return nil, err
	}
	industry, err := l.readIndustryKeywords()
	if err != nil {
		return nil, err
	}
	aliases, err := l.readAliases()
	if err != nil {
		return nil, err
	}

	entities := make([]entity.Entity, 0, len(rows))
	for _, row := range rows {
		kp := keywords[row.symbol]
		e, err := entity.New(entity.Params{
			Symbol:          row.symbol,
			Name:            row.name,
			Aliases:         aliases[row.symbol],
			IndustryGroup:   row.industry,
			StaticKeywords:  kp.static,
			DynamicKeywords: kp.dynamic,
			Stopwords:       l.stop,
			GenericTerms:    l.generic,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCatalog, err)
		}
		entities = append(entities, e)
	}

	cat, err := entity.NewCatalog(entities, industry)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	l.logger.Info("Catalog loaded",
		zap.Int("entities", cat.Len()),
		zap.Int("keyword_profiles", len(keywords)),
		zap.Int("industry_groups", len(industry)),
	)
	return cat, nil
}

// readCompanies parses the company CSV. The name column is "security",
// then "company_name", falling back to the symbol itself.
func (l *Loader) readCompanies() ([]companyRow, error) {
	f, err := os.Open(l.src.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer f.Close()
	return parseCompanies(f)
}

func parseCompanies(r io.Reader) ([]companyRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %w", domain.ErrInvalidCatalog, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	symbolCol, ok := cols["ticker"]
	if !ok {
		return nil, fmt.Errorf("%w: csv has no ticker column", domain.ErrInvalidCatalog)
	}
	nameCol := -1
	for _, c := range []string{"security", "company_name"} {
		if i, ok := cols[c]; ok {
			nameCol = i
			break
		}
	}
	industryCol, hasIndustry := cols["industry_group"]

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []companyRow
	seen := make(map[string]struct{})
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv: %w", domain.ErrInvalidCatalog, err)
		}
		symbol := strings.ToUpper(field(rec, symbolCol))
		if symbol == "" {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		name := field(rec, nameCol)
		if name == "" {
			name = symbol
		}
		row := companyRow{symbol: symbol, name: name}
		if hasIndustry {
			row.industry = field(rec, industryCol)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type keywordFile struct {
	Ticker          string   `json:"ticker"`
	StaticKeywords  []string `json:"static_keywords"`
	Static          []string `json:"static"`
	DynamicKeywords []string `json:"dynamic_keywords"`
	Dynamic         []string `json:"dynamic"`
}

// readKeywordProfiles reads every *_keyword.json file in KeywordDir.
func (l *Loader) readKeywordProfiles() (map[string]keywordProfile, error) {
	out := make(map[string]keywordProfile)
	paths, err := l.glob(l.src.KeywordDir, "*_keyword.json")
	if err != nil || paths == nil {
		return out, err
	}
	for _, p := range paths {
		var kf keywordFile
		if err := readJSON(p, &kf); err != nil {
			return nil, err
		}
		symbol := strings.ToUpper(strings.TrimSpace(kf.Ticker))
		if symbol == "" {
			l.logger.Warn("Keyword file without ticker skipped", zap.String("path", p))
			continue
		}
		static := kf.StaticKeywords
		if len(static) == 0 {
			static = kf.Static
		}
		dynamic := kf.DynamicKeywords
		if len(dynamic) == 0 {
			dynamic = kf.Dynamic
		}
		out[symbol] = keywordProfile{static: static, dynamic: dynamic}
	}
	return out, nil
}

type industryFile struct {
	IndustryGroup string   `json:"industry_group"`
	Keywords      []string `json:"keywords"`
}

// readIndustryKeywords reads every *.json file in IndustryDir.
func (l *Loader) readIndustryKeywords() (map[string][]string, error) {
	out := make(map[string][]string)
	paths, err := l.glob(l.src.IndustryDir, "*.json")
	if err != nil || paths == nil {
		return out, err
	}
	for _, p := range paths {
		var f industryFile
		if err := readJSON(p, &f); err != nil {
			return nil, err
		}
		if strings.TrimSpace(f.IndustryGroup) == "" {
			l.logger.Warn("Industry file without group skipped", zap.String("path", p))
			continue
		}
		out[f.IndustryGroup] = append(out[f.IndustryGroup], f.Keywords...)
	}
	return out, nil
}

// readAliases reads the aliases YAML (symbol -> list of aliases).
// Without a configured path the built-in alias table is used.
func (l *Loader) readAliases() (map[string][]string, error) {
	if l.src.AliasesPath == "" {
		return DefaultAliases(), nil
	}
	data, err := os.ReadFile(l.src.AliasesPath)
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	raw := make(map[string][]string)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse aliases %s: %w", domain.ErrInvalidCatalog, l.src.AliasesPath, err)
	}
	out := make(map[string][]string, len(raw))
	for symbol, list := range raw {
		key := strings.ToUpper(strings.TrimSpace(symbol))
		out[key] = append(out[key], list...)
	}
	return out, nil
}

// glob lists matching files in sorted order. A blank or missing directory yields nil.
func (l *Loader) glob(dir, pattern string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Catalog directory not found", zap.String("dir", dir))
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidCatalog, path, err)
	}
	return nil
}

// DefaultAliases returns brand and product aliases for a handful of large issuers.
func DefaultAliases() map[string][]string {
	google := []string{"google", "android", "youtube", "gmail", "pixel", "waymo"}
	return map[string][]string{
		"AAPL":  {"apple", "iphone", "ipad", "macbook", "ios", "imac"},
		"GOOGL": google,
		"GOOG":  append([]string(nil), google...),
		"META":  {"facebook", "instagram", "whatsapp", "oculus", "meta"},
		"AMZN":  {"amazon", "aws", "prime video", "prime", "alexa"},
		"TSLA":  {"tesla", "model 3", "model y", "cybertruck", "roadster"},
		"NVDA":  {"nvidia", "geforce", "rtx", "cuda"},
	}
}
