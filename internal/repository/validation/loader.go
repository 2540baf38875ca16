// Package validation loads labelled queries used to calibrate and evaluate ranking weights.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/query"
)

// universe answers whether a symbol belongs to the catalog.
type universe interface {
	Has(symbol string) bool
}

// Options filters loaded records.
type Options struct {
	// Split keeps only records of this split. Empty keeps every split.
	Split string
	// MaxPerSource caps the records kept per file. Zero means unlimited.
	MaxPerSource int
}

type record struct {
	Description string   `json:"description"`
	SP500Labels []string `json:"sp500_labels"`
	Tickers     []string `json:"tickers"`
	Split       string   `json:"split"`
}

// Load reads JSON arrays of {description, sp500_labels|tickers, split} from paths.
// Labels are upper-cased and restricted to u; records left without a
// description or labels are dropped. A missing split means "train".
// Missing files are skipped with a warning.
func Load(paths []string, u universe, opts Options, logger *zap.Logger) ([]query.Labelled, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var out []query.Labelled
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("Validation file not found", zap.String("path", p))
				continue
			}
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var recs []record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}

		source := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		kept, dropped := 0, 0
		for _, r := range recs {
			l, ok := normalize(r, u, source)
			if !ok {
				dropped++
				continue
			}
			if opts.Split != "" && l.Split != opts.Split {
				continue
			}
			out = append(out, l)
			kept++
			if opts.MaxPerSource > 0 && kept >= opts.MaxPerSource {
				break
			}
		}
		logger.Info("Validation file loaded",
			zap.String("source", source),
			zap.Int("kept", kept),
			zap.Int("dropped", dropped),
		)
	}

	if len(out) == 0 {
		return nil, domain.ErrEmptyValidationSet
	}
	return out, nil
}

func normalize(r record, u universe, source string) (query.Labelled, bool) {
	text := strings.Join(strings.Fields(r.Description), " ")
	if text == "" {
		return query.Labelled{}, false
	}

	raw := r.SP500Labels
	if raw == nil {
		raw = r.Tickers
	}
	seen := make(map[string]struct{}, len(raw))
	labels := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || !u.Has(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		labels = append(labels, t)
	}
	if len(labels) == 0 {
		return query.Labelled{}, false
	}

	split := strings.ToLower(strings.TrimSpace(r.Split))
	if split == "" {
		split = query.SplitTrain
	}
	return query.Labelled{Text: text, Labels: labels, Split: split, Source: source}, true
}

// SymbolSet is a universe backed by a plain set.
type SymbolSet map[string]struct{}

// NewSymbolSet builds a universe from symbols.
func NewSymbolSet(symbols []string) SymbolSet {
	s := make(SymbolSet, len(symbols))
	for _, sym := range symbols {
		s[sym] = struct{}{}
	}
	return s
}

// Has implements universe.
func (s SymbolSet) Has(symbol string) bool {
	_, ok := s[symbol]
	return ok
}
