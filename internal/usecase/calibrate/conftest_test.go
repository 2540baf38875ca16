package calibrate

import (
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/mention"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/scoring"
)

func cand(symbol string, simA1 float64, lvl mention.Level) scoring.Candidate {
	return scoring.Candidate{Symbol: symbol, Signals: ranking.Signals{SimA1: simA1, Mention: lvl}}
}

// syntheticDataset has one query answered by embedding similarity and two
// answered only by mention strength, so no single signal wins everything.
func syntheticDataset() *Dataset {
	return &Dataset{
		Universe: []string{"AAA", "BBB", "CCC", "DDD"},
		Queries: []Prepared{
			{
				Text:   "q1",
				Labels: []string{"AAA"},
				Candidates: []scoring.Candidate{
					cand("AAA", 0.9, mention.None),
					cand("BBB", 0.1, mention.Keyword),
					cand("CCC", 0.5, mention.None),
					cand("DDD", 0.4, mention.None),
				},
			},
			{
				Text:   "q2",
				Labels: []string{"BBB"},
				Candidates: []scoring.Candidate{
					cand("AAA", 0.6, mention.None),
					cand("BBB", 0.2, mention.Alias),
					cand("CCC", 0.3, mention.None),
					cand("DDD", 0.1, mention.None),
				},
			},
			{
				Text:   "q3",
				Labels: []string{"DDD", "ZZZ"},
				Candidates: []scoring.Candidate{
					cand("AAA", 0.7, mention.None),
					cand("BBB", 0.6, mention.None),
					cand("CCC", 0.5, mention.None),
					cand("DDD", 0.05, mention.Symbol),
				},
			},
			{
				Text:       "no candidates",
				Labels:     []string{"AAA"},
				Candidates: nil,
			},
		},
	}
}
