package query

// Split names a validation partition.
const (
	SplitTrain = "train"
	SplitValid = "valid"
	SplitTest  = "test"
)

// Labelled is a validation query: a text and the symbols it is about.
type Labelled struct {
	Text   string
	Labels []string
	Split  string
	Source string
}

// HasLabel reports whether symbol is one of the ground-truth labels.
func (l *Labelled) HasLabel(symbol string) bool {
	for _, s := range l.Labels {
		if s == symbol {
			return true
		}
	}
	return false
}
