package entity

import "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"

// EmbeddingRecord holds the four per-entity vectors: primary and secondary
// profile, each in both embedding spaces.
type EmbeddingRecord struct {
	PrimaryA   []float32
	PrimaryB   []float32
	SecondaryA []float32
	SecondaryB []float32
}

// Complete reports whether all four vectors are present. Only complete
// records are scoreable.
func (r EmbeddingRecord) Complete() bool {
	return len(r.PrimaryA) > 0 && len(r.PrimaryB) > 0 &&
		len(r.SecondaryA) > 0 && len(r.SecondaryB) > 0
}

// Vector returns the vector for a profile/space pair, or nil.
func (r EmbeddingRecord) Vector(p domain.Profile, s domain.Space) []float32 {
	switch {
	case p == domain.ProfilePrimary && s == domain.SpaceA:
		return r.PrimaryA
	case p == domain.ProfilePrimary && s == domain.SpaceB:
		return r.PrimaryB
	case p == domain.ProfileSecondary && s == domain.SpaceA:
		return r.SecondaryA
	case p == domain.ProfileSecondary && s == domain.SpaceB:
		return r.SecondaryB
	}
	return nil
}

// Set stores v for a profile/space pair. Unknown pairs are ignored.
func (r *EmbeddingRecord) Set(p domain.Profile, s domain.Space, v []float32) {
	switch {
	case p == domain.ProfilePrimary && s == domain.SpaceA:
		r.PrimaryA = v
	case p == domain.ProfilePrimary && s == domain.SpaceB:
		r.PrimaryB = v
	case p == domain.ProfileSecondary && s == domain.SpaceA:
		r.SecondaryA = v
	case p == domain.ProfileSecondary && s == domain.SpaceB:
		r.SecondaryB = v
	}
}

// Neighbor is one approximate-nearest-neighbour hit from the vector index.
type Neighbor struct {
	Symbol     string
	Similarity float64
}
