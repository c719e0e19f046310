package vector

// Embedding is either a usable vector (Present) or nothing (Absent).
//
// Documents reach the organizer with embeddings of uneven quality: never
// generated, generated empty, or generated as all zeros by a failing model.
// All three collapse into Absent here, so the rest of the pipeline only has
// to ask one question.
//
// The zero value is Absent.
type Embedding struct {
	values []float32
}

// Present wraps v as an Embedding. An empty or all-zero v yields Absent.
// The slice is not copied.
func Present(v []float32) Embedding {
	if len(v) == 0 || IsZero(v) {
		return Embedding{}
	}
	return Embedding{values: v}
}

// Absent returns the empty Embedding.
func Absent() Embedding {
	return Embedding{}
}

// Vector returns the wrapped vector and true, or nil and false if Absent.
func (e Embedding) Vector() ([]float32, bool) {
	if e.values == nil {
		return nil, false
	}
	return e.values, true
}

// IsPresent reports whether the embedding carries a usable vector.
func (e Embedding) IsPresent() bool {
	return e.values != nil
}

// Dimensions returns the vector length, or 0 if Absent.
func (e Embedding) Dimensions() int {
	return len(e.values)
}
