package matching

import (
	"hash/fnv"
	"math"

	pgvector "github.com/pgvector/pgvector-go"
)

// VectorDimensions matches the vector(64) column on products.
const VectorDimensions = 64

// NameVector embeds a name as L2-normalized counts of hashed character trigrams,
// so cosine distance approximates spelling similarity.
func NameVector(name string) pgvector.Vector {
	vec := make([]float32, VectorDimensions)
	padded := []rune(" " + foldName(name) + " ")
	if len(padded) > 2 {
		for i := 0; i+3 <= len(padded); i++ {
			h := fnv.New32a()
			h.Write([]byte(string(padded[i : i+3])))
			vec[h.Sum32()%VectorDimensions]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return pgvector.NewVector(vec)
}
