package vector

import (
	"errors"
	"fmt"
)

// ErrEmbedding wraps failures to compute an embedding.
var ErrEmbedding = errors.New("embedding failed")

// DimensionError reports an embedding whose length does not match the index.
type DimensionError struct {
	Want, Got int
}

func (e DimensionError) Error() string {
	return fmt.Sprintf("embedding has %d dimensions, index expects %d", e.Got, e.Want)
}
