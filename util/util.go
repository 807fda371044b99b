package util

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Panics if there is an error, otherwise returns the result
func Try[T any](result T, err error) T {
	CheckErr(err)
	return result
}

// Panics if error is not null
func CheckErr(err error) {
	if err != nil {
		panic(err)
	}
}

// Runs fn and returns how long it took. The clock starts right before the call and stops right
// after it returns, so anything built beforehand is not measured.
func Timed(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}

// Computes a percentile (0-100) from an array
func Percentile(a []float64, p int) float64 {
	if len(a) <= 1 {
		return math.NaN()
	}

	sorted := make([]float64, len(a))
	copy(sorted, a)
	sort.Float64s(sorted)

	r := (float64(p)/100)*float64(len(sorted)) - 1
	if r < 0 {
		return sorted[0]
	}

	if r == float64(int(r)) {
		return sorted[int(r)]
	} else {
		ri := int(r)
		rf := r - float64(ri)
		return sorted[ri] + rf*(sorted[ri+1]-sorted[ri])
	}
}

// Returns the mean of an array, NaN if empty
func Mean(a []float64) float64 {
	if len(a) == 0 {
		return math.NaN()
	}
	var total float64
	for _, x := range a {
		total += x
	}
	return total / float64(len(a))
}

// Splits [0, n) into consecutive [start, end) ranges of at most size elements
func Chunks(n int, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	chunks := [][2]int{}
	for start := 0; start < n; start += size {
		chunks = append(chunks, [2]int{start, min(n, start+size)})
	}
	return chunks
}

// Decodes the top-level section named key of a yaml document into out. Fields already set in out
// act as defaults; a missing section leaves out untouched.
func DecodeSection(configData []byte, key string, out any) error {
	sections := map[string]yaml.Node{}
	if err := yaml.Unmarshal(configData, &sections); err != nil {
		return err
	}
	node, ok := sections[key]
	if !ok {
		return nil
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("section %s: %w", key, err)
	}
	return nil
}
