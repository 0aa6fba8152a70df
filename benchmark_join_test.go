package jointab

import (
	"fmt"
	"math/rand"
	"testing"
)

// ============================================================================
// Join Benchmarks
// Run with: go test -bench=BenchmarkJoin -benchmem
// ============================================================================

// makeJoinBenchData creates a left table of n rows over n/10 keys and a
// lookup tab holding each key once.
func makeJoinBenchData(n int) (*DataFrame, *DataFrame) {
	r := rand.New(rand.NewSource(42))
	numKeys := n / 10

	leftIds := make([]int64, n)
	leftVals := make([]float64, n)
	for i := 0; i < n; i++ {
		leftIds[i] = int64(r.Intn(numKeys))
		leftVals[i] = r.NormFloat64()
	}

	rightIds := make([]int64, numKeys)
	rightVals := make([]float64, numKeys)
	regions := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		rightIds[i] = int64(i)
		rightVals[i] = r.NormFloat64()
		regions[i] = fmt.Sprintf("region-%d", i%50)
	}

	left, _ := NewDataFrame(
		NewSeriesInt64("id", leftIds),
		NewSeriesFloat64("left_val", leftVals),
	)

	right, _ := NewDataFrame(
		NewSeriesInt64("id", rightIds),
		NewSeriesFloat64("right_val", rightVals),
		NewSeriesCategorical("region", regions),
	)

	return left, right
}

func benchmarkMerge(b *testing.B, n int, how JoinType) {
	left, right := makeJoinBenchData(n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := left.Merge(right, On("id").WithHow(how)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJoin_Inner_10K(b *testing.B)  { benchmarkMerge(b, 10_000, InnerJoin) }
func BenchmarkJoin_Inner_100K(b *testing.B) { benchmarkMerge(b, 100_000, InnerJoin) }
func BenchmarkJoin_Inner_1M(b *testing.B)   { benchmarkMerge(b, 1_000_000, InnerJoin) }
func BenchmarkJoin_Left_10K(b *testing.B)   { benchmarkMerge(b, 10_000, LeftJoin) }
func BenchmarkJoin_Left_100K(b *testing.B)  { benchmarkMerge(b, 100_000, LeftJoin) }
func BenchmarkJoin_Left_1M(b *testing.B)    { benchmarkMerge(b, 1_000_000, LeftJoin) }
func BenchmarkJoin_Right_100K(b *testing.B) { benchmarkMerge(b, 100_000, RightJoin) }

func BenchmarkJoin_CategoricalKey_100K(b *testing.B) {
	left, right := makeJoinBenchData(100_000)
	keys := make([]string, left.Height())
	for i, id := range left.ColumnByName("id").Int64() {
		keys[i] = fmt.Sprintf("k%d", id%500)
	}
	left, _ = left.WithColumn(NewSeriesCategorical("key", keys))
	rightKeys := make([]string, 500)
	for i := range rightKeys {
		rightKeys[i] = fmt.Sprintf("k%d", i)
	}
	right, _ = NewDataFrame(
		NewSeriesCategorical("key", rightKeys),
		right.ColumnByName("region").Slice(0, 500),
	)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := left.LeftJoin(right, On("key")); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJoin_Render_100K(b *testing.B) {
	left, right := makeJoinBenchData(100_000)
	tab, err := NewTabOutput("tab-bench", "Bench", right, map[string]string{"right_val": "{:,.2f}"})
	if err != nil {
		b.Fatal(err)
	}
	params := JoinParams{
		RightTab:    tab,
		JoinColumns: JoinColumns{On: []string{"id"}, RightAll: true},
		Type:        LeftJoin,
	}
	columns := RenderColumnsOf(left, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Render(left, params, columns); err != nil {
			b.Fatal(err)
		}
	}
}
