package shuffle

import (
	"reflect"
	"sort"
	"strconv"
	"testing"
)

func TestShuffle_PinnedResults(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		seed  string
		want  []string
	}{
		{"four letters", []string{"A", "B", "C", "D"}, "test", []string{"C", "A", "D", "B"}},
		{"five letters", []string{"A", "B", "C", "D", "E"}, "lucky", []string{"C", "B", "E", "D", "A"}},
		{"utf-8 seed and names", []string{"甲", "乙", "丙"}, "抽獎", []string{"丙", "乙", "甲"}},
		{"ten digits seed 1", digits(10), "1", []string{"2", "5", "9", "3", "6", "8", "0", "1", "4", "7"}},
		{"ten digits seed 2", digits(10), "2", []string{"0", "5", "7", "2", "9", "4", "1", "6", "8", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shuffle(tt.items, tt.seed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Shuffle(%v, %q) = %v, want %v", tt.items, tt.seed, got, tt.want)
			}
		})
	}
}

func TestShuffle_DigestBytesRepeatBeyond32(t *testing.T) {
	items := make([]int, 40)
	for i := range items {
		items[i] = i
	}
	want := []int{26, 28, 39, 12, 22, 0, 37, 31, 19, 10, 7, 8, 14, 13, 35, 32, 11, 36, 16, 20,
		6, 24, 30, 2, 27, 38, 29, 18, 3, 5, 21, 17, 34, 33, 9, 1, 15, 4, 25, 23}

	got := Shuffle(items, "big")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Shuffle over 40 items = %v, want %v", got, want)
	}
}

func TestShuffle_Deterministic(t *testing.T) {
	items := digits(25)
	for _, seed := range []string{"", "a", "1700000000000", "尾牙"} {
		first := Shuffle(items, seed)
		second := Shuffle(items, seed)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("seed %q: got %v then %v", seed, first, second)
		}
	}
}

func TestShuffle_IsPermutationAndDoesNotMutate(t *testing.T) {
	items := []string{"Ann", "Bob", "Ann", "Cid", "Dee", "Bob", "Eve"}
	original := append([]string(nil), items...)

	got := Shuffle(items, "dup")

	if !reflect.DeepEqual(items, original) {
		t.Fatalf("input was modified: %v", items)
	}
	if len(got) != len(items) {
		t.Fatalf("expected length %d, got %d", len(items), len(got))
	}
	sortedGot := append([]string(nil), got...)
	sort.Strings(sortedGot)
	sort.Strings(original)
	if !reflect.DeepEqual(sortedGot, original) {
		t.Errorf("result is not a permutation: %v", got)
	}
}

func TestShuffle_SeedSensitivity(t *testing.T) {
	items := digits(10)
	if reflect.DeepEqual(Shuffle(items, "1"), Shuffle(items, "2")) {
		t.Errorf("seeds 1 and 2 produced the same ordering")
	}
}

func TestShuffle_SmallInputs(t *testing.T) {
	if got := Shuffle([]string{}, "x"); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	if got := Shuffle([]string{"solo"}, "x"); !reflect.DeepEqual(got, []string{"solo"}) {
		t.Errorf("expected [solo], got %v", got)
	}
}

func TestWinners(t *testing.T) {
	items := []string{"A", "B", "C", "D"}

	if got := Winners(items, "test", 2); !reflect.DeepEqual(got, []string{"C", "A"}) {
		t.Errorf("Winners(2) = %v, want [C A]", got)
	}
	if got := Winners(items, "test", 9); len(got) != 4 {
		t.Errorf("expected clamp to 4, got %d", len(got))
	}
	if got := Winners(items, "test", -1); len(got) != 0 {
		t.Errorf("expected no winners, got %v", got)
	}
}

func digits(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}
