//go:build linux

package dispatch

import "testing"

func TestParseCPUList(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"3", []int{3}},
		{"0,2", []int{0, 2}},
		{"2-4", []int{2, 3, 4}},
		{"1,4-6,9", []int{1, 4, 5, 6, 9}},
		{"garbage", nil},
	}
	for _, c := range cases {
		got := parseCPUList(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("parseCPUList(%q) = %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("parseCPUList(%q) = %v, want %v", c.in, got, c.want)
			}
		}
	}
}
