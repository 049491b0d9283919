package main

import (
	"slices"
	"testing"

	"github.com/givemart/givemart"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		raw     string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"1,2,3", []int{1, 2, 3}, false},
		{" 4 , 5,,", []int{4, 5}, false},
		{"1,two", nil, true},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			got, err := parseIDs(test.raw)
			if (err != nil) != test.wantErr {
				t.Fatalf("parseIDs(%q) error = %v, wantErr %v", test.raw, err, test.wantErr)
			}
			if !slices.Equal(got, test.want) {
				t.Fatalf("parseIDs(%q) = %v, want %v", test.raw, got, test.want)
			}
		})
	}
}

func TestNonprofitLabel(t *testing.T) {
	if got := nonprofitLabel(3, nil); got != "#3" {
		t.Errorf("Got %q", got)
	}
	if got := nonprofitLabel(3, &givemart.NonprofitBrief{ID: 3, Name: "Food Bank"}); got != "Food Bank (#3)" {
		t.Errorf("Got %q", got)
	}
}
