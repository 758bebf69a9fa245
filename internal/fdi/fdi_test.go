package fdi

import (
	"reflect"
	"testing"

	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

func TestExtract_CanonicalRange(t *testing.T) {
	got := Extract("11-17")
	want := []int{11, 12, 13, 14, 15, 16, 17}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestExtract_ReversedRange(t *testing.T) {
	got := Extract("47-44")
	want := []int{47, 46, 45, 44}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestExtract_DateNeverMatches(t *testing.T) {
	if got := Extract("2025-07-24"); len(got) != 0 {
		t.Errorf("Expected no teeth from a date string, got %v", got)
	}
}

func TestExtract_SinglesAndDedup(t *testing.T) {
	got := Extract("크라운 11, 13 and 11 again")
	want := []int{11, 13}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestExtract_UpperRightRangeWalksDown(t *testing.T) {
	got := Extract("18-14")
	want := []int{18, 17, 16, 15, 14}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestExtract_ChainedRangeFilename(t *testing.T) {
	got := Extract("31-41-42-modelbase")
	if jaw := DetermineJaw(got); jaw != models.JawLower {
		t.Errorf("Expected lower jaw from %v, got %s", got, jaw)
	}
}

func TestExtract_QuantityDoesNotMatch(t *testing.T) {
	// 5 and 120 are outside the FDI numeric set entirely.
	if got := Extract("qty 5 of 120 units"); len(got) != 0 {
		t.Errorf("Expected no teeth, got %v", got)
	}
}

func TestExtract_IdempotentOnOwnOutput(t *testing.T) {
	first := Extract("11-13")
	text := ""
	for i, tooth := range first {
		if i > 0 {
			text += " "
		}
		text += string(rune('0'+tooth/10)) + string(rune('0'+tooth%10))
	}
	second := Extract(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected idempotent extraction, first %v second %v", first, second)
	}
}

func TestDetermineJaw(t *testing.T) {
	cases := []struct {
		teeth []int
		want  models.Jaw
	}{
		{nil, models.JawMixed},
		{[]int{11, 21}, models.JawUpper},
		{[]int{31, 48}, models.JawLower},
		{[]int{11, 31}, models.JawMixed},
	}
	for _, c := range cases {
		if got := DetermineJaw(c.teeth); got != c.want {
			t.Errorf("DetermineJaw(%v): Expected %s, got %s", c.teeth, c.want, got)
		}
	}
}

func TestInferJawFromString(t *testing.T) {
	cases := []struct {
		in   string
		want models.Jaw
	}{
		{"상악 스캔", models.JawUpper},
		{"하악 모델", models.JawLower},
		{"UpperJaw_scan", models.JawUpper},
		{"mandible-base", models.JawLower},
		{"case 34 36", models.JawLower},
		{"nothing here", ""},
	}
	for _, c := range cases {
		if got := InferJawFromString(c.in); got != c.want {
			t.Errorf("InferJawFromString(%q): Expected %q, got %q", c.in, c.want, got)
		}
	}
}
