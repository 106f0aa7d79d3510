package main

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func record(tags map[string]string) *PhotoMetadata {
	return &PhotoMetadata{Path: fmt.Sprintf("%p.jpg", &tags), Tags: tags}
}

func camera(mk, model string) *PhotoMetadata {
	return record(map[string]string{TagMake: mk, TagModel: model})
}

func TestRankedFrequencyTopFivePlusOther(t *testing.T) {
	var records []*PhotoMetadata
	counts := []int{10, 8, 5, 3, 2, 1, 1}
	for i, n := range counts {
		for j := 0; j < n; j++ {
			records = append(records, camera("Acme", fmt.Sprintf("M%d", i+1)))
		}
	}

	table := RankedFrequency(records, CameraRule, 5)

	want := FrequencyTable{
		{Label: "Acme M1", Count: 10},
		{Label: "Acme M2", Count: 8},
		{Label: "Acme M3", Count: 5},
		{Label: "Acme M4", Count: 3},
		{Label: "Acme M5", Count: 2},
		{Label: OtherLabel, Count: 2},
	}
	if len(table) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(table), table)
	}
	for i := range want {
		if table[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], table[i])
		}
	}
	if table.Total() != 30 {
		t.Errorf("expected total 30, got %d", table.Total())
	}
}

func TestRankedFrequencyFewLabels(t *testing.T) {
	records := []*PhotoMetadata{
		camera("Canon", "EOS R5"),
		camera("Canon", "EOS R5"),
		camera("FUJIFILM", "X-T4"),
	}

	table := RankedFrequency(records, CameraRule, 5)
	if len(table) != 3 {
		t.Fatalf("expected 3 entries, got %v", table)
	}
	last := table[len(table)-1]
	if last.Label != OtherLabel || last.Count != 0 {
		t.Fatalf("expected trailing other=0, got %+v", last)
	}
	if table[0].Label != "Canon EOS R5" || table[0].Count != 2 {
		t.Fatalf("unexpected first entry %+v", table[0])
	}
}

func TestRankedFrequencyNoRecords(t *testing.T) {
	table := RankedFrequency(nil, LensRule, 5)
	if len(table) != 1 || table[0] != (FrequencyEntry{Label: OtherLabel, Count: 0}) {
		t.Fatalf("expected only other=0, got %v", table)
	}
}

func TestRankedFrequencyCountsOnlyRecordsWithField(t *testing.T) {
	records := []*PhotoMetadata{
		record(map[string]string{TagLensModel: "35mm F1.4"}),
		record(map[string]string{TagLensModel: "50mm F1.8"}),
		record(map[string]string{TagLensModel: "  "}),
		record(map[string]string{TagMake: "Leica"}),
		record(map[string]string{TagLensModel: "35mm F1.4"}),
	}

	table := RankedFrequency(records, LensRule, 5)
	if table.Total() != 3 {
		t.Fatalf("expected 3 counted records, got %d (%v)", table.Total(), table)
	}
	if len(table) > 6 {
		t.Fatalf("table exceeds six entries: %v", table)
	}
}

func TestRankedFrequencyTiesKeepFirstSeenOrder(t *testing.T) {
	records := []*PhotoMetadata{
		camera("Sony", "A7"),
		camera("Nikon", "Z6"),
		camera("Nikon", "Z6"),
		camera("Sony", "A7"),
		camera("Pentax", "K1"),
	}

	table := RankedFrequency(records, CameraRule, 2)
	got := table.Labels()
	want := []string{"Sony A7", "Nikon Z6", OtherLabel}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if table[2].Count != 1 {
		t.Fatalf("expected other=1, got %d", table[2].Count)
	}
}

func TestRankedFrequencyDefaultsTopN(t *testing.T) {
	var records []*PhotoMetadata
	for i := 0; i < 8; i++ {
		records = append(records, camera("Acme", fmt.Sprintf("M%d", i)))
	}
	if table := RankedFrequency(records, CameraRule, 0); len(table) != DefaultTopN+1 {
		t.Fatalf("expected %d entries, got %d", DefaultTopN+1, len(table))
	}
}

func TestCameraLabel(t *testing.T) {
	cases := []struct {
		mk, model string
		want      string
		ok        bool
	}{
		{mk: "Canon", model: "Canon EOS R5", want: "Canon EOS R5", ok: true},
		{mk: "Canon", model: "EOS R5", want: "Canon EOS R5", ok: true},
		{mk: "  Canon ", model: "canon eos r5", want: "canon eos r5", ok: true},
		{mk: "FUJIFILM", model: "X-T4", want: "FUJIFILM X-T4", ok: true},
		{mk: "NIKON CORPORATION", model: "NIKON Z 6", want: "NIKON CORPORATION NIKON Z 6", ok: true},
		{mk: "", model: "X100V", ok: false},
		{mk: "Ricoh", model: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := cameraLabel(camera(tc.mk, tc.model))
		if ok != tc.ok || got != tc.want {
			t.Errorf("cameraLabel(%q, %q) = %q, %v; want %q, %v", tc.mk, tc.model, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCameraLabelMergesRepeatedMake(t *testing.T) {
	records := []*PhotoMetadata{
		camera("Canon", "Canon EOS R5"),
		camera("Canon", "EOS R5"),
		camera("Canon", "Canon EOS R6"),
	}

	table := RankedFrequency(records, CameraRule, 5)
	if table[0] != (FrequencyEntry{Label: "Canon EOS R5", Count: 2}) {
		t.Fatalf("expected both R5 spellings under one label, got %v", table)
	}
	if len(table) != 3 {
		t.Fatalf("expected R5, R6 and other, got %v", table)
	}
}

func TestApertureAndFocalRules(t *testing.T) {
	pm := record(map[string]string{TagFocal35mm: "50"})
	pm.Aperture = 1.8

	if label, ok := ApertureRule.Label(pm); !ok || label != "f/1.8" {
		t.Errorf("aperture label = %q, %v", label, ok)
	}
	if label, ok := FocalRule.Label(pm); !ok || label != "50 mm" {
		t.Errorf("focal label = %q, %v", label, ok)
	}
	if _, ok := FocalRule.Label(record(map[string]string{TagFocal35mm: "0"})); ok {
		t.Errorf("zero focal length should not produce a label")
	}
	if _, ok := LookupRule("shutter"); ok {
		t.Errorf("unexpected rule for shutter")
	}
}

func TestBuildPairSeries(t *testing.T) {
	withBoth := func(ap float64, fl string) *PhotoMetadata {
		pm := record(map[string]string{TagFocal35mm: fl})
		pm.Aperture = ap
		return pm
	}
	records := []*PhotoMetadata{
		withBoth(2.8, "24"),
		withBoth(2.8, "24"),
		record(map[string]string{TagFocal35mm: "85"}),
		withBoth(5.6, ""),
		withBoth(4, "200"),
	}

	series := BuildPairSeries(records)
	want := PairSeries{{2.8, 24}, {2.8, 24}, {4, 200}}
	if len(series) != len(want) {
		t.Fatalf("expected %v, got %v", want, series)
	}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("pair %d: expected %v, got %v", i, want[i], series[i])
		}
	}
}

func TestCaptureRange(t *testing.T) {
	records := []*PhotoMetadata{
		record(map[string]string{TagDateTimeOrg: "2023:07:14 09:00:00"}),
		record(map[string]string{TagDateTimeOrg: "2021:01:01 00:00:01"}),
		record(map[string]string{TagDateTime: "2024:12:31 23:59:59"}),
		record(map[string]string{TagDateTimeOrg: "0000:00:00 00:00:00"}),
		record(map[string]string{TagMake: "Canon"}),
	}

	earliest, latest, err := CaptureRange(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2021, 1, 1, 0, 0, 1, 0, time.Local); !earliest.Equal(want) {
		t.Errorf("earliest = %v, want %v", earliest, want)
	}
	if want := time.Date(2024, 12, 31, 23, 59, 59, 0, time.Local); !latest.Equal(want) {
		t.Errorf("latest = %v, want %v", latest, want)
	}
}

func TestCaptureRangePrefersOriginal(t *testing.T) {
	pm := record(map[string]string{
		TagDateTimeOrg: "2020:02:02 02:02:02",
		TagDateTime:    "2022:02:02 02:02:02",
	})
	earliest, latest, err := CaptureRange([]*PhotoMetadata{pm})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if earliest.Year() != 2020 || latest.Year() != 2020 {
		t.Fatalf("expected DateTimeOriginal to win, got %v / %v", earliest, latest)
	}
}

func TestCaptureRangeNoDates(t *testing.T) {
	records := []*PhotoMetadata{
		record(map[string]string{TagMake: "Canon"}),
		record(map[string]string{TagDateTime: "yesterday"}),
	}
	if _, _, err := CaptureRange(records); !errors.Is(err, ErrNoCaptureDate) {
		t.Fatalf("expected ErrNoCaptureDate, got %v", err)
	}
}
