package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OtherLabel names the bucket that sums everything past the top N
const OtherLabel = "other"

// DefaultTopN is the number of labels kept individually
const DefaultTopN = 5

// exifTimeLayout is the EXIF 2.x date format
const exifTimeLayout = "2006:01:02 15:04:05"

// ErrNoCaptureDate means no record carries a usable capture timestamp
var ErrNoCaptureDate = errors.New("no photo has a capture date")

// ExtractionRule turns a record into a category label
type ExtractionRule struct {
	Name  string
	Title string
	Label func(pm *PhotoMetadata) (string, bool)
}

var (
	CameraRule = ExtractionRule{
		Name:  "camera",
		Title: "Cameras",
		Label: cameraLabel,
	}

	LensRule = ExtractionRule{
		Name:  "lens",
		Title: "Lenses",
		Label: func(pm *PhotoMetadata) (string, bool) {
			lens := strings.TrimSpace(pm.Tags[TagLensModel])
			return lens, lens != ""
		},
	}

	ApertureRule = ExtractionRule{
		Name:  "aperture",
		Title: "Apertures",
		Label: func(pm *PhotoMetadata) (string, bool) {
			if pm.Aperture <= 0 {
				return "", false
			}
			return fmt.Sprintf("f/%.1f", pm.Aperture), true
		},
	}

	FocalRule = ExtractionRule{
		Name:  "focal",
		Title: "Focal lengths (35mm equivalent)",
		Label: func(pm *PhotoMetadata) (string, bool) {
			fl, ok := focalLength(pm)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("%d mm", fl), true
		},
	}
)

// LookupRule finds a built-in rule by name
func LookupRule(name string) (ExtractionRule, bool) {
	for _, r := range []ExtractionRule{CameraRule, LensRule, ApertureRule, FocalRule} {
		if r.Name == name {
			return r, true
		}
	}
	return ExtractionRule{}, false
}

// cameraLabel joins make and model, dropping the make when the model repeats it
func cameraLabel(pm *PhotoMetadata) (string, bool) {
	if !pm.Has(TagMake) || !pm.Has(TagModel) {
		return "", false
	}
	mk := strings.TrimSpace(pm.Tags[TagMake])
	model := strings.TrimSpace(pm.Tags[TagModel])
	if strings.HasPrefix(strings.ToLower(model), strings.ToLower(mk)) {
		return model, true
	}
	return strings.TrimSpace(mk + " " + model), true
}

func focalLength(pm *PhotoMetadata) (int, bool) {
	if !pm.Has(TagFocal35mm) {
		return 0, false
	}
	fl, err := strconv.Atoi(strings.TrimSpace(pm.Tags[TagFocal35mm]))
	if err != nil || fl <= 0 {
		return 0, false
	}
	return fl, true
}

// RankedFrequency counts labels, keeps the topN largest and sums the rest
// into a trailing "other" entry. Equal counts keep first-seen order.
func RankedFrequency(records []*PhotoMetadata, rule ExtractionRule, topN int) FrequencyTable {
	if topN <= 0 {
		topN = DefaultTopN
	}

	counts := make(map[string]int)
	var order []string
	for _, pm := range records {
		label, ok := rule.Label(pm)
		if !ok {
			continue
		}
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	table := make(FrequencyTable, 0, topN+1)
	other := 0
	for i, label := range order {
		if i < topN {
			table = append(table, FrequencyEntry{Label: label, Count: counts[label]})
		} else {
			other += counts[label]
		}
	}
	return append(table, FrequencyEntry{Label: OtherLabel, Count: other})
}

// Total sums all counts in the table
func (t FrequencyTable) Total() int {
	total := 0
	for _, e := range t {
		total += e.Count
	}
	return total
}

// Labels returns the labels in table order
func (t FrequencyTable) Labels() []string {
	labels := make([]string, len(t))
	for i, e := range t {
		labels[i] = e.Label
	}
	return labels
}

// BuildPairSeries returns (aperture, focal length) for records that have both
func BuildPairSeries(records []*PhotoMetadata) PairSeries {
	var series PairSeries
	for _, pm := range records {
		if pm.Aperture <= 0 {
			continue
		}
		fl, ok := focalLength(pm)
		if !ok {
			continue
		}
		series = append(series, Pair{Aperture: pm.Aperture, FocalLength: fl})
	}
	return series
}

// captureTime prefers DateTimeOriginal and falls back to the IFD0 DateTime
func captureTime(pm *PhotoMetadata) (time.Time, bool) {
	for _, tag := range []string{TagDateTimeOrg, TagDateTime} {
		if !pm.Has(tag) {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(pm.Tags[tag]), time.Local)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CaptureRange returns the earliest and latest capture time across records
func CaptureRange(records []*PhotoMetadata) (time.Time, time.Time, error) {
	var dates []time.Time
	for _, pm := range records {
		if t, ok := captureTime(pm); ok {
			dates = append(dates, t)
		}
	}

	if len(dates) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w (%d records checked)", ErrNoCaptureDate, len(records))
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates[0], dates[len(dates)-1], nil
}
