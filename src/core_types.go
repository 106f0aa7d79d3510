package main

import (
	"time"
)

// Tag names as they appear in PhotoMetadata.Tags
const (
	TagMake        = "Image Make"
	TagModel       = "Image Model"
	TagDateTime    = "Image DateTime"
	TagFNumber     = "EXIF FNumber"
	TagLensModel   = "EXIF LensModel"
	TagFocal35mm   = "EXIF FocalLengthIn35mmFilm"
	TagDateTimeOrg = "EXIF DateTimeOriginal"
)

// PhotoMetadata holds the namespaced tags read from one photo
type PhotoMetadata struct {
	Path     string
	Size     int64
	Tags     map[string]string
	Aperture float64
}

// Has reports whether a tag is present and non-empty
func (pm *PhotoMetadata) Has(tag string) bool {
	v, ok := pm.Tags[tag]
	return ok && v != ""
}

// ReadStats counts what happened while reading a batch of files
type ReadStats struct {
	Candidates int
	Read       int
	Skipped    int
	NoAperture int
	CacheHits  int
}

// FrequencyEntry is one row of a FrequencyTable
type FrequencyEntry struct {
	Label string
	Count int
}

// FrequencyTable is ordered by descending count with "other" last
type FrequencyTable []FrequencyEntry

// Pair is one (aperture, 35mm focal length) observation
type Pair struct {
	Aperture    float64
	FocalLength int
}

// PairSeries keeps pairs in record order, duplicates included
type PairSeries []Pair

// ChartKind selects a renderer
type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartPie     ChartKind = "pie"
	ChartScatter ChartKind = "scatter"
)

// ChartSpec describes one chart in the report
type ChartSpec struct {
	Kind  ChartKind `yaml:"kind"`
	Rule  string    `yaml:"rule,omitempty"`
	Title string    `yaml:"title,omitempty"`
}

// ChartImage is an encoded PNG plus its size in millimetres
type ChartImage struct {
	Name   string
	Title  string
	Kind   ChartKind
	PNG    []byte
	Width  float64
	Height float64
}

// ReportSummary is the data shown in the report's summary table
type ReportSummary struct {
	RunID       string
	SourceDir   string
	Photos      int
	Skipped     int
	Earliest    time.Time
	Latest      time.Time
	GeneratedAt time.Time
}

// ScanProgress tracks pipeline progress
type ScanProgress struct {
	TotalFiles     int
	ProcessedFiles int
	CurrentFile    string
}

// Config holds application configuration
type Config struct {
	SourceDir      string
	OutputDir      string
	LogFile        string
	LogLevel       string
	TopN           int
	Workers        int
	AperturePolicy string
	UseCache       bool
	ChartDPI       int
	Charts         []ChartSpec
}
