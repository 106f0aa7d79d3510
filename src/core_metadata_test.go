package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseAperture(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "9/5", want: 1.8},
		{in: "4/1", want: 4.0},
		{in: "28/10", want: 2.8},
		{in: "4", want: 4.0},
		{in: "1.8", want: 1.8},
		{in: ` "56/10" `, want: 5.6},
		{in: "", wantErr: true},
		{in: "0/0", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-2", wantErr: true},
		{in: "f/2", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAperture(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrAperture) {
					t.Fatalf("expected ErrAperture, got %v (value %v)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestParseApertureIsIdempotent(t *testing.T) {
	for _, in := range []string{"9/5", "4/1", "71/10", "22"} {
		first, err := ParseAperture(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		second, err := ParseAperture(strconv.FormatFloat(first, 'f', -1, 64))
		if err != nil {
			t.Fatalf("%s reparse: %v", in, err)
		}
		if first != second {
			t.Fatalf("%s: %v != %v after reparse", in, first, second)
		}
	}
}

func TestNormalizeAperture(t *testing.T) {
	pm := &PhotoMetadata{Path: "a.jpg", Tags: map[string]string{TagFNumber: "9/5"}}
	if err := normalizeAperture(pm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pm.Aperture != 1.8 {
		t.Fatalf("expected aperture 1.8, got %v", pm.Aperture)
	}
	if pm.Tags[TagFNumber] != "1.8" {
		t.Fatalf("expected tag rewritten to 1.8, got %q", pm.Tags[TagFNumber])
	}

	missing := &PhotoMetadata{Path: "b.jpg", Tags: map[string]string{}}
	if err := normalizeAperture(missing); !errors.Is(err, ErrAperture) {
		t.Fatalf("expected ErrAperture for missing tag, got %v", err)
	}
}

func TestExtractTags(t *testing.T) {
	path := writePhoto(t, t.TempDir(), "IMG_0001.JPG", photoFixture{
		make:    "Canon",
		model:   "Canon EOS R5",
		lens:    "RF24-70mm F2.8 L IS USM",
		taken:   "2024:05:01 10:30:00",
		fnum:    [2]uint32{28, 10},
		focal35: 50,
	})

	tags, err := extractTags(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"Image Make":                 "Canon",
		"Image Model":                "Canon EOS R5",
		"EXIF LensModel":             "RF24-70mm F2.8 L IS USM",
		"EXIF DateTimeOriginal":      "2024:05:01 10:30:00",
		"EXIF FNumber":               "28/10",
		"EXIF FocalLengthIn35mmFilm": "50",
	}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, tags[k])
		}
	}
	for k := range tags {
		if !strings.HasPrefix(k, "Image ") && !strings.HasPrefix(k, "EXIF ") {
			t.Errorf("unexpected tag namespace: %q", k)
		}
	}
	if _, ok := tags["EXIF ExifIFDPointer"]; ok {
		t.Errorf("IFD pointer should not be reported")
	}
}

func TestExtractTagsRejectsFileWithoutExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := extractTags(path); err == nil {
		t.Fatalf("expected an error for a JPEG without EXIF")
	}
}

func TestReadAllSkipsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 9; i++ {
		paths = append(paths, writePhoto(t, dir, fmt.Sprintf("IMG_%04d.JPG", i), photoFixture{
			make:  "Nikon",
			model: fmt.Sprintf("Z%d", i),
			fnum:  [2]uint32{4, 1},
			taken: "2023:01:02 03:04:05",
		}))
	}
	corrupt := filepath.Join(dir, "IMG_9999.JPG")
	if err := os.WriteFile(corrupt, []byte("not a jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	paths = append(paths, corrupt)

	reader := NewMetadataReader(discardLogger(), nil, 4, PolicyAbort)
	records, stats, err := reader.ReadAll(paths, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 9 {
		t.Fatalf("expected 9 records, got %d", len(records))
	}
	if stats.Skipped != 1 || stats.Candidates != 10 || stats.Read != 9 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	for i, pm := range records {
		if pm.Path != paths[i] {
			t.Fatalf("record %d out of order: %s", i, pm.Path)
		}
		if pm.Aperture != 4.0 {
			t.Fatalf("record %d: expected aperture 4, got %v", i, pm.Aperture)
		}
	}
}

func TestReadAllAperturePolicy(t *testing.T) {
	dir := t.TempDir()
	good := writePhoto(t, dir, "good.jpg", photoFixture{make: "Sony", model: "A7", fnum: [2]uint32{9, 5}})
	noAperture := writePhoto(t, dir, "manual-lens.jpg", photoFixture{make: "Sony", model: "A7", focal35: 35})
	paths := []string{good, noAperture}

	t.Run("abort", func(t *testing.T) {
		reader := NewMetadataReader(discardLogger(), nil, 1, PolicyAbort)
		_, _, err := reader.ReadAll(paths, nil)
		if !errors.Is(err, ErrAperture) {
			t.Fatalf("expected ErrAperture, got %v", err)
		}
		if !strings.Contains(err.Error(), "manual-lens.jpg") {
			t.Fatalf("expected error to name the file, got %v", err)
		}
	})

	t.Run("skip", func(t *testing.T) {
		reader := NewMetadataReader(discardLogger(), nil, 1, PolicySkip)
		records, stats, err := reader.ReadAll(paths, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 1 || records[0].Path != good {
			t.Fatalf("expected only %s, got %d records", good, len(records))
		}
		if stats.NoAperture != 1 {
			t.Fatalf("expected NoAperture 1, got %d", stats.NoAperture)
		}
	})
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// EXIF fixture builder: a little-endian TIFF inside a JPEG APP1 segment.

const (
	tiffASCII    = 2
	tiffShort    = 3
	tiffLong     = 4
	tiffRational = 5
)

type fixtureTag struct {
	id    uint16
	typ   uint16
	count uint32
	data  []byte
}

func asciiTag(id uint16, s string) fixtureTag {
	b := append([]byte(s), 0)
	return fixtureTag{id: id, typ: tiffASCII, count: uint32(len(b)), data: b}
}

func shortTag(id uint16, v uint16) fixtureTag {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return fixtureTag{id: id, typ: tiffShort, count: 1, data: b}
}

func longTag(id uint16, v uint32) fixtureTag {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return fixtureTag{id: id, typ: tiffLong, count: 1, data: b}
}

func rationalTag(id uint16, num, den uint32) fixtureTag {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, num)
	binary.LittleEndian.PutUint32(b[4:], den)
	return fixtureTag{id: id, typ: tiffRational, count: 1, data: b}
}

// encodeIFD lays out tags at offset base; values wider than four bytes
// follow the entry table.
func encodeIFD(tags []fixtureTag, base uint32) []byte {
	le := binary.LittleEndian
	tableLen := 2 + 12*len(tags) + 4
	out := make([]byte, tableLen)
	le.PutUint16(out, uint16(len(tags)))

	var extra []byte
	for i, tag := range tags {
		e := out[2+12*i:]
		le.PutUint16(e[0:], tag.id)
		le.PutUint16(e[2:], tag.typ)
		le.PutUint32(e[4:], tag.count)
		if len(tag.data) <= 4 {
			copy(e[8:12], tag.data)
			continue
		}
		le.PutUint32(e[8:], base+uint32(tableLen+len(extra)))
		extra = append(extra, tag.data...)
		if len(extra)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	return append(out, extra...)
}

type photoFixture struct {
	make, model string
	dateTime    string // IFD0 DateTime
	lens        string
	taken       string    // DateTimeOriginal
	fnum        [2]uint32 // zero denominator leaves FNumber out
	focal35     uint16
}

func buildPhoto(t *testing.T, f photoFixture) []byte {
	t.Helper()

	var ifd0, exifIFD []fixtureTag
	if f.make != "" {
		ifd0 = append(ifd0, asciiTag(0x010F, f.make))
	}
	if f.model != "" {
		ifd0 = append(ifd0, asciiTag(0x0110, f.model))
	}
	if f.dateTime != "" {
		ifd0 = append(ifd0, asciiTag(0x0132, f.dateTime))
	}
	if f.fnum[1] != 0 {
		exifIFD = append(exifIFD, rationalTag(0x829D, f.fnum[0], f.fnum[1]))
	}
	if f.taken != "" {
		exifIFD = append(exifIFD, asciiTag(0x9003, f.taken))
	}
	if f.focal35 != 0 {
		exifIFD = append(exifIFD, shortTag(0xA405, f.focal35))
	}
	if f.lens != "" {
		exifIFD = append(exifIFD, asciiTag(0xA434, f.lens))
	}

	const ifd0Offset = 8
	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, longTag(0x8769, 0))
		exifOffset := uint32(ifd0Offset + len(encodeIFD(ifd0, ifd0Offset)))
		ifd0[len(ifd0)-1] = longTag(0x8769, exifOffset)
	}

	tiff := []byte{'I', 'I', 42, 0, ifd0Offset, 0, 0, 0}
	tiff = append(tiff, encodeIFD(ifd0, ifd0Offset)...)
	if len(exifIFD) > 0 {
		tiff = append(tiff, encodeIFD(exifIFD, uint32(len(tiff)))...)
	}

	exif := append([]byte("Exif\x00\x00"), tiff...)
	length := len(exif) + 2
	if length > 0xFFFF {
		t.Fatalf("exif payload too large: %d", length)
	}

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE1, byte(length >> 8), byte(length)}
	jpeg = append(jpeg, exif...)
	return append(jpeg, 0xFF, 0xD9)
}

func writePhoto(t *testing.T, dir, name string, f photoFixture) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buildPhoto(t, f), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
