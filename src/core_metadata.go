package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Aperture conversion policies
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// ErrAperture marks a record whose FNumber is missing or not a positive number
var ErrAperture = errors.New("unusable aperture value")

// Fields stored in IFD0 get the "Image " namespace, the rest of the main
// EXIF map gets "EXIF ". GPS, interop and IFD pointers are dropped.
var ifd0Fields = map[exif.FieldName]bool{
	exif.ImageWidth: true, exif.ImageLength: true, exif.BitsPerSample: true,
	exif.Compression: true, exif.PhotometricInterpretation: true,
	exif.Orientation: true, exif.SamplesPerPixel: true,
	exif.PlanarConfiguration: true, exif.YCbCrSubSampling: true,
	exif.YCbCrPositioning: true, exif.XResolution: true, exif.YResolution: true,
	exif.ResolutionUnit: true, exif.DateTime: true, exif.ImageDescription: true,
	exif.Make: true, exif.Model: true, exif.Software: true, exif.Artist: true,
	exif.Copyright: true,
}

var droppedFields = map[exif.FieldName]bool{
	exif.ExifIFDPointer:                   true,
	exif.GPSInfoIFDPointer:                true,
	exif.InteroperabilityIFDPointer:       true,
	exif.InteroperabilityIndex:            true,
	exif.ThumbJPEGInterchangeFormat:       true,
	exif.ThumbJPEGInterchangeFormatLength: true,
}

// tagNamespace returns the prefix for a field, or "" to drop it
func tagNamespace(name exif.FieldName) string {
	switch {
	case droppedFields[name], strings.HasPrefix(string(name), "GPS"):
		return ""
	case ifd0Fields[name]:
		return "Image "
	default:
		return "EXIF "
	}
}

// tagCollector implements exif.Walker
type tagCollector map[string]string

func (tc tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	ns := tagNamespace(name)
	if ns == "" {
		return nil
	}
	if text, ok := tagText(tag); ok && text != "" {
		tc[ns+string(name)] = text
	}
	return nil
}

// tagText renders a tag value; rationals keep their num/den form
func tagText(tag *tiff.Tag) (string, bool) {
	if tag.Format() == tiff.StringVal {
		s, err := tag.StringVal()
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}

	parts := make([]string, 0, tag.Count)
	for i := 0; i < int(tag.Count); i++ {
		switch tag.Format() {
		case tiff.RatVal:
			num, den, err := tag.Rat2(i)
			if err != nil {
				return "", false
			}
			parts = append(parts, fmt.Sprintf("%d/%d", num, den))
		case tiff.IntVal:
			v, err := tag.Int64(i)
			if err != nil {
				return "", false
			}
			parts = append(parts, strconv.FormatInt(v, 10))
		case tiff.FloatVal:
			v, err := tag.Float(i)
			if err != nil {
				return "", false
			}
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			// Undefined blobs (maker notes, versions) are not reported
			return "", false
		}
	}
	return strings.Join(parts, ", "), true
}

// extractTags decodes EXIF from the photo at path into a namespaced tag map
func extractTags(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("decode exif: %w", err)
	}

	tags := tagCollector{}
	if err := x.Walk(tags); err != nil {
		return nil, fmt.Errorf("walk exif: %w", err)
	}
	return tags, nil
}

// ParseAperture converts "9/5", "4/1", "4" or "1.8" to a decimal f-number.
// Parsing an already converted value returns the same number.
func ParseAperture(text string) (float64, error) {
	s := strings.Trim(strings.TrimSpace(text), `"`)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrAperture)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a number", ErrAperture, text)
	}
	if r.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrAperture, text)
	}

	f, _ := r.Float64()
	return f, nil
}

// normalizeAperture stores the decimal aperture on the record
func normalizeAperture(pm *PhotoMetadata) error {
	raw, ok := pm.Tags[TagFNumber]
	if !ok {
		return fmt.Errorf("%s: %w: no %s tag", pm.Path, ErrAperture, TagFNumber)
	}

	f, err := ParseAperture(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", pm.Path, err)
	}

	pm.Aperture = f
	pm.Tags[TagFNumber] = strconv.FormatFloat(f, 'f', -1, 64)
	return nil
}
