package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// goexif decodes EXIF from JPEG and TIFF containers only
	photoExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".jpe": true, ".jfif": true,
		".tif": true, ".tiff": true,
	}

	excludeDirs = map[string]bool{
		".Trash": true, ".Trashes": true, ".Thumbnails": true, "Thumbnails": true,
		"@eaDir": true, ".git": true, ".photo-report-cache": true,
		".duplicates-trash": true, ".deleted_media": true,
	}
)

// isPhoto reports whether path has an allowed extension, ignoring case
func isPhoto(path string) bool {
	return photoExtensions[strings.ToLower(filepath.Ext(path))]
}

// shouldExclude checks if a directory should be skipped
func shouldExclude(name string) bool {
	return excludeDirs[name]
}

// CollectPhotos walks basePath recursively and returns candidate photo paths in lexical order
func CollectPhotos(basePath string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == basePath {
				return err
			}
			return nil // Skip unreadable entries
		}

		if d.IsDir() {
			if path != basePath && shouldExclude(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		// AppleDouble sidecars share the photo's extension but hold no image
		if strings.HasPrefix(d.Name(), "._") {
			return nil
		}

		if isPhoto(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", basePath, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// MetadataReader reads tags from photo files using a pool of workers
type MetadataReader struct {
	log     *logrus.Entry
	cache   *Cache
	workers int
	policy  string
}

// NewMetadataReader creates a reader; cache may be nil
func NewMetadataReader(log *logrus.Logger, cache *Cache, workers int, policy string) *MetadataReader {
	if workers < 1 {
		workers = 1
	}
	if policy == "" {
		policy = PolicyAbort
	}
	return &MetadataReader{
		log:     log.WithField("component", "reader"),
		cache:   cache,
		workers: workers,
		policy:  policy,
	}
}

// ReadAll extracts metadata from every path. Files that cannot be opened or
// decoded are skipped; the returned records keep the order of paths.
func (r *MetadataReader) ReadAll(paths []string, progressChan chan<- ScanProgress) ([]*PhotoMetadata, ReadStats, error) {
	stats := ReadStats{Candidates: len(paths)}
	results := make([]*PhotoMetadata, len(paths))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
	)
	jobs := make(chan int, len(paths))

	// Start worker pool
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				path := paths[idx]
				pm, hit, err := r.readOne(path)
				if err != nil {
					r.log.WithError(err).WithField("path", path).Debug("skipping unreadable file")
				}

				mu.Lock()
				results[idx] = pm
				if hit {
					stats.CacheHits++
				}
				processed++
				if progressChan != nil {
					select {
					case progressChan <- ScanProgress{
						ProcessedFiles: processed,
						TotalFiles:     len(paths),
						CurrentFile:    path,
					}:
					default:
					}
				}
				mu.Unlock()
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	records := make([]*PhotoMetadata, 0, len(paths))
	for _, pm := range results {
		if pm == nil {
			stats.Skipped++
			continue
		}
		records = append(records, pm)
	}

	// Aperture conversion runs once per surviving record, after all reads
	kept := records[:0]
	for _, pm := range records {
		if err := normalizeAperture(pm); err != nil {
			if r.policy == PolicyAbort {
				return nil, stats, err
			}
			r.log.WithError(err).WithField("path", pm.Path).Warn("dropping record without usable aperture")
			stats.NoAperture++
			continue
		}
		kept = append(kept, pm)
	}
	stats.Read = len(kept)

	if stats.Skipped > 0 {
		r.log.WithFields(logrus.Fields{
			"skipped":    stats.Skipped,
			"candidates": stats.Candidates,
		}).Info("some files could not be read")
	}

	return kept, stats, nil
}

// readOne returns the record for path, consulting the cache first
func (r *MetadataReader) readOne(path string) (*PhotoMetadata, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}
	if !info.Mode().IsRegular() {
		return nil, false, errors.New("not a regular file")
	}

	if r.cache != nil {
		if tags, ok := r.cache.Get(path, info.Size(), info.ModTime()); ok {
			return &PhotoMetadata{Path: path, Size: info.Size(), Tags: tags}, true, nil
		}
	}

	tags, err := extractTags(path)
	if err != nil {
		return nil, false, err
	}

	if r.cache != nil {
		if err := r.cache.Put(path, info.Size(), info.ModTime(), tags); err != nil {
			r.log.WithError(err).Debug("cache put dropped")
		}
	}

	return &PhotoMetadata{Path: path, Size: info.Size(), Tags: tags}, false, nil
}
