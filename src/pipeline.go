package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoMetadata aborts a run that has nothing to report on
var ErrNoMetadata = errors.New("no metadata extracted")

// Pipeline runs the stages of one report generation in order
type Pipeline struct {
	cfg       *Config
	log       *logrus.Logger
	cache     *Cache
	reader    *MetadataReader
	assembler *ReportAssembler
}

// NewPipeline wires the reader and assembler; cache may be nil
func NewPipeline(cfg *Config, log *logrus.Logger, cache *Cache) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		log:       log,
		cache:     cache,
		reader:    NewMetadataReader(log, cache, cfg.Workers, cfg.AperturePolicy),
		assembler: NewReportAssembler(log, cfg.Charts, cfg.TopN, cfg.ChartDPI),
	}
}

// Collect lists candidate photos under the source directory
func (p *Pipeline) Collect() ([]string, error) {
	paths, err := CollectPhotos(p.cfg.SourceDir)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"source": p.cfg.SourceDir,
		"files":  len(paths),
	}).Info("scan complete")

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no photo files under %s", ErrNoMetadata, p.cfg.SourceDir)
	}

	if p.cache != nil {
		valid := make(map[string]bool, len(paths))
		for _, path := range paths {
			valid[path] = true
		}
		if pruned, err := p.cache.PruneDeleted(p.cfg.SourceDir, valid); err != nil {
			p.log.WithError(err).Warn("cache prune failed")
		} else if pruned > 0 {
			p.log.WithField("pruned", pruned).Info("removed deleted files from cache")
		}
	}
	return paths, nil
}

// Read extracts metadata; zero surviving records is an error
func (p *Pipeline) Read(paths []string, progressChan chan<- ScanProgress) ([]*PhotoMetadata, ReadStats, error) {
	records, stats, err := p.reader.ReadAll(paths, progressChan)
	if err != nil {
		return nil, stats, err
	}
	p.log.WithFields(logrus.Fields{
		"read":        stats.Read,
		"skipped":     stats.Skipped,
		"no_aperture": stats.NoAperture,
		"cache_hits":  stats.CacheHits,
	}).Info("metadata extracted")

	if len(records) == 0 {
		return nil, stats, fmt.Errorf("%w: none of %d files were readable", ErrNoMetadata, stats.Candidates)
	}
	return records, stats, nil
}

// Summarize computes the summary table before anything is rendered
func (p *Pipeline) Summarize(records []*PhotoMetadata, stats ReadStats) (ReportSummary, error) {
	return Summarize(p.cfg.SourceDir, records, stats, time.Now())
}

// Charts renders the configured charts
func (p *Pipeline) Charts(records []*PhotoMetadata, progressChan chan<- ScanProgress) ([]*ChartImage, error) {
	return p.assembler.RenderCharts(records, progressChan)
}

// Write assembles the report in the output directory and returns its path
func (p *Pipeline) Write(summary ReportSummary, charts []*ChartImage) (string, error) {
	outputPath, err := ReportPath(p.cfg.OutputDir, summary.GeneratedAt)
	if err != nil {
		return "", err
	}
	if err := p.assembler.Write(outputPath, summary, charts); err != nil {
		return "", err
	}

	if p.cache != nil {
		if err := p.cache.RecordReport(summary, outputPath); err != nil {
			p.log.WithError(err).Warn("could not record report history")
		}
	}
	return outputPath, nil
}

// Run executes every stage; progress may be nil
func (p *Pipeline) Run(progressChan chan<- ScanProgress) (string, ReportSummary, error) {
	paths, err := p.Collect()
	if err != nil {
		return "", ReportSummary{}, err
	}

	records, stats, err := p.Read(paths, progressChan)
	if err != nil {
		return "", ReportSummary{}, err
	}

	summary, err := p.Summarize(records, stats)
	if err != nil {
		return "", ReportSummary{}, err
	}

	charts, err := p.Charts(records, nil)
	if err != nil {
		return "", ReportSummary{}, err
	}

	outputPath, err := p.Write(summary, charts)
	if err != nil {
		return "", ReportSummary{}, err
	}
	return outputPath, summary, nil
}
