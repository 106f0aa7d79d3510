package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", getConfigPath(), "Path to YAML config file")
	outputDir := flag.String("output", "", "Directory for the generated report")
	topN := flag.Int("top", 0, "Number of labels kept before the \"other\" bucket")
	workers := flag.Int("workers", 0, "Number of parallel metadata readers")
	policy := flag.String("aperture-policy", "", "What to do with a missing/malformed aperture: abort or skip")
	noCache := flag.Bool("no-cache", false, "Disable the metadata cache")
	noTUI := flag.Bool("no-tui", false, "Disable TUI, use simple CLI output")
	verbose := flag.Bool("verbose", false, "Log at debug level")
	initConfig := flag.Bool("init-config", false, "Write the default config file and exit")
	history := flag.Bool("history", false, "List previously generated reports and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <source-dir>\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *initConfig {
		if err := saveConfig(*configPath, defaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration saved to:", *configPath)
		return
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file
	if *outputDir != "" {
		config.OutputDir = *outputDir
	}
	if *topN != 0 {
		config.TopN = *topN
	}
	if *workers != 0 {
		config.Workers = *workers
	}
	if *policy != "" {
		config.AperturePolicy = *policy
	}
	if *noCache {
		config.UseCache = false
	}
	if *verbose {
		config.LogLevel = "debug"
	}
	if err := validateConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The source is checked before the logger creates its file
	if !*history {
		source, err := resolveSource(flag.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			flag.Usage()
			os.Exit(1)
		}
		config.SourceDir = source
	}

	log, logCloser, err := newLogger(config.LogFile, config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *history {
		code := showHistory(config, log)
		logCloser.Close()
		os.Exit(code)
	}

	var cache *Cache
	if config.UseCache {
		cache, err = OpenCache(config.OutputDir, log)
		if err != nil {
			log.WithError(err).Warn("cache disabled")
			cache = nil
		}
	}

	var code int
	if *noTUI {
		code = runCLI(config, log, cache)
	} else {
		code = runTUI(config, log, cache)
	}

	if cache != nil {
		cache.Close()
	}
	logCloser.Close()
	os.Exit(code)
}

// resolveSource checks the positional source directory argument and
// returns it as an absolute path
func resolveSource(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("missing source directory argument")
	}
	info, err := os.Stat(args[0])
	if os.IsNotExist(err) {
		return "", fmt.Errorf("source path %q does not exist", args[0])
	}
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source path %q is not a directory", args[0])
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("resolve source path %q: %w", args[0], err)
	}
	return abs, nil
}

func runCLI(config *Config, log *logrus.Logger, cache *Cache) int {
	fmt.Println("Photograph Analysis Report")
	fmt.Println("==========================")
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Source:          %s\n", config.SourceDir)
	fmt.Printf("  Output:          %s\n", config.OutputDir)
	fmt.Printf("  Workers:         %d\n", config.Workers)
	fmt.Printf("  Top N:           %d\n", config.TopN)
	fmt.Printf("  Aperture policy: %s\n", config.AperturePolicy)
	if cache != nil {
		fmt.Printf("  Cache:           %s photos\n", humanize.Comma(cache.Count()))
	}
	fmt.Println()

	pipeline := NewPipeline(config, log, cache)

	fmt.Println("Scanning for photos...")
	paths, err := pipeline.Collect()
	if err != nil {
		return fail(log, err)
	}
	fmt.Printf("Found %s photo files\n\n", humanize.Comma(int64(len(paths))))

	fmt.Println("Extracting metadata...")
	progressChan := make(chan ScanProgress, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for prog := range progressChan {
			if prog.TotalFiles > 0 {
				percent := float64(prog.ProcessedFiles) * 100 / float64(prog.TotalFiles)
				fmt.Printf("\r  Progress: [%-50s] %3.0f%% (%d/%d) %s",
					progressBar(percent),
					percent,
					prog.ProcessedFiles,
					prog.TotalFiles,
					truncateFilePath(prog.CurrentFile, 60))
			}
		}
		fmt.Printf("\r%s\r", strings.Repeat(" ", 150)) // Clear line
	}()

	records, stats, err := pipeline.Read(paths, progressChan)
	close(progressChan)
	<-done
	if err != nil {
		return fail(log, err)
	}
	fmt.Printf("Done (%d read, %d skipped, %d from cache)\n\n", stats.Read, stats.Skipped+stats.NoAperture, stats.CacheHits)

	summary, err := pipeline.Summarize(records, stats)
	if err != nil {
		return fail(log, err)
	}

	fmt.Println("Rendering charts...")
	charts, err := pipeline.Charts(records, nil)
	if err != nil {
		return fail(log, err)
	}
	fmt.Printf("Rendered %d charts\n\n", len(charts))

	fmt.Println("Assembling report...")
	outputPath, err := pipeline.Write(summary, charts)
	if err != nil {
		return fail(log, err)
	}

	size := ""
	if info, err := os.Stat(outputPath); err == nil {
		size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
	}
	fmt.Printf("Report written to %s%s\n", outputPath, size)
	fmt.Printf("  Photos:  %s\n", humanize.Comma(int64(summary.Photos)))
	fmt.Printf("  Period:  %s → %s\n", summary.Earliest.Format(dateLayout), summary.Latest.Format(dateLayout))
	return 0
}

func runTUI(config *Config, log *logrus.Logger, cache *Cache) int {
	m := initialModel(config, log, cache)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return fail(log, err)
	}

	// The alt screen is gone once Run returns, so repeat the outcome
	fm, ok := final.(model)
	if !ok {
		return fail(log, fmt.Errorf("unexpected final model %T", final))
	}
	return tuiOutcome(log, fm)
}

// tuiOutcome reports how the TUI run ended and returns the exit code.
// Quitting before the report is written counts as a failure.
func tuiOutcome(log *logrus.Logger, fm model) int {
	if fm.err != nil {
		return fail(log, fm.err)
	}
	if fm.outputPath == "" {
		log.WithField("phase", int(fm.currentPhase)).Warn("run aborted by user")
		fmt.Fprintln(os.Stderr, "Aborted: no report written.")
		return 1
	}
	fmt.Printf("Report written to %s\n", fm.outputPath)
	return 0
}

// showHistory prints reports recorded in the cache
func showHistory(config *Config, log *logrus.Logger) int {
	cache, err := OpenCache(config.OutputDir, log)
	if err != nil {
		return fail(log, err)
	}
	defer cache.Close()

	reports, err := cache.RecentReports(20)
	if err != nil {
		return fail(log, err)
	}
	if len(reports) == 0 {
		fmt.Println("No reports generated yet.")
		return 0
	}
	for _, r := range reports {
		fmt.Printf("%-14s %6s photos  %s\n  ← %s\n",
			humanize.Time(r.CreatedAt), humanize.Comma(int64(r.Photos)), r.OutputPath, r.SourceDir)
	}
	return 0
}

// fail reports err to the user and the log and returns the exit code
func fail(log *logrus.Logger, err error) int {
	log.WithError(err).Error("run aborted")
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

// progressBar creates a text progress bar
func progressBar(percent float64) string {
	const width = 50
	filled := int(percent / 2) // 50 chars = 100%
	if filled > width {
		filled = width
	}
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			b.WriteByte('=')
		case i == filled:
			b.WriteByte('>')
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// truncateFilePath shortens a file path for display
func truncateFilePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Show just the filename
	base := filepath.Base(path)
	if len(base) <= maxLen {
		return "..." + base
	}
	// Truncate filename too if needed
	return "..." + base[len(base)-maxLen+3:]
}
