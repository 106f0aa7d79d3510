package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// reportFileTemplate is the output name; the suffix is the generation time
const reportFileTemplate = "photograph_analysis_report_%s.pdf"

// ReportFileName returns the report file name for a generation time
func ReportFileName(now time.Time) string {
	return fmt.Sprintf(reportFileTemplate, now.Format("20060102_150405"))
}

// ReportPath joins the output directory and file name, avoiding existing files
func ReportPath(outputDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", outputDir, err)
	}
	return ensureUniqueFilename(filepath.Join(outputDir, ReportFileName(now))), nil
}

// finalizeReport moves a finished temp file to its destination without
// replacing anything already there. On failure no partial file is left.
func finalizeReport(tmp, dst string) error {
	if err := moveFile(tmp, dst); err != nil {
		// An existing file belongs to someone else
		if !errors.Is(err, fs.ErrExist) {
			os.Remove(dst)
		}
		return fmt.Errorf("write report %s: %w", dst, err)
	}
	return nil
}

// moveFile moves a file without overwriting dst, with fallback to
// copy+delete if cross-device
func moveFile(src, dst string) error {
	// A hard link fails on an existing dst, unlike rename
	err := os.Link(src, dst)
	if err == nil {
		// dst is complete; a leftover src is only a stray temp file
		os.Remove(src)
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return err
	}

	// If link fails (probably cross-device), copy then delete
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}

	return nil
}

// copyFile copies a file preserving permissions; dst must not exist
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	return dstFile.Sync()
}

// ensureUniqueFilename adds a counter if file exists. A file created at
// the returned path afterwards makes finalizeReport fail instead of
// being replaced.
func ensureUniqueFilename(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	name := base[:len(base)-len(ext)]

	for i := 1; ; i++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s_%d%s", name, i, ext))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}
}
