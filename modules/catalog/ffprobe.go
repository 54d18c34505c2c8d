package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"elearn_backend/helpers/logs"

	"github.com/sirupsen/logrus"
)

// ffprobeData is the part of ffprobe's JSON output the catalog reads.
type ffprobeData struct {
	Format struct {
		Filename   string `json:"filename"`
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// probeDuration runs ffprobe on a local media file and returns its duration in seconds.
func probeDuration(ctx context.Context, path string) (float64, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "catalog",
		"function": "probeDuration",
		"filepath": path,
	})

	logger.Debug("Running ffprobe on file...")

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		logger.WithError(err).Warn("Failed to run ffprobe")
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := parseProbeDuration(output)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse ffprobe output")
		return 0, err
	}

	logger.WithField("duration", duration).Info("✓ Duration probed")
	return duration, nil
}

func parseProbeDuration(output []byte) (float64, error) {
	var data ffprobeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, fmt.Errorf("invalid ffprobe output: %w", err)
	}
	if data.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe reported no duration for %q", data.Format.Filename)
	}
	duration, err := strconv.ParseFloat(data.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", data.Format.Duration, err)
	}
	return duration, nil
}

// localMediaPath maps a stored video link to a regular file under mediaDir. Remote URLs
// and paths escaping mediaDir are rejected.
func localMediaPath(mediaDir, link string) (string, bool) {
	if mediaDir == "" || link == "" || strings.Contains(link, "://") {
		return "", false
	}

	root, err := filepath.Abs(mediaDir)
	if err != nil {
		return "", false
	}

	candidate := filepath.Clean(link)
	if !filepath.IsAbs(candidate) {
		base := filepath.Clean(mediaDir)
		if candidate != base && !strings.HasPrefix(candidate, base+string(filepath.Separator)) {
			candidate = filepath.Join(base, candidate)
		}
	}
	candidate, err = filepath.Abs(candidate)
	if err != nil {
		return "", false
	}
	if !strings.HasPrefix(candidate, root+string(filepath.Separator)) {
		return "", false
	}

	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return candidate, true
}
