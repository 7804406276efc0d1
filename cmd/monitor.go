package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drgolem/tomu/pkg/types"
)

const statusInterval = 2 * time.Second

// monitorPlayback logs the playback status every 2 seconds for any PlaybackMonitor
func monitorPlayback(monitor types.PlaybackMonitor, done chan struct{}) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := monitor.GetPlaybackStatus()
			if status.Session == "" || status.SampleRate == 0 {
				continue
			}

			level := slog.LevelInfo
			if status.FillPercent() < 10 && !status.Paused {
				level = slog.LevelWarn
			}

			slog.Log(context.Background(), level, "Playback status",
				"file", status.FileName,
				"format", fmt.Sprintf("%dHz:%s:%dch:%dframes",
					status.SampleRate, status.Format, status.Channels, status.FramesPerBuffer),
				"played", formatClock(samplesDuration(status.PlayedSamples, status.SampleRate)),
				"buffered", fmt.Sprintf("%.3fs", samplesDuration(status.BufferedSamples, status.SampleRate).Seconds()),
				"fill_percentage", fmt.Sprintf("%.1f%%", status.FillPercent()),
				"volume", fmt.Sprintf("%.2f", status.Volume),
				"paused", status.Paused,
				"elapsed", formatClock(status.ElapsedTime))
		case <-done:
			return
		}
	}
}

func samplesDuration(samples uint64, sampleRate int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// formatClock formats d as hh:mm:ss.msec.
func formatClock(d time.Duration) string {
	totalMilliseconds := d.Milliseconds()
	hours := totalMilliseconds / 3600000
	minutes := (totalMilliseconds % 3600000) / 60000
	seconds := (totalMilliseconds % 60000) / 1000
	milliseconds := totalMilliseconds % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, milliseconds)
}
