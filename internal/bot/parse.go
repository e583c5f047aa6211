package bot

import (
	"fmt"
	"strings"
	"time"

	"feed_playback/internal/model"
)

const dateLayout = "2006-01-02"

// SubscribeArgs holds the parsed arguments of /subscribe.
type SubscribeArgs struct {
	URL       string
	StartDate time.Time
	Frequency model.Frequency
}

// ParseSubscribeArgs parses arguments for /subscribe.
// Format: <url> <YYYY-MM-DD> <1d|2d|1w>
func ParseSubscribeArgs(args string) (SubscribeArgs, error) {
	parts := strings.Fields(args)
	if len(parts) != 3 {
		return SubscribeArgs{}, fmt.Errorf("usage: /subscribe <url> <YYYY-MM-DD> <1d|2d|1w>")
	}

	start, err := time.ParseInLocation(dateLayout, parts[1], time.UTC)
	if err != nil {
		return SubscribeArgs{}, fmt.Errorf("invalid start date %q, use YYYY-MM-DD", parts[1])
	}

	freq, err := model.ParseFrequency(parts[2])
	if err != nil {
		return SubscribeArgs{}, fmt.Errorf("invalid frequency %q, use: 1d, 2d, 1w", parts[2])
	}

	return SubscribeArgs{
		URL:       parts[0],
		StartDate: start,
		Frequency: freq,
	}, nil
}

// ParseIDArg extracts a subscription ID from a command argument string.
func ParseIDArg(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", fmt.Errorf("subscription ID is required")
	}
	return parts[0], nil
}

// ParseURLArg extracts a single URL from a command argument string.
func ParseURLArg(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", fmt.Errorf("URL is required")
	}
	if !strings.HasPrefix(parts[0], "http://") && !strings.HasPrefix(parts[0], "https://") {
		return "", fmt.Errorf("invalid URL %q", parts[0])
	}
	return parts[0], nil
}
