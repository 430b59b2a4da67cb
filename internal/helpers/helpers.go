package helpers

import (
	"fmt"
	"strings"
	"time"
)

// SanitizeName replaces characters unsuitable for AWS resource names
// (task definition families, log stream prefixes) with hyphens.
// Allows alphanumeric characters, hyphen, and underscore.
func SanitizeName(input string) string {
	if input == "" {
		return ""
	}
	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}
	return result.String()
}

// ShortARN returns the resource part of an ARN, e.g.
// "arn:aws:ecs:eu-north-1:123:task-definition/web:42" -> "task-definition/web:42".
func ShortARN(arn string) string {
	if idx := strings.LastIndex(arn, ":task-definition/"); idx != -1 {
		return arn[idx+1:]
	}
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) == 6 {
		return parts[5]
	}
	return arn
}

// TaskDefRevision extracts the numeric revision suffix of a task definition
// ARN or family:revision reference. Returns 0 when no revision is present.
func TaskDefRevision(ref string) int {
	idx := strings.LastIndex(ref, ":")
	if idx == -1 || idx == len(ref)-1 {
		return 0
	}
	rev := 0
	for _, r := range ref[idx+1:] {
		if r < '0' || r > '9' {
			return 0
		}
		rev = rev*10 + int(r-'0')
	}
	return rev
}

// FormatRelativeTime formats a timestamp the way docker and kubectl do,
// e.g. "2 minutes ago".
func FormatRelativeTime(t time.Time) string {
	return formatRelative(t, time.Now())
}

func formatRelative(t, now time.Time) string {
	elapsed := now.Sub(t)
	if elapsed < 0 {
		return formatDuration(-elapsed) + " from now"
	}
	return formatDuration(elapsed) + " ago"
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		seconds := int(d.Seconds())
		if seconds <= 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", seconds)
	case d < time.Hour:
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

// NormalizeServerURL ensures a server URL has a scheme and no trailing slash.
func NormalizeServerURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("server URL cannot be empty")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	return strings.TrimRight(s, "/"), nil
}
