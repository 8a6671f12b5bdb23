package quota

import (
	"fmt"
	"math"
)

// Reason explains a denied decision.
type Reason string

const (
	ReasonInsufficientSpace Reason = "insufficient_space"
	ReasonUserNotFound      Reason = "user_not_found"
)

// Usage is a snapshot of one owner's storage. Available is derived and is
// never persisted.
type Usage struct {
	Quota      int64   `json:"quota"`
	Used       int64   `json:"used"`
	Available  int64   `json:"available"`
	Percentage float64 `json:"usage_percentage"`
}

// Projection is the usage an owner would have after an accepted upload.
type Projection struct {
	Used       int64   `json:"used"`
	Available  int64   `json:"available"`
	Percentage float64 `json:"usage_percentage"`
}

// Decision is the outcome of an upload admission check.
type Decision struct {
	Allowed  bool        `json:"allowed"`
	Reason   Reason      `json:"reason,omitempty"`
	Message  string      `json:"message,omitempty"`
	Usage    Usage       `json:"storage_info"`
	Required int64       `json:"required_space,omitempty"`
	After    *Projection `json:"after_upload,omitempty"`
}

// Summarize derives available space and the usage percentage, rounded to
// two decimals. A zero quota reports 0%.
func Summarize(quotaBytes, usedBytes int64) Usage {
	return Usage{
		Quota:      quotaBytes,
		Used:       usedBytes,
		Available:  quotaBytes - usedBytes,
		Percentage: percentage(usedBytes, quotaBytes),
	}
}

// Evaluate admits an upload of size bytes iff size <= quota - used.
func Evaluate(size, quotaBytes, usedBytes int64) Decision {
	usage := Summarize(quotaBytes, usedBytes)
	if size > usage.Available {
		return Decision{
			Allowed:  false,
			Reason:   ReasonInsufficientSpace,
			Message:  fmt.Sprintf("File size (%d bytes) exceeds available space (%d bytes)", size, usage.Available),
			Usage:    usage,
			Required: size,
		}
	}
	newUsed := usedBytes + size
	return Decision{
		Allowed:  true,
		Usage:    usage,
		Required: size,
		After: &Projection{
			Used:       newUsed,
			Available:  usage.Available - size,
			Percentage: percentage(newUsed, quotaBytes),
		},
	}
}

// FormatBytes renders a byte count with binary prefixes and one decimal place.
func FormatBytes(n int64) string {
	value := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.1f PB", value)
}

// FormattedUsage is Usage rendered for people.
type FormattedUsage struct {
	Quota     string `json:"quota"`
	Used      string `json:"used"`
	Available string `json:"available"`
}

// Formatted renders the byte counts of u with FormatBytes.
func (u Usage) Formatted() FormattedUsage {
	return FormattedUsage{
		Quota:     FormatBytes(u.Quota),
		Used:      FormatBytes(u.Used),
		Available: FormatBytes(u.Available),
	}
}

func percentage(used, quotaBytes int64) float64 {
	if quotaBytes <= 0 {
		return 0
	}
	return math.Round(float64(used)/float64(quotaBytes)*100*100) / 100
}
