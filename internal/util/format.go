package util

import (
	"fmt"
	"time"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatSize renders a byte count with binary units, dropping trailing zeros
// from up to three decimals.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	exp, div := 0, int64(1)
	for size/div >= unit && exp < len(sizeUnits)-1 {
		div *= unit
		exp++
	}
	value := size / div
	if size%div == 0 {
		return fmt.Sprintf("%d %s", value, sizeUnits[exp])
	}

	decimal := (size % div) * 1000 / div
	switch {
	case decimal%10 != 0:
		return fmt.Sprintf("%d.%03d %s", value, decimal, sizeUnits[exp])
	case decimal%100 != 0:
		return fmt.Sprintf("%d.%02d %s", value, decimal/10, sizeUnits[exp])
	default:
		return fmt.Sprintf("%d.%d %s", value, decimal/100, sizeUnits[exp])
	}
}

// FormatRate renders a throughput for bytes moved over elapsed.
func FormatRate(bytes int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "-"
	}
	perSecond := float64(bytes) / elapsed.Seconds()
	return FormatSize(int64(perSecond)) + "/s"
}
