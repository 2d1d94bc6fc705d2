package handler

import "fmt"

func formatMegabytes(bytes int64) string {
	const mb = 1024 * 1024
	if bytes < 0 {
		bytes = 0
	}
	return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
}
