// utilitário pequeno para formatação consistente de valores numéricos em headers.

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// formatUnixMilli usa milissegundos, o mesmo formato de resetTime no corpo do 429.
func formatUnixMilli(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
