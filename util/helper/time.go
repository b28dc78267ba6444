package helper_util

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// Helper function to parse time
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	return t, err
}

// GetTimeWindowParams reads the from/to query parameters, defaulting to the
// last 24 hours.
func GetTimeWindowParams(c *gin.Context) (from, to time.Time, err error) {
	to = time.Now().UTC()
	from = to.Add(-24 * time.Hour)

	if s := c.Query("from"); s != "" {
		from, err = ParseTime(s)
		if err != nil {
			return from, to, fmt.Errorf("invalid from parameter: %w", err)
		}
	}
	if s := c.Query("to"); s != "" {
		to, err = ParseTime(s)
		if err != nil {
			return from, to, fmt.Errorf("invalid to parameter: %w", err)
		}
	}
	return from, to, nil
}
