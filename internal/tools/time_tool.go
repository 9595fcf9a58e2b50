package tools

import (
	"context"
	"fmt"
	"time"
)

// NewTimeTool creates the get_current_time tool
func NewTimeTool() *Tool {
	return &Tool{
		Name:        "get_current_time",
		Description: "Get the current time in a specific timezone",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "Timezone name (e.g., 'America/New_York', 'Asia/Tokyo', 'UTC'). Defaults to UTC.",
					"default":     "UTC",
				},
			},
			"required": []string{},
		},
		Execute:  executeGetCurrentTime,
		Category: "time",
	}
}

func executeGetCurrentTime(_ context.Context, args map[string]any) (string, error) {
	timezone := "UTC"
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		timezone = tz
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone '%s', use format like 'America/New_York' or 'UTC'", timezone)
	}

	return time.Now().In(loc).Format("2006-01-02 15:04:05 MST"), nil
}
