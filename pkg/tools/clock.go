package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ClockTool reports the current time in a given IANA zone. Supplements the
// spec's single calculate tool to exercise the registry's multi-tool
// dispatch and manifest generation beyond one hard-coded case (see
// SPEC_FULL.md "Supplemented features").
type ClockTool struct {
	now func() time.Time
}

func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (ClockTool) Describe() Info {
	return Info{
		Name:        "clock",
		Description: "Get the current time in a given IANA time zone",
		Parameters: []Parameter{
			{Name: "timezone", Type: "string", Description: `IANA zone name, e.g. "UTC", "America/New_York"`, Required: false, Default: "UTC"},
		},
	}
}

type clockArgs struct {
	Timezone string `json:"timezone"`
}

func (c ClockTool) Execute(_ context.Context, argsJSON string) (interface{}, error) {
	args := clockArgs{Timezone: "UTC"}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if args.Timezone == "" {
		args.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(args.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", args.Timezone, err)
	}
	now := c.now().In(loc)
	return map[string]interface{}{
		"timezone": args.Timezone,
		"time":     now.Format(time.RFC3339),
	}, nil
}
