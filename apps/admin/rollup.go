package main

import (
	"context"
	"fmt"

	"github.com/trezcool/edupulse/core"
)

// rollup folds the daily metrics of the week containing date into that week's snapshot.
func (cli *commandLine) rollup(date string) error {
	if date == "" {
		date = cli.nowFunc().Format(core.DateLayout)
	}
	cw, err := cli.weeklySvc.Rollup(context.Background(), date)
	if err != nil {
		return err
	}
	fmt.Printf("rolled up %s - %s (%d systems)\n", cw.WeekStart, cw.WeekEnd, len(cw.Snapshot.Categories))
	return nil
}
