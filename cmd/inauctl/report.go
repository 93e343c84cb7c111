package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregated views over the ledger",
}

var reportFacilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "Active installations per facility",
	RunE:  runReportFacilities,
}

func init() {
	reportCmd.AddCommand(reportFacilitiesCmd)
}

func runReportFacilities(cmd *cobra.Command, args []string) error {
	var rows []facilityCount
	if err := newClient().getJSON("/api/v1/reports/facilities", &rows); err != nil {
		return fmt.Errorf("failed to fetch report: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rows)
	}
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{r.Facility, strconv.FormatInt(r.Active, 10)})
	}
	printTable([]string{"Facility", "Active"}, table)
	return nil
}
