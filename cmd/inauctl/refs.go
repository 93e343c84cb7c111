package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "Inspect the reference catalog",
}

var refsRepositoriesCmd = &cobra.Command{
	Use:     "repositories",
	Aliases: []string{"repos"},
	Short:   "List repositories",
	RunE:    runRefsRepositories,
}

var refsHostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List hosts, optionally filtered by facility",
	RunE:  runRefsHosts,
}

var refsFacilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "List facilities",
	RunE:  runRefsFacilities,
}

var refsUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users",
	RunE:  runRefsUsers,
}

func init() {
	refsHostsCmd.Flags().String("facility", "", "Only hosts of this facility")
	refsCmd.AddCommand(refsRepositoriesCmd)
	refsCmd.AddCommand(refsHostsCmd)
	refsCmd.AddCommand(refsFacilitiesCmd)
	refsCmd.AddCommand(refsUsersCmd)
}

func runRefsRepositories(cmd *cobra.Command, args []string) error {
	var rows []repository
	if err := newClient().getJSON("/api/v1/refs/repositories", &rows); err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rows)
	}
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{
			strconv.FormatInt(r.ID, 10),
			truncate(r.Name, 50),
			r.Destination,
			strconv.FormatBool(r.Enabled),
		})
	}
	printTable([]string{"ID", "Name", "Destination", "Enabled"}, table)
	return nil
}

func runRefsHosts(cmd *cobra.Command, args []string) error {
	path := "/api/v1/refs/hosts"
	if facility, _ := cmd.Flags().GetString("facility"); facility != "" {
		path += "?facility=" + facility
	}
	var rows []host
	if err := newClient().getJSON(path, &rows); err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rows)
	}
	table := make([][]string, 0, len(rows))
	for _, h := range rows {
		table = append(table, []string{
			strconv.FormatInt(h.ID, 10),
			h.Name,
			strconv.FormatInt(h.FacilityID, 10),
		})
	}
	printTable([]string{"ID", "Name", "Facility"}, table)
	return nil
}

func runRefsFacilities(cmd *cobra.Command, args []string) error {
	var rows []facility
	if err := newClient().getJSON("/api/v1/refs/facilities", &rows); err != nil {
		return fmt.Errorf("failed to list facilities: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rows)
	}
	table := make([][]string, 0, len(rows))
	for _, f := range rows {
		table = append(table, []string{strconv.FormatInt(f.ID, 10), f.Name})
	}
	printTable([]string{"ID", "Name"}, table)
	return nil
}

func runRefsUsers(cmd *cobra.Command, args []string) error {
	var rows []user
	if err := newClient().getJSON("/api/v1/refs/users", &rows); err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rows)
	}
	table := make([][]string, 0, len(rows))
	for _, u := range rows {
		table = append(table, []string{
			strconv.FormatInt(u.ID, 10),
			u.Name,
			strconv.FormatBool(u.Admin),
			strconv.FormatBool(u.Notify),
		})
	}
	printTable([]string{"ID", "Name", "Admin", "Notify"}, table)
	return nil
}
