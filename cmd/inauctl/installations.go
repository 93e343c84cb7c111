package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var installationsCmd = &cobra.Command{
	Use:   "installations",
	Short: "Inspect and record installations",
}

var installationsCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show what is installed right now for a host and repository",
	RunE:  runInstallationsCurrent,
}

var installationsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the full version history for a host and repository",
	RunE:  runInstallationsHistory,
}

var installationsAsOfCmd = &cobra.Command{
	Use:   "as-of",
	Short: "Show what was installed at a past instant",
	RunE:  runInstallationsAsOf,
}

var installationsActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "List every live installation, optionally for one host",
	RunE:  runInstallationsActive,
}

var installationsPutCmd = &cobra.Command{
	Use:   "put",
	Short: "Record an installation",
	RunE:  runInstallationsPut,
}

func entityFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", "", "Host name")
	cmd.Flags().String("repository", "", "Repository name")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("repository")
}

func init() {
	entityFlags(installationsCurrentCmd)
	entityFlags(installationsHistoryCmd)
	installationsHistoryCmd.Flags().Int("limit", 0, "Most recent versions to show (0 = all)")
	entityFlags(installationsAsOfCmd)
	installationsAsOfCmd.Flags().String("ts", "", "Instant to query, RFC3339")
	_ = installationsAsOfCmd.MarkFlagRequired("ts")
	installationsActiveCmd.Flags().Int64("host-id", 0, "Only installations of this host")

	installationsPutCmd.Flags().String("host", "", "Host name")
	installationsPutCmd.Flags().Int64("build", 0, "Build id")
	installationsPutCmd.Flags().String("build-date", "", "Build date, RFC3339")
	installationsPutCmd.Flags().String("kind", "production", "Installation kind: production, staging or development")
	_ = installationsPutCmd.MarkFlagRequired("host")
	_ = installationsPutCmd.MarkFlagRequired("build")
	_ = installationsPutCmd.MarkFlagRequired("build-date")

	installationsCmd.AddCommand(installationsCurrentCmd)
	installationsCmd.AddCommand(installationsHistoryCmd)
	installationsCmd.AddCommand(installationsAsOfCmd)
	installationsCmd.AddCommand(installationsActiveCmd)
	installationsCmd.AddCommand(installationsPutCmd)
}

func entityQuery(cmd *cobra.Command) string {
	hostName, _ := cmd.Flags().GetString("host")
	repository, _ := cmd.Flags().GetString("repository")
	return "host=" + url.QueryEscape(hostName) + "&repository=" + url.QueryEscape(repository)
}

func versionRows(versions []versionRecord) [][]string {
	table := make([][]string, 0, len(versions))
	for _, v := range versions {
		validTo := "active"
		if v.ValidTo != nil {
			validTo = v.ValidTo.Format(time.RFC3339)
		}
		table = append(table, []string{
			v.EntityID,
			strconv.FormatInt(v.BuildID, 10),
			v.Kind,
			v.ValidFrom.Format(time.RFC3339),
			validTo,
		})
	}
	return table
}

var versionHeaders = []string{"Entity", "Build", "Kind", "Valid from", "Valid to"}

func runInstallationsCurrent(cmd *cobra.Command, args []string) error {
	var rec versionRecord
	if err := newClient().getJSON("/api/v1/installations/current?"+entityQuery(cmd), &rec); err != nil {
		return fmt.Errorf("failed to fetch current installation: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rec)
	}
	printTable(versionHeaders, versionRows([]versionRecord{rec}))
	return nil
}

func runInstallationsHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	path := "/api/v1/installations/history?" + entityQuery(cmd)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var versions []versionEntry
	if err := newClient().getJSON(path, &versions); err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(versions)
	}
	table := make([][]string, 0, len(versions))
	for _, v := range versions {
		validTo := "active"
		if v.ValidTo != nil {
			validTo = v.ValidTo.Format(time.RFC3339)
		}
		table = append(table, []string{
			strconv.FormatInt(v.BuildID, 10),
			v.Kind,
			v.ValidFrom.Format(time.RFC3339),
			validTo,
			v.Duration.Round(time.Second).String(),
		})
	}
	printTable([]string{"Build", "Kind", "Valid from", "Valid to", "Duration"}, table)
	return nil
}

func runInstallationsAsOf(cmd *cobra.Command, args []string) error {
	ts, _ := cmd.Flags().GetString("ts")
	path := "/api/v1/installations/as-of?" + entityQuery(cmd) + "&ts=" + url.QueryEscape(ts)
	var rec versionRecord
	if err := newClient().getJSON(path, &rec); err != nil {
		return fmt.Errorf("failed to fetch installation: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rec)
	}
	printTable(versionHeaders, versionRows([]versionRecord{rec}))
	return nil
}

func runInstallationsActive(cmd *cobra.Command, args []string) error {
	path := "/api/v1/installations/"
	if hostID, _ := cmd.Flags().GetInt64("host-id"); hostID != 0 {
		path += "?hostId=" + strconv.FormatInt(hostID, 10)
	}
	var versions []versionRecord
	if err := newClient().getJSON(path, &versions); err != nil {
		return fmt.Errorf("failed to list installations: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(versions)
	}
	printTable(versionHeaders, versionRows(versions))
	return nil
}

func runInstallationsPut(cmd *cobra.Command, args []string) error {
	hostName, _ := cmd.Flags().GetString("host")
	buildID, _ := cmd.Flags().GetInt64("build")
	buildDate, _ := cmd.Flags().GetString("build-date")
	kind, _ := cmd.Flags().GetString("kind")

	parsedDate, err := time.Parse(time.RFC3339, buildDate)
	if err != nil {
		return fmt.Errorf("--build-date must be RFC3339: %w", err)
	}

	var rec versionRecord
	err = newClient().postJSON("/api/v1/installations/", map[string]any{
		"host":      hostName,
		"buildId":   buildID,
		"buildDate": parsedDate,
		"kind":      kind,
	}, &rec)
	if err != nil {
		return fmt.Errorf("failed to record installation: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rec)
	}
	printTable(versionHeaders, versionRows([]versionRecord{rec}))
	return nil
}
