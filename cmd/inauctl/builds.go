package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "Inspect and record builds",
}

var buildsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest successful build of a repository",
	RunE:  runBuildsLatest,
}

var buildsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one build",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildsGet,
}

var buildsArtifactsCmd = &cobra.Command{
	Use:   "artifacts <id>",
	Short: "List the artifacts of a build",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildsArtifacts,
}

func init() {
	buildsLatestCmd.Flags().String("repository", "", "Repository name")
	_ = buildsLatestCmd.MarkFlagRequired("repository")
	buildsGetCmd.Flags().String("date", "", "Build date, RFC3339")
	_ = buildsGetCmd.MarkFlagRequired("date")
	buildsArtifactsCmd.Flags().String("date", "", "Build date, RFC3339")
	_ = buildsArtifactsCmd.MarkFlagRequired("date")

	buildsCmd.AddCommand(buildsLatestCmd)
	buildsCmd.AddCommand(buildsGetCmd)
	buildsCmd.AddCommand(buildsArtifactsCmd)
}

func printBuild(rec *buildRecord) error {
	if outputFmt() != "table" {
		return printOutput(rec)
	}
	printTable(
		[]string{"ID", "Tag", "Status", "Date"},
		[][]string{{
			strconv.FormatInt(rec.ID, 10),
			rec.Tag,
			rec.Status,
			rec.Date.Format(time.RFC3339),
		}},
	)
	return nil
}

func runBuildsLatest(cmd *cobra.Command, args []string) error {
	repository, _ := cmd.Flags().GetString("repository")
	var rec buildRecord
	path := "/api/v1/builds/latest?repository=" + url.QueryEscape(repository)
	if err := newClient().getJSON(path, &rec); err != nil {
		return fmt.Errorf("failed to fetch latest build: %w", err)
	}
	return printBuild(&rec)
}

func runBuildsGet(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	var rec buildRecord
	path := fmt.Sprintf("/api/v1/builds/%s?date=%s", args[0], url.QueryEscape(date))
	if err := newClient().getJSON(path, &rec); err != nil {
		return fmt.Errorf("failed to fetch build: %w", err)
	}
	return printBuild(&rec)
}

func runBuildsArtifacts(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	var rows []artifact
	path := fmt.Sprintf("/api/v1/builds/%s/artifacts?date=%s", args[0], url.QueryEscape(date))
	if err := newClient().getJSON(path, &rows); err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}
	if outputFmt() != "table" {
		return printOutput(rows)
	}
	table := make([][]string, 0, len(rows))
	for _, a := range rows {
		hash := ""
		if a.Hash != nil {
			hash = truncate(*a.Hash, 12)
		}
		link := ""
		if a.SymlinkTarget != nil {
			link = *a.SymlinkTarget
		}
		table = append(table, []string{
			strconv.FormatInt(a.ID, 10),
			a.Filename,
			hash,
			link,
		})
	}
	printTable([]string{"ID", "Filename", "Hash", "Symlink"}, table)
	return nil
}
