package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/logbook/internal/backup"
	"github.com/kalambet/logbook/internal/config"
	"github.com/kalambet/logbook/internal/imagepool"
	"github.com/kalambet/logbook/internal/logbook"
	"github.com/kalambet/logbook/internal/query"
	"github.com/kalambet/logbook/internal/stats"
)

// --- records ---

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new entry",
	Long: `Record a new entry. The timestamp defaults to now.

Examples:
  logbook add --category solo --moisture dry
  logbook add --at 2024-01-01T21:30 --category partner --person Alex`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := logbook.EntryInput{}
		in.OccurredAt, _ = cmd.Flags().GetString("at")
		in.Category, _ = cmd.Flags().GetString("category")
		in.GenderTag, _ = cmd.Flags().GetString("gender")
		in.ExplicitnessTag, _ = cmd.Flags().GetString("explicitness")
		in.MoistureTag, _ = cmd.Flags().GetString("moisture")
		in.PersonName, _ = cmd.Flags().GetString("person")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/records", in)
		if err != nil {
			return err
		}

		var e logbook.Entry
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}

		printSuccess("Added entry %d on %s at %s", e.ID, e.DateKey, e.Time)
		return nil
	},
}

func init() {
	addCmd.Flags().String("at", "", "when it happened (RFC 3339 or YYYY-MM-DDTHH:MM local time)")
	addCmd.Flags().String("category", "", "category label")
	addCmd.Flags().String("gender", "", "gender tag")
	addCmd.Flags().String("explicitness", "", "explicitness tag")
	addCmd.Flags().String("moisture", "", "moisture tag")
	addCmd.Flags().String("person", "", "person name")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries, newest first",
	Long: `List entries, newest first. Filters match field values exactly.
With --from or --to, entries in the inclusive date range are listed oldest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		filters := map[query.Field]string{}
		for _, f := range query.Fields {
			if v, _ := cmd.Flags().GetString(string(f)); v != "" {
				filters[f] = v
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), recordsPath(filters, from, to, limit))
		if err != nil {
			return err
		}

		var entries []logbook.Entry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Println("No entries found.")
			return nil
		}
		for _, e := range entries {
			fmt.Println(formatEntry(e))
		}
		return nil
	},
}

func init() {
	for _, f := range query.Fields {
		listCmd.Flags().String(string(f), "", "only entries whose "+string(f)+" equals this value")
	}
	listCmd.Flags().String("from", "", "first date of a range (YYYY-MM-DD)")
	listCmd.Flags().String("to", "", "last date of a range (YYYY-MM-DD)")
	listCmd.Flags().Int("limit", 20, "maximum number of entries (0 for all)")
	listCmd.Flags().Bool("json", false, "print entries as JSON")
}

// recordsPath builds the list request. A range query ignores field filters.
func recordsPath(filters map[query.Field]string, from, to string, limit int) string {
	if from != "" || to != "" {
		v := url.Values{}
		if from != "" {
			v.Set("from", from)
		}
		if to != "" {
			v.Set("to", to)
		}
		return "/records/range?" + v.Encode()
	}

	v := url.Values{}
	for f, val := range filters {
		v.Set(string(f), val)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if len(v) == 0 {
		return "/records"
	}
	return "/records?" + v.Encode()
}

func formatEntry(e logbook.Entry) string {
	var tags []string
	for _, t := range []string{e.GenderTag, e.ExplicitnessTag, e.MoistureTag} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	line := fmt.Sprintf("%s  %s %s %s  %s",
		colorize(colorCyan, fmt.Sprintf("#%d", e.ID)),
		e.DateKey, e.Time, e.Weekday,
		colorize(colorBold, e.Category),
	)
	if len(tags) > 0 {
		line += "  [" + strings.Join(tags, ", ") + "]"
	}
	if e.PersonName != "" {
		line += "  " + e.PersonName
	}
	return line
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid entry id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/records/%d", id))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted entry %d", id)
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var sum stats.Summary
		if err := decodeJSON(resp, &sum); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}

		printSummary(os.Stdout, sum)
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "print statistics as JSON")
}

func printSummary(w io.Writer, sum stats.Summary) {
	fmt.Fprintf(w, "%s %d\n", colorize(colorBold, "Total:"), sum.Total)
	if sum.Last != nil {
		fmt.Fprintf(w, "%s #%d on %s at %s\n", colorize(colorBold, "Last:"), sum.Last.ID, sum.Last.DateKey, sum.Last.Time)
	}

	sections := []struct {
		title   string
		entries []stats.Entry
	}{
		{"Weekday", sum.PerWeekday},
		{"Category", sum.PerCategory},
		{"Gender", sum.PerGender},
		{"Explicitness", sum.PerExplicitness},
		{"Moisture", sum.PerMoisture},
		{"Person", sum.PerPerson},
		{fmt.Sprintf("Days in %d", sum.Year), sum.YearHighlight},
	}
	for _, s := range sections {
		if len(s.entries) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", colorize(colorBold, s.title))
		for _, e := range s.entries {
			fmt.Fprintf(w, "  %-12s %d\n", e.Key, e.Count)
		}
	}
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export entries",
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv",
	Short: "Export all entries as CSV, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/export/csv")
		if err != nil {
			return err
		}
		data, err := readBody(resp)
		if err != nil {
			return err
		}

		if err := writeOutput(output, data); err != nil {
			return err
		}
		if output != "" {
			printSuccess("CSV exported to %s", output)
		}
		return nil
	},
}

func init() {
	exportCSVCmd.Flags().String("output", "", "output file path (default: stdout)")
	exportCmd.AddCommand(exportCSVCmd)
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// --- backup ---

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import a JSON backup",
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON backup of all entries and the image pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/backup")
		if err != nil {
			return err
		}
		data, err := readBody(resp)
		if err != nil {
			return err
		}

		if err := writeOutput(output, data); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Backup written to %s", output)
		}
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON backup, adding its sessions as new entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading backup: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Importing %s...", args[0])
		resp, err := client.doRaw(cmd.Context(), "POST", "/backup", data)
		if err != nil {
			return err
		}

		var res backup.Result
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		for _, w := range res.Warnings {
			printWarning("%s", w)
		}
		printSuccess("Imported %d entries (%d skipped)", res.Applied, res.Skipped)
		if res.ImagePoolReplaced {
			printSuccess("Image pool replaced")
		}
		return nil
	},
}

func init() {
	backupExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupImportCmd)
}

// --- images ---

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Manage the image pool",
}

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List image pool entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/images")
		if err != nil {
			return err
		}

		var entries []imagepool.Entry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("Image pool is empty.")
			return nil
		}
		for _, e := range entries {
			line := e.URL
			if e.DisplayName != "" {
				line = colorize(colorBold, e.DisplayName) + "  " + line
			}
			if len(e.Tags) > 0 {
				line += "  [" + strings.Join(e.Tags, ", ") + "]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var imagesAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add an image URL to the pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		tagsStr, _ := cmd.Flags().GetString("tags")

		entry := imagepool.Entry{URL: args[0], DisplayName: name}
		if tagsStr != "" {
			entry.Tags = strings.Split(tagsStr, ",")
			for i := range entry.Tags {
				entry.Tags[i] = strings.TrimSpace(entry.Tags[i])
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/images", entry)
		if err != nil {
			return err
		}

		var result struct {
			Entry imagepool.Entry `json:"entry"`
			Added bool            `json:"added"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if !result.Added {
			printWarning("%s is already in the pool", result.Entry.URL)
			return nil
		}
		printSuccess("Added %s", result.Entry.URL)
		return nil
	},
}

var imagesRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Remove an image URL from the pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/images?url="+url.QueryEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]bool
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if !result["removed"] {
			printWarning("%s is not in the pool", args[0])
			return nil
		}
		printSuccess("Removed %s", args[0])
		return nil
	},
}

var imagesSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Replace the image pool with a JSON array read from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		if _, err := imagepool.DecodeEntries(data); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.doRaw(cmd.Context(), "PUT", "/images", data)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Image pool replaced")
		return nil
	},
}

func init() {
	imagesAddCmd.Flags().String("name", "", "display name")
	imagesAddCmd.Flags().String("tags", "", "comma-separated tags")
	imagesCmd.AddCommand(imagesListCmd)
	imagesCmd.AddCommand(imagesAddCmd)
	imagesCmd.AddCommand(imagesRemoveCmd)
	imagesCmd.AddCommand(imagesSetCmd)
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage stored data",
}

var dataWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all entries and the image pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL stored data. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/data?confirm=true")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("All data wiped")
		return nil
	},
}

func init() {
	dataWipeCmd.Flags().Bool("confirm", false, "confirm data wipe")
	dataCmd.AddCommand(dataWipeCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
