package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/tenderscope/internal/config"
	"github.com/kalambet/tenderscope/internal/tender"
)

// --- ingest ---

type ingestResult struct {
	Status string `json:"status"`
	tender.IngestionResult
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.csv>",
	Short: "Upload a CSV file of tenders",
	Long: `Upload a CSV file of tenders to the running server.

Examples:
  tenderscope ingest ./tenders.csv
  tenderscope ingest --json ./tenders.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening file: %w", err)
		}
		defer f.Close()

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.upload(cmd.Context(), "/ingest", path, f)
		if err != nil {
			return err
		}

		var res ingestResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(res)
		}

		printSuccess("Ingested %s", path)
		printStatus("Rows read", "%d", res.RecordsIngested)
		printStatus("Cleaned", "%d (%d new, %d updated)", res.RecordsCleaned, res.Inserted, res.Updated)
		printStatus("Anomalies", "%d", res.Anomalies)
		printStatus("Duplicates", "%d", res.Duplicates)
		printStatus("Skipped", "%d", res.SkippedRows)
		for _, n := range res.Notes {
			fmt.Printf("    line %d  %s  %s\n", n.Line, colorize(colorYellow, n.Kind), n.Message)
		}
		return nil
	},
}

// --- search ---

type searchHit struct {
	TenderID     string  `json:"tender_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Organization string  `json:"organization"`
	Category     string  `json:"category"`
	Location     string  `json:"location"`
	Value        float64 `json:"value"`
	Currency     string  `json:"currency"`
	Similarity   float64 `json:"similarity"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over ingested tenders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/search", map[string]any{"query": query, "limit": limit})
		if err != nil {
			return err
		}

		var out struct {
			Query   string      `json:"query"`
			Results []searchHit `json:"results"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out)
		}

		if len(out.Results) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		for i, r := range out.Results {
			fmt.Printf("\n%s %s [%.0f%% match]\n",
				colorize(colorBold, fmt.Sprintf("%d.", i+1)),
				colorize(colorBold, r.Title),
				r.Similarity*100,
			)
			fmt.Printf("  %s  %s  %s  %.2f %s\n",
				colorize(colorCyan, r.TenderID), r.Organization, r.Category, r.Value, r.Currency)
			if r.Description != "" {
				fmt.Printf("  %s\n", truncate(r.Description, 200))
			}
		}
		return nil
	},
}

// --- health ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show pipeline health",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/pipeline-health")
		if err != nil {
			return err
		}

		var snap tender.HealthSnapshot
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(snap)
		}

		printStatus("Status", "%s", colorize(statusColor(string(snap.Status)), string(snap.Status)))
		printStatus("Total records", "%d", snap.TotalRecords)
		printStatus("Clean records", "%d", snap.CleanRecords)
		printStatus("Indexed records", "%d", snap.IndexedRecords)
		printStatus("Quality score", "%.2f", snap.QualityScore)
		if snap.LastIngestion != nil {
			printStatus("Last ingestion", "%s", snap.LastIngestion.Format("2006-01-02 15:04:05 MST"))
		} else {
			printStatus("Last ingestion", "never")
		}
		if r := snap.LastRun; r != nil {
			printStatus("Last file", "%s (%d cleaned of %d, %d duplicates)", r.Filename, r.RecordsCleaned, r.RecordsIngested, r.Duplicates)
		}
		if n, ok := snap.Errors["issue_count"]; ok {
			printStatus("Issues", "%v", n)
		}
		return nil
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the data-quality checks now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/validate", nil)
		if err != nil {
			return err
		}

		var ack struct {
			RunID        string  `json:"run_id"`
			QualityScore float64 `json:"quality_score"`
			TotalChecks  int     `json:"total_checks"`
		}
		if err := decodeJSON(resp, &ack); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(ack)
		}

		printSuccess("Validation %s complete: score %.2f, %d failing checks", ack.RunID, ack.QualityScore, ack.TotalChecks)
		return nil
	},
}

// --- quality ---

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "List recent data-quality findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/data-quality?limit=%d", limit))
		if err != nil {
			return err
		}

		var out struct {
			TotalChecks int                 `json:"total_checks"`
			Logs        []tender.QualityLog `json:"logs"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out)
		}

		if len(out.Logs) == 0 {
			fmt.Println("No quality findings.")
			return nil
		}
		for _, l := range out.Logs {
			fmt.Printf("%s  %-8s %-20s %4d  %s\n",
				l.Timestamp.Format("2006-01-02 15:04"),
				colorize(statusColor(string(l.Severity)), string(l.Severity)),
				l.CheckType,
				l.RecordCount,
				l.Message,
			)
		}
		return nil
	},
}

// --- tenders ---

var tendersCmd = &cobra.Command{
	Use:   "tenders",
	Short: "List the most recently updated tenders",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		v := url.Values{}
		v.Set("limit", fmt.Sprint(limit))
		resp, err := client.get(cmd.Context(), "/tenders?"+v.Encode())
		if err != nil {
			return err
		}

		var ts []tender.Tender
		if err := decodeJSON(resp, &ts); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(ts)
		}

		if len(ts) == 0 {
			fmt.Println("No tenders found.")
			return nil
		}
		for _, t := range ts {
			fmt.Printf("%s  %s  %s  %.2f %s\n",
				colorize(colorCyan, t.TenderID),
				truncate(t.Title, 60),
				t.Organization,
				t.Value,
				t.Currency,
			)
		}
		return nil
	},
}

// --- reset ---

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every tender, run and quality log",
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

		resp, err := client.post(cmd.Context(), "/reset", nil)
		if err != nil {
			return err
		}
		var out map[string]string
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		printSuccess("All data deleted")
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
	qualityCmd.Flags().Int("limit", 20, "maximum number of findings")
	tendersCmd.Flags().Int("limit", 50, "maximum number of tenders")
	resetCmd.Flags().Bool("confirm", false, "confirm deletion")
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

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file.\n\nValid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
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
