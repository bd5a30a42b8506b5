package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/topicmap/internal/botpolicy"
	"github.com/TobiSchelling/topicmap/internal/config"
	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/ingest"
	"github.com/TobiSchelling/topicmap/internal/pipeline"
	"github.com/TobiSchelling/topicmap/internal/search"
	"github.com/TobiSchelling/topicmap/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "topicmap",
	Short:   "Topic link graphs over time",
	Long:    "topicmap computes time-windowed link graphs of a topic's stories, aggregates per-story and per-medium link counts, and exports reduced media graphs.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(topicCmd)
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("topicmap", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/topicmap/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the search index, layout service and feeds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Corpus:")
		fmt.Printf("  Topics: %d\n", stats.Topics)
		fmt.Printf("  Media: %d\n", stats.Media)
		fmt.Printf("  Stories: %d\n", stats.Stories)
		fmt.Printf("  Links: %d\n", stats.Links)
		fmt.Printf("  Tweets: %d\n", stats.Tweets)
		fmt.Printf("  Foci: %d\n", stats.Foci)
		fmt.Println("\nOutput:")
		fmt.Printf("  Snapshots: %d\n", stats.Snapshots)
		fmt.Printf("  Timespans: %d\n", stats.Timespans)
		fmt.Println("\nServices:")
		fmt.Printf("  Search index: %s\n", orNone(cfg.Search.URL))
		fmt.Printf("  Layout service: %s\n", orNone(cfg.Layout.URL))
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(not configured)"
	}
	return s
}

// --- topic command ---

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage topics, custom date ranges and foci",
}

var (
	topicSocial    bool
	topicBotPolicy string
)

var topicAddCmd = &cobra.Command{
	Use:   "add [name] [start] [end]",
	Short: "Add a topic; end is the first day after the topic (YYYY-MM-DD)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(args[1], args[2])
		if err != nil {
			return err
		}
		policy, err := botpolicy.ParsePolicy(topicBotPolicy)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.InsertTopic(args[0], start, end, topicSocial, string(policy))
		if err != nil {
			return err
		}
		fmt.Printf("Added topic [%d]: %s (%s)\n", id, args[0], database.FormatRange(start, end))
		return nil
	},
}

var topicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		topics, err := db.GetAllTopics()
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			fmt.Println("No topics defined. Add one with: topicmap topic add")
			return nil
		}

		fmt.Println("Topics:")
		fmt.Println()
		for _, t := range topics {
			social := ""
			if t.IsSocial {
				social = " social"
			}
			fmt.Printf("  [%d] %s  %s  bots=%s%s\n", t.ID, t.Name, database.FormatRange(t.StartDate, t.EndDate), t.BotPolicy, social)

			ranges, _ := db.GetTopicDateRanges(t.ID)
			for _, r := range ranges {
				fmt.Printf("        custom %s\n", database.FormatRange(r.StartDate, r.EndDate))
			}
			foci, _ := db.GetTopicFoci(t.ID)
			for _, f := range foci {
				fmt.Printf("        focus [%d] %s/%s: %s\n", f.ID, f.FocalSetName, f.Name, f.Query)
			}
		}
		return nil
	},
}

var topicDatesCmd = &cobra.Command{
	Use:   "dates [topic] [start] [end]",
	Short: "Add a custom date range to a topic",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(args[1], args[2])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		topic, err := resolveTopic(db, args[0])
		if err != nil {
			return err
		}
		if err := db.InsertTopicDateRange(topic.ID, start, end); err != nil {
			return err
		}
		fmt.Printf("Added custom range %s to %s\n", database.FormatRange(start, end), topic.Name)
		return nil
	},
}

var topicFocusCmd = &cobra.Command{
	Use:   "focus [topic] [focal-set] [name] [query]",
	Short: "Add a focus (named search query) to a topic",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := search.ValidateQuery(args[3]); err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		topic, err := resolveTopic(db, args[0])
		if err != nil {
			return err
		}
		setID, err := db.InsertFocalSet(topic.ID, args[1])
		if err != nil {
			return err
		}
		id, err := db.InsertFocus(setID, args[2], args[3])
		if err != nil {
			return err
		}
		fmt.Printf("Added focus [%d] %s/%s to %s\n", id, args[1], args[2], topic.Name)
		return nil
	},
}

var topicTweetsCmd = &cobra.Command{
	Use:   "tweets [topic] [file.csv]",
	Short: "Import tweets sharing the topic's stories from a CSV file",
	Long:  "Import tweets from a CSV file with the columns " + strings.Join(ingest.TweetColumns, ",") + ". Rows whose story_url is not a story of the topic are skipped.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		topic, err := resolveTopic(db, args[0])
		if err != nil {
			return err
		}
		if !topic.IsSocial {
			log.Printf("Warning: %s is not a social-media topic; its bot policy will not apply", topic.Name)
		}

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		result, err := ingest.ImportTweets(db, topic.ID, f)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d of %d tweets into %s\n", result.Imported, result.Rows, topic.Name)
		if result.UnknownStory > 0 || result.InvalidRecord > 0 {
			fmt.Printf("  Skipped: %d unknown stories, %d invalid rows\n", result.UnknownStory, result.InvalidRecord)
		}
		return nil
	},
}

func init() {
	topicAddCmd.Flags().BoolVar(&topicSocial, "social", false, "Topic is seeded from social media")
	topicAddCmd.Flags().StringVar(&topicBotPolicy, "bot-policy", "all", "Tweet filter: all, no_bots or only_bots")

	topicCmd.AddCommand(topicAddCmd)
	topicCmd.AddCommand(topicListCmd)
	topicCmd.AddCommand(topicDatesCmd)
	topicCmd.AddCommand(topicFocusCmd)
	topicCmd.AddCommand(topicTweetsCmd)
}

// --- media command ---

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage media",
}

var mediaTagCmd = &cobra.Command{
	Use:   "tag [medium-id] [tag-set] [tag]",
	Short: "Tag a medium; tag sets drive node colors in exported graphs",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		m, err := tagMedium(db, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Tagged %s [%d] with %s=%s\n", m.Name, m.ID, args[1], args[2])
		return nil
	},
}

func init() {
	mediaCmd.AddCommand(mediaTagCmd)
}

// tagMedium sets the medium's tag in tagSet, replacing any earlier tag in that set.
func tagMedium(db *database.DB, idArg, tagSet, tag string) (*database.Medium, error) {
	id, err := parseID(idArg, "medium")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(tagSet) == "" || strings.TrimSpace(tag) == "" {
		return nil, fmt.Errorf("tag set and tag must not be empty")
	}
	media, err := db.GetMedia([]int64{id})
	if err != nil {
		return nil, err
	}
	m, ok := media[id]
	if !ok {
		return nil, fmt.Errorf("medium %d not found", id)
	}
	if err := db.SetMediumTag(id, tagSet, tag); err != nil {
		return nil, err
	}
	return &m, nil
}

// --- ingest command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [topic]",
	Short: "Load the topic's configured feeds into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		topic, err := resolveTopic(db, args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Ingesting feeds for %s...\n", topic.Name)
		result, err := ingest.New(cfg, db).Ingest(ctx, topic.ID)
		if err != nil {
			return err
		}

		fmt.Println("\nIngest complete:")
		fmt.Printf("  Feeds: %d (%d failed)\n", result.Feeds, result.FailedFeeds)
		fmt.Printf("  Items found: %d\n", result.Found)
		fmt.Printf("  Stories stored: %d (%d undateable)\n", result.Stories, result.Undateable)
		fmt.Printf("  Outside topic dates: %d\n", result.OutOfRange)
		fmt.Printf("  Pages fetched: %d (%d failed, %d dated from page)\n", result.Fetched, result.FetchFailed, result.PageDated)
		fmt.Printf("  Links recorded: %d\n", result.Links)

		if len(result.Sources) > 0 {
			fmt.Println("\nStories by medium:")
			// Sort sources by count descending
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		return nil
	},
}

// --- snapshot command ---

var dryRun bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [topic]",
	Short: "Compute every timespan of a topic: overall, weekly, monthly and custom, unfocused and per focus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		topic, err := resolveTopic(db, args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipe := pipeline.New(cfg, db)
		var result *pipeline.Result
		if dryRun {
			result, err = pipe.DryRun(topic.ID)
		} else {
			result, err = pipe.RunSnapshot(ctx, topic.ID)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if err != nil {
			return err
		}

		if !dryRun {
			fmt.Printf("\nSnapshot %d complete! Run 'topicmap serve' to browse it.\n", result.SnapshotID)
		}
		return nil
	},
}

func init() {
	snapshotCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- export command ---

var (
	exportOutput     string
	exportMaxSources int
	exportColorField string
	exportExclude    []int64
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a completed timespan",
}

var exportGraphCmd = &cobra.Command{
	Use:   "graph [timespan-id]",
	Short: "Export the timespan's reduced media graph as GEXF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "timespan")
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		opts := cfg.GraphOptions()
		if exportMaxSources > 0 {
			opts.MaxSources = exportMaxSources
		}
		if exportColorField != "" {
			opts.ColorField = exportColorField
		}
		opts.ExcludeSourceIDs = exportExclude

		data, err := pipeline.New(cfg, db).ExportGraph(context.Background(), id, opts)
		if err != nil {
			return err
		}
		return writeOutput(bytes.NewReader(data))
	},
}

var exportMediaCmd = &cobra.Command{
	Use:   "media [timespan-id]",
	Short: "Export the timespan's per-medium counts as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "timespan")
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var buf bytes.Buffer
		if err := pipeline.New(cfg, db).ExportMediaTable(context.Background(), &buf, id); err != nil {
			return err
		}
		return writeOutput(&buf)
	},
}

func init() {
	exportCmd.PersistentFlags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	exportGraphCmd.Flags().IntVar(&exportMaxSources, "max-sources", 0, "Override graph.max_sources")
	exportGraphCmd.Flags().StringVar(&exportColorField, "color-field", "", "Override graph.color_field")
	exportGraphCmd.Flags().Int64SliceVar(&exportExclude, "exclude", nil, "Media IDs to leave out of the graph")

	exportCmd.AddCommand(exportGraphCmd)
	exportCmd.AddCommand(exportMediaCmd)
}

func writeOutput(r io.Reader) error {
	if exportOutput == "" {
		_, err := io.Copy(os.Stdout, r)
		return err
	}
	f, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", exportOutput)
	return nil
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") || port == 0 {
			port = servePort
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, pipeline.New(cfg, db), cfg.GraphOptions(), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func parseRange(startArg, endArg string) (start, end time.Time, err error) {
	if start, err = database.ParseDate(startArg); err != nil {
		return
	}
	if end, err = database.ParseDate(endArg); err != nil {
		return
	}
	if !end.After(start) {
		err = fmt.Errorf("end %s must be after start %s", endArg, startArg)
	}
	return
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s ID: %s", what, arg)
	}
	return id, nil
}

// resolveTopic accepts a topic ID or name.
func resolveTopic(db *database.DB, arg string) (*database.Topic, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		topic, err := db.GetTopic(id)
		if err != nil {
			return nil, err
		}
		if topic == nil {
			return nil, fmt.Errorf("topic %d not found", id)
		}
		return topic, nil
	}

	topics, err := db.GetAllTopics()
	if err != nil {
		return nil, err
	}
	for i := range topics {
		if topics[i].Name == arg {
			return &topics[i], nil
		}
	}
	return nil, fmt.Errorf("topic %q not found", arg)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "topicmap.db")
	return database.Open(dbPath)
}
