package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/handiism/quartus-catalog/internal/catalog"
	"github.com/handiism/quartus-catalog/internal/config"
	"github.com/handiism/quartus-catalog/internal/export"
	ioutils "github.com/handiism/quartus-catalog/internal/io"
)

func main() {
	// Command line flags
	var (
		configFlag   = flag.StringP("config", "c", "", "Path to config file (.yaml, .yml or .json)")
		outputFlag   = flag.StringP("output", "o", "quartus-catalog.json", "Catalog output path")
		sumsFlag     = flag.String("sha1sums", "", "Also write a sha1sum -c compatible checksum file")
		listFlag     = flag.String("list", "", "Also write a download list of the resolved artifacts")
		listFmtFlag  = flag.String("list-format", "aria2", "Download list format: urls, aria2 or metalink")
		cookiesFlag  = flag.String("cookies", "", "JSON cookie export to seed the session with")
		workersFlag  = flag.IntP("workers", "w", 0, "Concurrent page fetches and resolutions (overrides config)")
		verboseFlag  = flag.BoolP("verbose", "v", false, "Show verbose output")
		logJSONFlag  = flag.Bool("log-json", false, "Write logs to stderr as JSON")
		dryRunFlag   = flag.Bool("dry-run", false, "Discover groups without visiting version pages")
		noCDNFlag    = flag.Bool("no-cdn", false, "Skip CDN URL resolution")
		writeCfgFlag = flag.String("write-config", "", "Write the effective config to a file and exit")
	)

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Quartus Catalog - Index the Intel FPGA software download center")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  quartus-catalog [options]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "For interactive mode, use: quartus-tui")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if *verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}
	if *logJSONFlag {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	listFormat, err := export.ParseListFormat(*listFmtFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Apply flags
	if *workersFlag > 0 {
		settings.MaxConcurrentPages = *workersFlag
		settings.MaxConcurrentResolves = *workersFlag
	}

	if *writeCfgFlag != "" {
		if err := settings.Save(*writeCfgFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", *writeCfgFlag)
		return
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	session, err := settings.NewSession(*cookiesFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	// Create manager with progress callback
	manager, err := catalog.NewManager(settings, session, log, func(event catalog.ProgressEvent) {
		if event.Level == catalog.LevelVerbose && !*verboseFlag {
			return
		}

		prefix := ""
		switch event.Level {
		case catalog.LevelError:
			prefix = "❌ "
		case catalog.LevelWarning:
			prefix = "⚠️  "
		case catalog.LevelSuccess:
			prefix = "✅ "
		case catalog.LevelInfo:
			prefix = "ℹ️  "
		default:
			prefix = "   "
		}

		fmt.Println(prefix + event.Message)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("📦 Quartus Catalog")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Run %s\n\n", manager.RunID())

	cat, runErr := manager.Run(ctx, catalog.RunOptions{
		SkipArtifacts: *dryRunFlag,
		SkipCDN:       *noCDNFlag,
	})

	// Whatever was collected is written, even after a cancel.
	writeCtx := context.Background()
	if err := ioutils.WriteJSON(writeCtx, *outputFlag, cat); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing catalog: %v\n", err)
		os.Exit(1)
	}
	if *sumsFlag != "" {
		if err := ioutils.WriteFile(writeCtx, *sumsFlag, cat.SHA1Sums()); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing checksums: %v\n", err)
			os.Exit(1)
		}
	}

	if *listFlag != "" {
		content, err := export.NewListCreator(listFormat).CreateList(cat.Artifacts)
		if err == nil {
			err = ioutils.WriteFile(writeCtx, *listFlag, content)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing download list: %v\n", err)
			os.Exit(1)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			fmt.Printf("\nCancelled. Partial catalog written to %s\n", *outputFlag)
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error during run: %v\n", runErr)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("✨ Complete! %d groups, %d artifacts (%s), %d resolved\n",
		len(cat.Groups), len(cat.Artifacts), humanize.IBytes(uint64(cat.TotalBytes())), cat.Resolved())
	if len(cat.Failures) > 0 {
		fmt.Printf("   %d failures recorded in %s\n", len(cat.Failures), *outputFlag)
	}
	fmt.Printf("   Catalog written to %s\n", *outputFlag)
}
