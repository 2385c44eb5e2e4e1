package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/handiism/quartus-catalog/internal/config"
	"github.com/handiism/quartus-catalog/internal/tui"
)

func main() {
	var (
		configFlag  = flag.StringP("config", "c", "", "Path to config file (.yaml, .yml or .json)")
		outputFlag  = flag.StringP("output", "o", "", "Default catalog output path")
		cookiesFlag = flag.String("cookies", "", "JSON cookie export to seed the session with")
		logFileFlag = flag.String("log-file", "", "Write debug logs to this file")
	)
	flag.Parse()

	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// The terminal belongs to the UI.
	log := logrus.New()
	log.SetOutput(io.Discard)
	if *logFileFlag != "" {
		f, err := os.OpenFile(*logFileFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
		log.SetLevel(logrus.DebugLevel)
	}

	err := tui.Run(tui.Options{
		Settings:    settings,
		CookiesFile: *cookiesFlag,
		Output:      *outputFlag,
		Log:         log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
