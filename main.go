package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HederaPayBot/hbarpay/pkg/auth"
	"github.com/HederaPayBot/hbarpay/pkg/config"
	"github.com/HederaPayBot/hbarpay/pkg/gateway"
	"github.com/HederaPayBot/hbarpay/pkg/pricing"
	"github.com/HederaPayBot/hbarpay/pkg/server"
	"github.com/HederaPayBot/hbarpay/pkg/syncer"
	"github.com/HederaPayBot/hbarpay/pkg/tui"
)

// Version should be set during build
var Version = "dev"

// configReport is the -t mode output.
type configReport struct {
	ConfigPath       string   `json:"config_path"`
	ValidStructure   bool     `json:"valid_structure"`
	StructureErrors  []string `json:"structure_errors,omitempty"`
	APIBaseURL       string   `json:"api_base_url"`
	Network          string   `json:"network"`
	BackendReachable bool     `json:"backend_reachable"`
	BackendError     string   `json:"backend_error,omitempty"`
}

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output test results as JSON")
	configFlag := flag.String("config", "", "Path to configuration file")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8080, "Port for the consumer API server")
	handleFlag := flag.String("handle", "", "Authenticate as this Twitter handle at startup")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("hbarpay version %s\n", Version)
		os.Exit(0)
	}

	path, err := config.GetConfigPath(*configFlag)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}

	if *testFlag || *testLongFlag {
		os.Exit(runConfigTest(cfg, path, *jsonFlag))
	}

	gw := gateway.NewClient(cfg.APIBaseURL)
	if cfg.SessionToken != "" {
		gw.SetAuthToken(cfg.SessionToken)
	}

	var priceSource pricing.Source
	if cfg.PriceOverrideUSD != "" {
		p, err := decimal.NewFromString(cfg.PriceOverrideUSD)
		if err != nil {
			fmt.Printf("Error: price_override_usd %q is not a number\n", cfg.PriceOverrideUSD)
			os.Exit(1)
		}
		priceSource = pricing.Static{Price: p}
	} else {
		priceSource = pricing.NewCoinGecko(cfg.CoinGeckoID)
	}

	tracker := auth.NewTracker()
	s := syncer.New(gw, syncer.Options{
		Network:       cfg.Network,
		TokenPageSize: cfg.TokenPageSize,
		PollInterval:  cfg.PollInterval(),
		Price:         priceSource,
	})
	s.Start(context.Background(), tracker)

	srv := server.NewServer(s, tracker)
	go func() {
		if err := srv.Start(*portFlag); err != nil {
			fmt.Printf("Server error: %v\n", err)
		}
	}()

	handle := *handleFlag
	if handle != "" && handle != cfg.TwitterHandle {
		cfg.TwitterHandle = handle
		if err := config.Save(cfg, path); err != nil {
			fmt.Printf("Warning: could not persist handle to config: %v\n", err)
		}
	}
	if handle == "" {
		handle = cfg.TwitterHandle
	}
	if handle != "" {
		tracker.SetAuthenticated(handle)
	} else {
		tracker.SetReady()
	}

	if *serverFlag {
		fmt.Printf("Running in server mode on port %d...\n", *portFlag)
		select {} // Keep alive
	}

	tui.Start(s, tracker, cfg, Version)
}

func runConfigTest(cfg config.Config, path string, asJSON bool) int {
	report := configReport{
		ConfigPath:     path,
		ValidStructure: true,
		APIBaseURL:     cfg.APIBaseURL,
		Network:        cfg.Network,
	}

	if err := cfg.Validate(); err != nil {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
	}

	if report.ValidStructure {
		if !asJSON {
			fmt.Printf("Testing backend at: %s ... ", cfg.APIBaseURL)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := gateway.NewClient(cfg.APIBaseURL).Health(ctx); err != nil {
			report.BackendError = err.Error()
			if !asJSON {
				fmt.Printf("Failed: %v\n", err)
			}
		} else {
			report.BackendReachable = true
			if !asJSON {
				fmt.Println("OK")
			}
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else if !report.ValidStructure {
		for _, e := range report.StructureErrors {
			fmt.Printf("Error: %s\n", e)
		}
	}

	if !report.ValidStructure || !report.BackendReachable {
		return 1
	}
	return 0
}
