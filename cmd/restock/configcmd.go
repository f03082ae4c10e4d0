package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"restock/pkg/config"
)

func newConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/restock/config.json)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// Cookies are credentials; never echo them.
			for id, dest := range cfg.Destinations {
				if dest.Cookie != "" {
					dest.Cookie = "(set)"
					cfg.Destinations[id] = dest
				}
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			fmt.Printf("Set %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(showCmd, setCmd)
	return cmd
}

func setConfigValue(cfg *config.Config, key, value string) error {
	// Per-destination keys: destinations.<id>.cookie, destinations.<id>.corpus_dir
	if rest, ok := strings.CutPrefix(key, "destinations."); ok {
		id, field, ok := strings.Cut(rest, ".")
		if !ok || id == "" {
			return fmt.Errorf("destination key must be destinations.<id>.cookie or destinations.<id>.corpus_dir")
		}
		dest := cfg.Destinations[id]
		switch field {
		case "cookie":
			dest.Cookie = value
		case "corpus_dir":
			dest.CorpusDir = value
		default:
			return fmt.Errorf("unknown destination field: %s", field)
		}
		cfg.Destinations[id] = dest
		return nil
	}

	switch key {
	case "assets_price":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("assets_price must be an integer: %w", err)
		}
		cfg.AssetsPrice = n
	case "description":
		cfg.Description = value
	case "sleep_each_upload":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("sleep_each_upload must be an integer: %w", err)
		}
		cfg.SleepEachUpload = n
	case "max_nudity_value":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("max_nudity_value must be a number: %w", err)
		}
		cfg.MaxNudityValue = f
	case "dupe_check":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("dupe_check must be true or false: %w", err)
		}
		cfg.DupeCheck = &b
	case "abort_run_on_insufficient_funds":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("abort_run_on_insufficient_funds must be true or false: %w", err)
		}
		cfg.AbortRunOnInsufficientFunds = b
	case "ledger.backend":
		if value != "file" && value != "sqlite" {
			return fmt.Errorf("ledger.backend must be file or sqlite")
		}
		cfg.Ledger.Backend = value
	case "ledger.path":
		cfg.Ledger.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
