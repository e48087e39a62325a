package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"agribot/internal/config"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your AgriBot installation",
		Long: `Verifies that AgriBot's configuration, API credentials, database, and
host resources are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("AgriBot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'agribot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Required API keys
			if cfg.Model.APIKey == "" {
				printFail("Model API key", "model.apiKey is empty; the bot cannot answer")
				failed++
			} else {
				printPass("Model API key", "configured")
				passed++
			}
			if cfg.Weather.APIKey == "" {
				printWarn("Weather API key", "weather.apiKey empty; weather questions will fall back")
				warned++
			} else {
				printPass("Weather API key", "configured")
				passed++
			}
			if cfg.Vision.Token == "" {
				printWarn("Vision token", "vision.token empty; classifier may be rate limited")
				warned++
			} else {
				printPass("Vision token", "configured")
				passed++
			}

			// 4. Database writable
			if err := checkDatabase(cfg.Store.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.Store.DBPath)
				passed++
			}

			// 5. Planting calendar override parses
			if cfg.Advisory.CalendarPath != "" {
				if _, err := os.Stat(cfg.Advisory.CalendarPath); err != nil {
					printFail("Planting calendar", fmt.Sprintf("not found: %s", cfg.Advisory.CalendarPath))
					failed++
				} else {
					printPass("Planting calendar", cfg.Advisory.CalendarPath)
					passed++
				}
			}

			// 6. Web port available
			if cfg.Channels.Web.Enabled {
				port := cfg.Channels.Web.Port
				if port == 0 {
					port = 8080
				}
				if err := checkPort(port); err != nil {
					printWarn("Web port", fmt.Sprintf("port %d may be in use: %v", port, err))
					warned++
				} else {
					printPass("Web port", fmt.Sprintf(":%d available", port))
					passed++
				}
			}

			// 7. Host resources
			if vm, err := mem.VirtualMemory(); err == nil {
				detail := fmt.Sprintf("%.1f%% used (%.1f GB free)",
					vm.UsedPercent, float64(vm.Available)/(1<<30))
				if vm.UsedPercent > 90 {
					printWarn("Memory", detail)
					warned++
				} else {
					printPass("Memory", detail)
					passed++
				}
			}
			if du, err := disk.Usage(filepath.Dir(cfg.Store.DBPath)); err == nil {
				detail := fmt.Sprintf("%.1f%% used (%.1f GB free)",
					du.UsedPercent, float64(du.Free)/(1<<30))
				if du.UsedPercent > 95 {
					printFail("Disk", detail)
					failed++
				} else {
					printPass("Disk", detail)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running AgriBot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nAgriBot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! AgriBot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
