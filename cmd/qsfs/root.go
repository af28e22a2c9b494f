package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"

	"go.qsfs.dev/qsfs/internal/mlockall"
)

var logLevel slog.LevelVar

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "qsfs",
	Short: "Quantum-safe file sealing: ML-KEM-1024 + ML-DSA-87 sealed containers",
	Long: `qsfs seals and unseals QSFS containers: files encrypted to one or more
recipients with ML-KEM-1024 and authenticated with ML-DSA-87 detached
header signatures.`,
}

// Execute parses flags and runs the selected command; child commands are
// attached to the root command by each file's init. It is called by
// main.main and only needs to run once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "print debug logging")
	rootCmd.PersistentFlags().String("trust-db", "", "path to the SQLite trust database")
	rootCmd.PersistentFlags().Bool("mlock", false, "lock process memory to keep key material out of swap")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("trust-db", rootCmd.PersistentFlags().Lookup("trust-db"))
	_ = viper.BindPFlag("mlock", rootCmd.PersistentFlags().Lookup("mlock"))
	viper.SetEnvPrefix("QSFS")
	viper.AutomaticEnv()

	cobra.OnInitialize(func() {
		if viper.GetBool("debug") {
			logLevel.Set(slog.LevelDebug)
		}
		if viper.GetBool("mlock") {
			if err := mlockall.Lock(); err != nil {
				slog.Warn("failed to lock process memory", "error", err)
			}
		}
	})
}

func trustDBPath() string {
	if p := viper.GetString("trust-db"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "qsfs-trust.db"
	}
	return home + "/.qsfs/trust.db"
}
