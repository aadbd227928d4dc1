// Command aipkgctl builds and inspects encrypted chart packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"

	"github.com/cg8-5712/EAIP-Viewer/internal/config"
)

var (
	cfgFile  string
	logLevel slog.LevelVar
	conf     = config.Defaults()
)

var rootCmd = &cobra.Command{
	Use:   "aipkgctl",
	Short: "Build and inspect encrypted chart packages (.ecp)",
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{Level: &logLevel})))

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aipkg.yaml)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "DEBUG|INFO|WARNING|ERROR")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(buildCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".aipkg")
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("aipkg")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	conf = config.Defaults()
	_ = viper.Unmarshal(&conf)

	applyLogLevel(conf.LogLevel)
}

func applyLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARNING", "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}

// Execute runs the command tree. Exit codes: 0 success, 1 user/IO error,
// 130 interrupted (propagated by the OS signal that killed the process;
// cobra itself never raises it).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
