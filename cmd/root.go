// Package cmd wires the node's cobra CLI: a run command that starts the
// scheduler and status API, and a backtest command for replaying stored
// rate history, following the teacher's price-feeder.go/backtest.go
// construction.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	logLevelJSON = "json"
	logLevelText = "text"

	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagConfig    = "configfile"
)

var rootCmd = &cobra.Command{
	Use:   "oracle-node",
	Short: "oracle-node operates one Charli3-style push oracle feed on Cardano",
	Long: `A side-car process an oracle node operator runs to serve a Cardano
on-chain price oracle. Each tick it inspects the oracle script address,
aggregates a fresh rate from its configured sources, decides whether to
publish its own observation and/or trigger consensus aggregation, and
submits the resulting transaction.`,
}

func init() {
	rootCmd.PersistentFlags().String(flagLogLevel, zerolog.InfoLevel.String(), "logging level")
	rootCmd.PersistentFlags().String(flagLogFormat, logLevelText, "logging format; must be either json or text")

	rootCmd.AddCommand(getRunCmd())
	rootCmd.AddCommand(getBacktestCmd())
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func buildLogger(cmd *cobra.Command) (zerolog.Logger, error) {
	logLvlStr, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return zerolog.Logger{}, err
	}
	logLvl, err := zerolog.ParseLevel(logLvlStr)
	if err != nil {
		return zerolog.Logger{}, err
	}

	logFormatStr, err := cmd.Flags().GetString(flagLogFormat)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logWriter io.Writer
	switch strings.ToLower(logFormatStr) {
	case logLevelJSON:
		logWriter = os.Stderr
	case logLevelText:
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid logging format: %s", logFormatStr)
	}

	zerolog.TimeFieldFormat = time.StampMilli
	return zerolog.New(logWriter).Level(logLvl).With().Timestamp().Logger(), nil
}
