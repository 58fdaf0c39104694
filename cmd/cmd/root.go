package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"fsbrepack/internal/env"
	"fsbrepack/internal/scan"
	"fsbrepack/pkg/util/format"
)

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   env.AppName,
		Short: env.AppName + " - scan, extract and repack embedded FSB sound banks",
	}

	rootCmd.PersistentFlags().String("log-level", "info", "minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-log", false, "disable the session log file")

	rootCmd.AddCommand(DefineScanCommand())
	rootCmd.AddCommand(DefineListCommand())
	rootCmd.AddCommand(DefineExtractCommand())
	rootCmd.AddCommand(DefineReplaceCommand())
	rootCmd.AddCommand(DefineMountCommand())

	return rootCmd.Execute()
}

// sessionLogger builds the slog logger every command runs with. Unless
// disabled, each invocation writes its own timestamped log file next to
// the working directory.
func sessionLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	level, _ := cmd.Flags().GetString("log-level")
	noLog, _ := cmd.Flags().GetBool("no-log")

	logPath := ""
	if !noLog {
		logPath = fmt.Sprintf("%s_%s.log", env.AppName, scan.GenSessionID())
	}

	logger, file, err := scan.SetupLogger(logPath, scan.ParseLevel(level))
	if err != nil {
		return nil, nil, err
	}

	if logPath != "" {
		fmt.Printf("[INFO] Session log: %s\n", logPath)
	}

	closeFn := func() {
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, closeFn, nil
}

// stdoutIsTerminal gates interactive output like the progress bar.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func getBytes(cmd *cobra.Command, name string, fallback int64) int64 {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return fallback
	}
	v, err := format.ParseBytes(s)
	if err != nil || v == 0 {
		return fallback
	}
	return v
}
