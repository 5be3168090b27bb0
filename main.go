package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(newViper()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "oisafe-decrypt",
		Short: "Recover credentials from an OI Safe XML backup",
		Long: `oisafe-decrypt reads an OI Safe backup (oisafe.xml), recovers the master key
with your password and prints every stored entry in plain text.

PASSWORD:
    Set ` + PasswordEnvVar + ` (or put it in .env), or enter it interactively.

SECURITY:
    - Master key: PKCS#12 KDF (SHA-1, 20 iterations), AES-256-CBC
    - Entries: OpenSSL EVP_BytesToKey (MD5, 20 iterations), AES-128-CBC
    - Output is plain text; protect any exported file accordingly`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(".env"); err != nil {
				return err
			}
			return readConfigFile(v, configFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))

	root.AddCommand(newDecryptCmd(v), newInspectCmd(), newVersionCmd())
	return root
}

func newDecryptCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt <backup.xml>",
		Short: "Decrypt all entries of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecrypt(cmd, v, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", FormatTable, "output format (table, csv, json, yaml)")
	flags.String("out", "", "write output to this file instead of STDOUT")
	flags.Int("workers", 1, "decrypt entries with this many goroutines")
	flags.String("kdf-hash", DefaultKDFHash, "hash used by the master key KDF")
	_ = v.BindPFlag("output", flags.Lookup("output"))
	_ = v.BindPFlag("out", flags.Lookup("out"))
	_ = v.BindPFlag("workers", flags.Lookup("workers"))
	_ = v.BindPFlag("kdf.hash", flags.Lookup("kdf-hash"))

	return cmd
}

func runDecrypt(cmd *cobra.Command, v *viper.Viper, path string) error {
	cfg, err := LoadConfig(v)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.PrettyLogs)

	backup, err := ReadBackupFile(path)
	if err != nil {
		return err
	}
	logger.Debug("backup loaded",
		"path", path,
		"version", backup.FormatVersion(),
		"categories", len(backup.Categories),
		"entries", backup.EntryCount())

	password, err := getPassword(cfg.Password, "Enter password: ")
	if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}
	defer zeroBytes(password)

	if len(password) == 0 {
		return fmt.Errorf("password cannot be empty")
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = logger

	result, err := Decrypt(cmd.Context(), backup, password, opts)
	if err != nil {
		if errors.Is(err, ErrMasterKeyDecryption) {
			return fmt.Errorf("decryption failed: %w", err)
		}
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if cfg.OutFile != "" {
		f, err := os.OpenFile(cfg.OutFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := WriteEntries(out, cfg.Output, result.Entries); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Successfully decrypted %d entries", len(result.Entries))
	if n := len(result.Failures); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), " (%d fields could not be decrypted)", n)
	}
	fmt.Fprintln(cmd.ErrOrStderr())

	return nil
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <backup.xml>",
		Short: "Show backup metadata without decrypting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backup, err := ReadBackupFile(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Version:    %d\n", backup.FormatVersion())
			fmt.Fprintf(w, "Date:       %s\n", backup.Date)
			fmt.Fprintf(w, "Categories: %d\n", len(backup.Categories))
			fmt.Fprintf(w, "Entries:    %d\n", backup.EntryCount())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "oisafe-decrypt version %s\n", Version)
		},
	}
}
