package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stlpipe/internal/publish"
)

func newDriveCommand(ctx *commandContext) *cobra.Command {
	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "Google Drive authentication and checks",
	}
	driveCmd.AddCommand(newDriveAuthCommand(ctx))
	driveCmd.AddCommand(newDriveTestCommand(ctx))
	return driveCmd
}

func newDriveAuthCommand(ctx *commandContext) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize stlpipe to upload to your Google Drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.GDrive.AuthMethod == "service_account" {
				return errors.New("gdrive.auth_method is service_account; no interactive authorization needed")
			}
			conf, err := publish.OAuthConfig(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(code) == "" {
				fmt.Fprintln(out, "Open this URL, approve access, and paste the code below:")
				fmt.Fprintln(out, publish.AuthURL(conf, uuid.NewString()))
				fmt.Fprint(out, "Code: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && strings.TrimSpace(line) == "" {
					return fmt.Errorf("read authorization code: %w", err)
				}
				code = line
			}
			if err := publish.ExchangeCode(cmd.Context(), conf, code, cfg.GDrive.TokenFile); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token saved to %s\n", cfg.GDrive.TokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "Authorization code (prompted when empty)")
	return cmd
}

func newDriveTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify Drive credentials and show storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			drive, err := publish.NewDrive(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			account, err := drive.About(cmd.Context())
			if err != nil {
				return fmt.Errorf("drive check failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Account: %s\n", account.Email)
			if account.LimitBytes > 0 {
				fmt.Fprintf(out, "Storage: %s of %s used\n", formatBytes(account.UsageBytes), formatBytes(account.LimitBytes))
			} else {
				fmt.Fprintf(out, "Storage: %s used (unlimited)\n", formatBytes(account.UsageBytes))
			}
			folder := cfg.GDrive.FolderID
			if folder == "" {
				folder = "(root)"
			}
			fmt.Fprintf(out, "Upload folder: %s\n", folder)
			return nil
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
