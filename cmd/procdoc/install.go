package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/procdoc/internal/auth"
)

var installOpts struct {
	jwtSecret     string
	tenantName    string
	adminEmail    string
	adminPassword string
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Write settings.json and optionally bootstrap the first tenant",
	Long: `Writes the resolved configuration (defaults, env vars and flags) to the settings
file, generating a jwt_secret when none is set. With --admin-email it also registers
a tenant and its first admin user. A running server is signaled to reload.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	f := installCmd.Flags()
	f.StringVar(&installOpts.jwtSecret, "jwt-secret", "", "token signing secret (generated when empty)")
	f.StringVar(&installOpts.tenantName, "tenant-name", "Default", "tenant created with --admin-email")
	f.StringVar(&installOpts.adminEmail, "admin-email", "", "register a tenant admin with this email")
	f.StringVar(&installOpts.adminPassword, "admin-password", "", "password for --admin-email")
}

func runInstall(cmd *cobra.Command, args []string) error {
	next := cfg
	if installOpts.jwtSecret != "" {
		next.JWTSecret = installOpts.jwtSecret
	}
	if next.JWTSecret == "" {
		next.JWTSecret = randomSecret()
	}
	if err := next.validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(configPath), err)
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	// The file holds the signing secret.
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("cannot write %s: %w", configPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", configPath)

	if installOpts.adminEmail != "" {
		if err := bootstrapAdmin(cmd, next); err != nil {
			return err
		}
	}

	if pid, ok := signalRunningServer(); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "Signaled running server (PID %d) to reload configuration\n", pid)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Run `procdoc serve` to start the server")
	}
	return nil
}

func bootstrapAdmin(cmd *cobra.Command, c Config) error {
	if installOpts.adminPassword == "" {
		return fmt.Errorf("--admin-password is required with --admin-email")
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, c, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.accounts.Register(ctx, auth.RegisterInput{
		TenantName: installOpts.tenantName,
		Email:      installOpts.adminEmail,
		Name:       installOpts.adminEmail,
		Password:   installOpts.adminPassword,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created tenant %s with admin %s\n", user.TenantID, user.Email)
	return nil
}

// signalRunningServer sends SIGHUP to a running procdoc server found via the pid file.
func signalRunningServer() (int, bool) {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	// Signal 0 only checks that the process is alive.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return 0, false
	}
	return pid, true
}
