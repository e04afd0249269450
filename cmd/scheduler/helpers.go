package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lakehouse-dev/scheduler/internal/config"
	"github.com/lakehouse-dev/scheduler/internal/logger"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"github.com/lakehouse-dev/scheduler/internal/server"
	"github.com/lakehouse-dev/scheduler/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"
)

// operator is the actor for commands run with direct database access.
// Audit entries written on its behalf carry user id 0.
var operator = rbac.Actor{ID: 0, Role: models.RoleAdmin}

// openDatabase loads configuration, quiets logging to warnings and returns a
// migrated database handle.
func openDatabase() (*gorm.DB, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.Log.Format, "warn")
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "silent"
	}
	return server.OpenDatabase(cfg)
}

// findUser looks a user up by username.
func findUser(ctx context.Context, db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// readPassword prompts twice on a terminal, otherwise reads one line from the
// command's input.
func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(fd) {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		first, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), "Confirm password: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describeError unwraps service errors into a single CLI-friendly line.
func describeError(err error) error {
	var v *service.ValidationError
	if errors.As(err, &v) {
		return errors.New(v.Message)
	}
	var c *service.ConflictError
	if errors.As(err, &c) {
		return errors.New(c.Message)
	}
	return err
}
