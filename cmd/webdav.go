package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mtx/internal/models"
	"github.com/urfave/cli/v3"
)

// WebDAVShow prints the stored WebDAV source settings.
func (r *Runner) WebDAVShow(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.api.WebDAVConfig(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(cfg, true)
	}

	if cfg.URL == "" {
		r.writePlain("WebDAV is not configured\n")
		return nil
	}
	r.writePlain("URL:      %s\n", cfg.URL)
	r.writePlain("Username: %s\n", cfg.Username)
	r.writePlain("Root:     %s\n", cfg.RootPath)
	r.writePlain("Enabled:  %s\n", yesNo(cfg.Enabled))
	if cfg.LastTest != nil {
		r.writePlain("Tested:   %s (%s)\n", cfg.LastTest.Local().Format("2006-01-02 15:04:05"), cfg.TestStatus)
	}
	if cfg.TestError != "" {
		r.writePlain("Error:    %s\n", cfg.TestError)
	}
	return nil
}

// WebDAVSave stores WebDAV settings. An empty password keeps the stored one.
func (r *Runner) WebDAVSave(ctx context.Context, cmd *cli.Command) error {
	saved, err := r.api.SaveWebDAVConfig(ctx, models.WebDAVConfig{
		URL:      cmd.String("url"),
		Username: cmd.String("username"),
		Password: cmd.String("password"),
		RootPath: cmd.String("root"),
		Enabled:  cmd.Bool("enabled"),
	})
	if err != nil {
		return fmt.Errorf("failed to save WebDAV config: %w", err)
	}
	r.logger.Info("webdav config saved", "url", saved.URL)
	r.writePlain("✓ WebDAV source saved: %s%s\n", saved.URL, saved.RootPath)
	return nil
}

// WebDAVDelete removes the stored WebDAV settings.
func (r *Runner) WebDAVDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.api.DeleteWebDAVConfig(ctx); err != nil {
		return fmt.Errorf("failed to delete WebDAV config: %w", err)
	}
	r.writePlain("✓ WebDAV source removed\n")
	return nil
}

// WebDAVTest probes the stored WebDAV source and reports how many audio files it found.
func (r *Runner) WebDAVTest(ctx context.Context, cmd *cli.Command) error {
	result, err := r.api.TestWebDAV(ctx)
	if err != nil {
		return fmt.Errorf("WebDAV test failed: %w", err)
	}
	r.writePlain("✓ Connected, %d audio files found\n", result.Files())
	return nil
}
