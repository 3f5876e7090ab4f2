package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/mtx/internal/formatter"
	"github.com/desertthunder/mtx/internal/services"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// rawAPI is implemented by [services.APIService] for untyped requests.
type rawAPI interface {
	Get(ctx context.Context, path string) (*services.APIResponse, error)
	Post(ctx context.Context, path string, data []byte) (*services.APIResponse, error)
}

func (r *Runner) raw() (rawAPI, error) {
	raw, ok := r.api.(rawAPI)
	if !ok {
		return nil, fmt.Errorf("%w: raw requests need the HTTP API service", shared.ErrServiceUnavailable)
	}
	return raw, nil
}

// APIGet makes a direct GET request below the API prefix and prints the body.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	raw, err := r.raw()
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := raw.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	return r.writeResponse(resp, !cmd.Bool("json"))
}

// APIPost makes a direct POST request with a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data := cmd.String("data")

	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	raw, err := r.raw()
	if err != nil {
		return err
	}

	r.logger.Info("POST request", "path", path)

	resp, err := raw.Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	return r.writeResponse(resp, true)
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}
	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// dumpData is a snapshot of the server state, one field per endpoint.
type dumpData struct {
	Health      any              `json:"health,omitempty"`
	Statistics  any              `json:"statistics,omitempty"`
	BatchStatus any              `json:"batch_status,omitempty"`
	ScanStatus  any              `json:"scan_status,omitempty"`
	WebDAV      any              `json:"webdav,omitempty"`
	Errors      []map[string]any `json:"errors,omitempty"`
}

// APIDump fetches health, statistics, batch and scan status and the WebDAV settings in one document.
//
// Failing endpoints are listed under errors instead of aborting the dump.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	pretty := cmd.Bool("pretty")
	save := cmd.String("save")

	r.logger.Info("dumping API state")

	dump := dumpData{}
	collect := func(endpoint string, fetch func() (any, error)) any {
		v, err := fetch()
		if err != nil {
			r.logger.Warn("dump request failed", "endpoint", endpoint, "error", err)
			dump.Errors = append(dump.Errors, map[string]any{"endpoint": endpoint, "error": err.Error()})
			return nil
		}
		return v
	}

	dump.Health = collect("/health", func() (any, error) { return r.api.Health(ctx) })
	dump.Statistics = collect("/statistics", func() (any, error) { return r.api.Statistics(ctx) })
	dump.BatchStatus = collect("/music/batch-status", func() (any, error) { return r.api.BatchStatus(ctx) })
	dump.ScanStatus = collect("/scan/status", func() (any, error) { return r.api.ScanStatus(ctx) })
	dump.WebDAV = collect("/webdav/config", func() (any, error) { return r.api.WebDAVConfig(ctx) })

	if save != "" {
		if err := formatter.WriteManifest(dump, save); err != nil {
			r.logger.Warn("failed to save dump", "error", err)
		} else {
			r.logger.Info("dump saved", "file", save)
		}
	}

	return r.writeJSON(dump, pretty)
}
