package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bfx-lending-bot/internal/chart"
	"bfx-lending-bot/internal/state"
)

// Export pulls the inferred-rate history from a running instance and
// renders it as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	points, err := a.fetchRateHistory(ctx, opts.BaseURL)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Msg("no rate history to export yet")
		return nil
	}

	downsampled := chart.Downsample(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting rate history")

	if opts.CSVPath != "" {
		if err := chart.WriteCSVFile(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := chart.RenderPNGFile(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) fetchRateHistory(ctx context.Context, baseURL string) ([]state.RatePoint, error) {
	if baseURL == "" {
		addr := a.Config.Server.Addr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		baseURL = "http://" + addr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/state", nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch state from running instance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("state endpoint returned %s", resp.Status)
	}

	var snap struct {
		RateHistory []state.RatePoint `json:"rateHistory"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode state snapshot: %w", err)
	}

	return snap.RateHistory, nil
}
