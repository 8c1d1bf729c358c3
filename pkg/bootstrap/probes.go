package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/abgdnv/verdant/pkg/config"
)

// Probes reports process health through files, for exec-based container probes.
type Probes struct {
	cfg    config.ProbesConfig
	logger *slog.Logger
}

func NewProbes(cfg config.ProbesConfig, logger *slog.Logger) *Probes {
	return &Probes{cfg: cfg, logger: logger.With("component", "probes")}
}

// Ready creates the readiness file.
func (p *Probes) Ready() error {
	if !p.cfg.Enabled {
		return nil
	}
	if err := touch(p.cfg.ReadinessFileName); err != nil {
		return fmt.Errorf("failed to create readiness file: %w", err)
	}
	p.logger.Info("Readiness file created", "file", p.cfg.ReadinessFileName)
	return nil
}

// Run touches the liveness file every interval until ctx is done, then removes both files.
func (p *Probes) Run(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	defer p.cleanup()

	if err := touch(p.cfg.LivenessFileName); err != nil {
		return fmt.Errorf("failed to create liveness file: %w", err)
	}
	ticker := time.NewTicker(p.cfg.LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := touch(p.cfg.LivenessFileName); err != nil {
				p.logger.Error("Failed to update liveness file", "error", err)
			}
		}
	}
}

func (p *Probes) cleanup() {
	for _, name := range []string{p.cfg.ReadinessFileName, p.cfg.LivenessFileName} {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("Failed to remove probe file", "file", name, "error", err)
		}
	}
}

func touch(name string) error {
	now := time.Now()
	if err := os.Chtimes(name, now, now); err == nil {
		return nil
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	return f.Close()
}
