package cluster

import "testing"

func TestConfigValidateRejectsGridCellSizeBelowRadius(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 10
	cfg.GridCellSize = 5
	if err := cfg.Validate(); err != ErrInvalidConfig {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestConfigValidateAcceptsGridCellSizeAtCeilRadius(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 5
	cfg.GridCellSize = 5
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigValidateRejectsNonPositiveRadiusAndWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 0
	if err := cfg.Validate(); err != ErrInvalidConfig {
		t.Fatalf("err = %v, want ErrInvalidConfig for zero radius", err)
	}

	cfg = DefaultConfig()
	cfg.WindowNS = 0
	if err := cfg.Validate(); err != ErrInvalidConfig {
		t.Fatalf("err = %v, want ErrInvalidConfig for zero window", err)
	}
}

func TestConfigValidateRejectsMaxBelowMinClusterSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinClusterSize = 5
	cfg.MaxClusterSize = 2
	if err := cfg.Validate(); err != ErrInvalidConfig {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestNewGridClustererRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 10
	cfg.GridCellSize = 1
	if _, err := NewGridClusterer(cfg, nil); err != ErrInvalidConfig {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
