package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.RasterWidth == nil || *cfg.RasterWidth != 400 {
		t.Errorf("Expected RasterWidth 400, got %v", cfg.RasterWidth)
	}
	if cfg.Denoiser == nil || *cfg.Denoiser != DenoiserSparseness {
		t.Errorf("Expected Denoiser %q, got %v", DenoiserSparseness, cfg.Denoiser)
	}
	if cfg.MinBlobPixels == nil || *cfg.MinBlobPixels != 100 {
		t.Errorf("Expected MinBlobPixels 100, got %v", cfg.MinBlobPixels)
	}

	if cfg.GetROIMinRange() != 1 {
		t.Errorf("GetROIMinRange() = %f, want 1", cfg.GetROIMinRange())
	}
	if cfg.GetROIMaxRange() != 7 {
		t.Errorf("GetROIMaxRange() = %f, want 7", cfg.GetROIMaxRange())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEmptyConfigGettersMatchDefaults(t *testing.T) {
	empty := EmptyTuningConfig()
	def := DefaultTuningConfig()

	if empty.GetRasterHeight() != def.GetRasterHeight() {
		t.Errorf("GetRasterHeight() = %d, want %d", empty.GetRasterHeight(), def.GetRasterHeight())
	}
	if empty.GetSectorMinDeg() != def.GetSectorMinDeg() || empty.GetSectorMaxDeg() != def.GetSectorMaxDeg() {
		t.Errorf("sector fallback mismatch")
	}
	if empty.GetSparsenessPolicy() != def.GetSparsenessPolicy() {
		t.Errorf("GetSparsenessPolicy() = %q, want %q", empty.GetSparsenessPolicy(), def.GetSparsenessPolicy())
	}
	if empty.GetRLSWindow() != def.GetRLSWindow() {
		t.Errorf("GetRLSWindow() = %d, want %d", empty.GetRLSWindow(), def.GetRLSWindow())
	}
	if empty.GetSymmetricSuppression() != def.GetSymmetricSuppression() {
		t.Errorf("GetSymmetricSuppression() mismatch")
	}
	if empty.GetThreshold() != def.GetThreshold() {
		t.Errorf("GetThreshold() = %f, want %f", empty.GetThreshold(), def.GetThreshold())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "raster_width": 320,
  "denoiser": "rls-sliding",
  "rls_window": 6,
  "roi_max_range": 12.5,
  "symmetric_suppression": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if cfg.GetRasterWidth() != 320 {
		t.Errorf("GetRasterWidth() = %d, want 320", cfg.GetRasterWidth())
	}
	if cfg.GetDenoiser() != DenoiserRLSSliding {
		t.Errorf("GetDenoiser() = %q, want %q", cfg.GetDenoiser(), DenoiserRLSSliding)
	}
	if cfg.GetRLSWindow() != 6 {
		t.Errorf("GetRLSWindow() = %d, want 6", cfg.GetRLSWindow())
	}
	if cfg.GetROIMaxRange() != 12.5 {
		t.Errorf("GetROIMaxRange() = %f, want 12.5", cfg.GetROIMaxRange())
	}
	if cfg.GetSymmetricSuppression() {
		t.Error("GetSymmetricSuppression() = true, want false")
	}
	// Omitted fields fall back.
	if cfg.GetRasterHeight() != 400 {
		t.Errorf("GetRasterHeight() = %d, want 400", cfg.GetRasterHeight())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "config.yaml", `{}`, "must have .json extension"},
		{"bad json", "bad.json", `{not json`, "failed to parse config JSON"},
		{"unknown denoiser", "denoiser.json", `{"denoiser": "kalman"}`, "unknown denoiser"},
		{"unknown policy", "policy.json", `{"sparseness_policy": "spatial"}`, "unknown sparseness_policy"},
		{"inverted sector", "sector.json", `{"sector_min_deg": 10, "sector_max_deg": -10}`, "must exceed"},
		{"even kernel", "kernel.json", `{"morph_kernel": 4}`, "morph_kernel"},
		{"lambda order", "lambda.json", `{"rls_lambda_min": 0.9, "rls_lambda_max": 0.8}`, "rls lambdas"},
		{"threshold range", "threshold.json", `{"threshold": 2}`, "threshold must be between"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	def := DefaultTuningConfig()

	if cfg.GetRasterWidth() != def.GetRasterWidth() {
		t.Errorf("defaults file raster_width = %d, built-in = %d", cfg.GetRasterWidth(), def.GetRasterWidth())
	}
	if cfg.GetDenoiser() != def.GetDenoiser() {
		t.Errorf("defaults file denoiser = %q, built-in = %q", cfg.GetDenoiser(), def.GetDenoiser())
	}
	if cfg.GetMinBlobPixels() != def.GetMinBlobPixels() {
		t.Errorf("defaults file min_blob_pixels = %d, built-in = %d", cfg.GetMinBlobPixels(), def.GetMinBlobPixels())
	}
	if cfg.GetRLSLambdaMax() != def.GetRLSLambdaMax() {
		t.Errorf("defaults file rls_lambda_max = %f, built-in = %f", cfg.GetRLSLambdaMax(), def.GetRLSLambdaMax())
	}
}
