package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/zond/hitres/structs"
)

func TestLoadDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	if err := Load(dir); err != nil {
		t.Fatal(err)
	}
	s := Current()
	if s.LogLevel != "info" || s.SSHAddr != "127.0.0.1:15000" || s.CacheTTL != 10*time.Minute || s.DataDir != dir {
		t.Errorf("got %+v", s)
	}
	rules, err := Rules()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(structs.DefaultRules(), rules); diff != "" {
		t.Error(diff)
	}
}

func TestLoadFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"cacheTTL": "1m",
		"rules": {
			"armorAsDice": {"melee": true},
			"armorAsDiceThreshold": 9,
			"edgeProtection": true,
			"torsoAggregation": "average"
		}
	}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Load(dir); err != nil {
		t.Fatal(err)
	}
	if s := Current(); s.LogLevel != "debug" || s.CacheTTL != time.Minute {
		t.Errorf("got %+v", s)
	}
	rules, err := Rules()
	if err != nil {
		t.Fatal(err)
	}
	want := structs.DefaultRules()
	want.ArmorAsDice.Melee = true
	want.ArmorAsDiceThreshold = 9
	want.EdgeProtection = true
	want.TorsoAggregation = structs.TorsoAverage
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Error(diff)
	}

	Set("rules.torsoAggregation", "median")
	if _, err := Rules(); err == nil {
		t.Errorf("wanted error for unknown aggregation")
	}
}

func TestLoadBrokenFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Load(dir); err == nil {
		t.Errorf("wanted error for broken file")
	}
}

func TestNewLogger(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	logger := NewLogger("warn", a, nil, b)
	logger.Info("hidden")
	logger.With("target", "mook").Warn("shown")
	for _, buf := range []*bytes.Buffer{a, b} {
		got := buf.String()
		if strings.Contains(got, "hidden") || !strings.Contains(got, "msg=shown target=mook") {
			t.Errorf("got %q", got)
		}
	}
}
