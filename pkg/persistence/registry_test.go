package persistence

import (
	"encoding/json"
	"testing"
)

func TestRegisterProvider(t *testing.T) {
	var got PluginConfig
	RegisterProvider("test", func(config PluginConfig) (PluginPersistence, error) {
		got = config
		return nil, nil
	})

	found := false
	for _, p := range ListProviders() {
		if p == "test" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Expected to find 'test' provider in list, got: %v", ListProviders())
	}

	if _, err := NewPersistence(ProviderConfig{Type: "test"}, PluginConfig{}); err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}
	if string(got.Config) != "{}" || got.Logger == nil {
		t.Errorf("plugin config not defaulted: %+v", got)
	}
}

func TestNewPersistenceUnknownProvider(t *testing.T) {
	_, err := NewPersistence(ProviderConfig{Type: "unknown_provider", Config: []byte("{}")}, PluginConfig{})
	if err == nil {
		t.Error("Expected error for unknown provider, got nil")
	}
}

func TestDecodeConfig(t *testing.T) {
	var cfg struct {
		Path string `json:"path"`
	}
	if err := DecodeConfig(nil, &cfg); err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if err := DecodeConfig(json.RawMessage(`{"path":"/x"}`), &cfg); err != nil || cfg.Path != "/x" {
		t.Fatalf("DecodeConfig = %+v, %v", cfg, err)
	}
	if err := DecodeConfig(json.RawMessage(`{`), &cfg); err == nil {
		t.Fatal("expected error for broken json")
	}
}
