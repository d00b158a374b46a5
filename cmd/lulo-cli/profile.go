package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultRPCEndpoint = "http://127.0.0.1:8645"
	defaultChainID     = 7001
	rpcTokenEnv        = "LULO_RPC_TOKEN"
	rpcEndpointEnv     = "LULO_RPC_URL"
)

// Profile is the on-disk client configuration. Command line flags override
// every field.
type Profile struct {
	RPC      string `yaml:"rpc"`
	Keystore string `yaml:"keystore"`
	ChainID  uint64 `yaml:"chainId"`
	// TokenEnv names the environment variable holding the RPC bearer token.
	TokenEnv string `yaml:"tokenEnv,omitempty"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lulo/profile.yaml"
	}
	return filepath.Join(home, ".lulo", "profile.yaml")
}

// loadProfile reads path. A missing file yields the defaults.
func loadProfile(path string) (*Profile, error) {
	p := &Profile{RPC: defaultRPCEndpoint, ChainID: defaultChainID, TokenEnv: rpcTokenEnv}
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	// An empty file decodes to io.EOF and keeps the defaults.
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if p.Keystore != "" && !filepath.IsAbs(p.Keystore) {
		p.Keystore = filepath.Join(filepath.Dir(path), p.Keystore)
	}
	return p, nil
}

func saveProfile(path string, p *Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	raw, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func (p *Profile) token() string {
	env := p.TokenEnv
	if env == "" {
		env = rpcTokenEnv
	}
	return strings.TrimSpace(os.Getenv(env))
}
