// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is looked up in the working directory when --config is not given.
	DefaultConfigFile = ".mgrep.yaml"
	// DefaultProject is used when neither a flag nor the config file names a project.
	DefaultProject = "default-project"
	// DefaultStabilityWindow matches the quiet period editors need to finish a save.
	DefaultStabilityWindow = 50 * time.Millisecond
	// DefaultUploadConcurrency bounds parallel uploads across paths.
	DefaultUploadConcurrency = 4
	// DefaultRequestTimeout bounds a single upload request.
	DefaultRequestTimeout = 30 * time.Second
)

// 🔌 Parser is the interface for watch config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*WatchConfig, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 WatchConfig holds the tunables of a watch session
type WatchConfig struct {
	Project           string `json:"project,omitempty" yaml:"project,omitempty" hcl:"project,optional"`
	StabilityWindow   string `json:"stability_window,omitempty" yaml:"stability_window,omitempty" hcl:"stability_window,optional"`
	UploadConcurrency int    `json:"upload_concurrency,omitempty" yaml:"upload_concurrency,omitempty" hcl:"upload_concurrency,optional"`
	RequestTimeout    string `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty" hcl:"request_timeout,optional"`

	window  time.Duration
	timeout time.Duration
}

// 🏭 Default returns a validated config with every default applied
func Default() *WatchConfig {
	cfg := &WatchConfig{}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// 🎯 Load loads the watch configuration from a file
func Load(ctx context.Context, path string) (*WatchConfig, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading watch configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOptional loads path when it exists. A missing file yields Default()
// unless explicit is set, in which case it is an error.
func LoadOptional(ctx context.Context, path string, explicit bool) (*WatchConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			zerolog.Ctx(ctx).Debug().Str("path", path).Msg("no watch configuration file, using defaults")
			return Default(), nil
		}
		return nil, errors.Errorf("checking config file: %w", err)
	}
	return Load(ctx, path)
}

// 🔍 Validate checks the configuration and fills in defaults
func (cfg *WatchConfig) Validate() error {
	cfg.Project = strings.TrimSpace(cfg.Project)
	if cfg.Project == "" {
		cfg.Project = DefaultProject
	}

	window, err := parseDuration("stability_window", cfg.StabilityWindow, DefaultStabilityWindow)
	if err != nil {
		return err
	}
	cfg.window = window

	timeout, err := parseDuration("request_timeout", cfg.RequestTimeout, DefaultRequestTimeout)
	if err != nil {
		return err
	}
	cfg.timeout = timeout

	if cfg.UploadConcurrency < 0 {
		return errors.Errorf("upload_concurrency must not be negative, got %d", cfg.UploadConcurrency)
	}
	if cfg.UploadConcurrency == 0 {
		cfg.UploadConcurrency = DefaultUploadConcurrency
	}

	return nil
}

// Window returns the parsed stability window.
func (cfg *WatchConfig) Window() time.Duration {
	return cfg.window
}

// Timeout returns the parsed per-request timeout.
func (cfg *WatchConfig) Timeout() time.Duration {
	return cfg.timeout
}

// 📝 String returns a string representation of the config
func (cfg *WatchConfig) String() string {
	return fmt.Sprintf("project=%s window=%s concurrency=%d timeout=%s", cfg.Project, cfg.window, cfg.UploadConcurrency, cfg.timeout)
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive, got %s", field, raw)
	}
	return d, nil
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*WatchConfig, error) {
	var cfg WatchConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

func init() {
	Register(&HCLParser{})
}

func (p *HCLParser) CanParse(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".hcl"
}

func (p *HCLParser) Parse(ctx context.Context, data []byte) (*WatchConfig, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "mgrep.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var cfg WatchConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}
	return &cfg, nil
}

// 🔧 JSONParser implements the Parser interface for JSON files
type JSONParser struct{}

func init() {
	Register(&JSONParser{})
}

func (p *JSONParser) CanParse(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".json"
}

func (p *JSONParser) Parse(ctx context.Context, data []byte) (*WatchConfig, error) {
	var cfg WatchConfig
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &cfg, nil
}
