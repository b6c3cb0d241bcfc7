package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	patstat "github.com/patent-dev/patstat-get"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "config.cf"

// appName names the directory searched under the XDG config dirs.
const appName = "patstat-get"

// Config defines configuration for the patstat-get CLI.
type Config struct {
	Username string
	Password string
	Path     string // download root; one subdirectory per edition
	API      patstat.API
	BaseURL  string
	TokenURL string
	Product  string // substring matched against product names
	Timeout  int    // seconds, 0 disables
}

// Error reports an unusable configuration.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Code classifies the error for the top-level handler.
func (e *Error) Code() patstat.ErrorCode { return patstat.CodeInvalidConfig }

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		API:     patstat.APIBDDS,
		Product: patstat.DefaultProductName,
	}
}

// yamlConfig mirrors the INI layout: creds, data and api sections.
type yamlConfig struct {
	Creds struct {
		User string `yaml:"user"`
		Pass string `yaml:"pass"`
	} `yaml:"creds"`
	Data struct {
		Path string `yaml:"path"`
	} `yaml:"data"`
	API struct {
		Variant  string `yaml:"variant"`
		BaseURL  string `yaml:"base_url"`
		TokenURL string `yaml:"token_url"`
		Product  string `yaml:"product"`
		Timeout  int    `yaml:"timeout"`
	} `yaml:"api"`
}

// Resolve returns the configuration file to read. A path given explicitly
// must exist, even when it is DefaultFile. Without one, DefaultFile in the
// working directory is preferred, then patstat-get/config.cf under the XDG
// config directories.
func Resolve(path string, explicit bool) (string, error) {
	if explicit && path != "" {
		if !isFile(path) {
			return "", &Error{Msg: fmt.Sprintf("please provide a valid configuration file (%s not found)", path)}
		}
		return path, nil
	}

	if isFile(DefaultFile) {
		return DefaultFile, nil
	}
	p, err := xdg.SearchConfigFile(filepath.Join(appName, DefaultFile))
	if err != nil {
		return "", &Error{Msg: "please provide a valid configuration file", Err: err}
	}
	return p, nil
}

// LoadFromFile loads configuration from an INI file, or a YAML file when
// the name ends in .yaml or .yml.
func LoadFromFile(path string) (Config, error) {
	if !isFile(path) {
		return Config{}, &Error{Msg: fmt.Sprintf("please provide a valid configuration file (%s not found)", path)}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return loadYAML(path)
	}
	return loadINI(path)
}

func loadINI(path string) (Config, error) {
	// Values are taken verbatim: passwords may contain '#' or ';'.
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		Insensitive:         true,
	}, path)
	if err != nil {
		return Config{}, &Error{Msg: "parse config file", Err: err}
	}

	cfg := Default()

	creds, err := f.GetSection("creds")
	if err != nil {
		return Config{}, &Error{Msg: "config file has no [creds] section"}
	}
	cfg.Username = creds.Key("user").String()
	cfg.Password = creds.Key("pass").String()

	data, err := f.GetSection("data")
	if err != nil {
		return Config{}, &Error{Msg: "config file has no [data] section"}
	}
	cfg.Path = data.Key("path").String()

	if api, err := f.GetSection("api"); err == nil {
		if v := api.Key("variant").String(); v != "" {
			cfg.API = patstat.API(v)
		}
		cfg.BaseURL = api.Key("base_url").String()
		cfg.TokenURL = api.Key("token_url").String()
		if v := api.Key("product").String(); v != "" {
			cfg.Product = v
		}
		if api.HasKey("timeout") {
			n, err := api.Key("timeout").Int()
			if err != nil {
				return Config{}, &Error{Msg: "parse api.timeout", Err: err}
			}
			cfg.Timeout = n
		}
	}

	return cfg, nil
}

func loadYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Msg: "read config file", Err: err}
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, &Error{Msg: "parse config file", Err: err}
	}

	cfg := Default()
	cfg.Username = yc.Creds.User
	cfg.Password = yc.Creds.Pass
	cfg.Path = yc.Data.Path
	if yc.API.Variant != "" {
		cfg.API = patstat.API(yc.API.Variant)
	}
	cfg.BaseURL = yc.API.BaseURL
	cfg.TokenURL = yc.API.TokenURL
	if yc.API.Product != "" {
		cfg.Product = yc.API.Product
	}
	cfg.Timeout = yc.API.Timeout

	return cfg, nil
}

// LoadFromEnv overrides values from environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("EPO_BDDS_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("EPO_BDDS_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("PATSTAT_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("PATSTAT_API"); v != "" {
		c.API = patstat.API(v)
	}
	if v := os.Getenv("PATSTAT_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Msg: "parse PATSTAT_TIMEOUT", Err: err}
		}
		c.Timeout = n
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Username != "" {
		c.Username = override.Username
	}
	if override.Password != "" {
		c.Password = override.Password
	}
	if override.Path != "" {
		c.Path = override.Path
	}
	if override.API != "" {
		c.API = override.API
	}
	if override.BaseURL != "" {
		c.BaseURL = override.BaseURL
	}
	if override.TokenURL != "" {
		c.TokenURL = override.TokenURL
	}
	if override.Product != "" {
		c.Product = override.Product
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	return c
}

// Validate validates the configuration. It touches only the local
// filesystem.
func (c *Config) Validate() error {
	if c.Username == "" {
		return &Error{Msg: "config: creds.user is required"}
	}
	if c.Password == "" {
		return &Error{Msg: "config: creds.pass is required"}
	}
	switch c.API {
	case patstat.APIBDDS, patstat.APILegacy:
	default:
		return &Error{Msg: fmt.Sprintf("config: unknown api variant %q", c.API)}
	}
	if c.Timeout < 0 {
		return &Error{Msg: "config: timeout must not be negative"}
	}
	if c.Path == "" {
		return &Error{Msg: "please provide a link to a folder for the download"}
	}
	info, err := os.Stat(c.Path)
	if err != nil || !info.IsDir() {
		return &Error{Msg: fmt.Sprintf("please provide a link to a folder for the download (%s is not a directory)", c.Path)}
	}
	return nil
}

// Catalog returns the client configuration for c.
func (c *Config) Catalog() *patstat.Config {
	return &patstat.Config{
		API:      c.API,
		Username: c.Username,
		Password: c.Password,
		BaseURL:  c.BaseURL,
		TokenURL: c.TokenURL,
		Timeout:  c.Timeout,
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
