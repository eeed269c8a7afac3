package config

import (
	_ "embed"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const ConfigurationName = "config.yaml"

// Color settings.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	Prompt         string `json:"prompt"`
	Color          string `json:"color" validate:"oneof=auto always never"`
	HistorySize    int    `json:"history_size" validate:"gte=0"`
	RedirectBuffer int    `json:"redirect_buffer" validate:"gte=1,lte=1048576"`
	LogFile        string `json:"log_file"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewOsFs()
	}
	return c.configFs
}

// OpenLog opens the debug log in an append only state. With no log file
// configured the returned writer discards everything.
func (c *Configuration) OpenLog() (io.WriteCloser, error) {
	if c.LogFile == "" {
		return nopCloser{io.Discard}, nil
	}
	return c.fs().OpenFile(c.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// UseColor reports whether output should be coloured. isTerminal is asked
// only in auto mode.
func (c *Configuration) UseColor(isTerminal func() bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	return isTerminal()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return defaultConfig()
}
