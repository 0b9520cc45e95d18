package app

import (
	"errors"
	"flag"
	"strings"
)

type Config struct {
	DBPath     string
	SessionID  int64 // 0 selects the latest session
	OutputFile string
	Width      int
}

func NewConfig() *Config {
	return &Config{
		Width: defaultWidth,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	flag.StringVar(&c.DBPath, "db", "", "Path to the session journal")
	flag.Int64Var(&c.SessionID, "s", 0, "Session ID, latest session when omitted")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output PNG file")
	flag.IntVar(&c.Width, "w", defaultWidth, "Image width in pixels")
	flag.Parse()

	if err := c.Validate(); err != nil {
		flag.Usage()
		return nil, err
	}

	if !strings.HasSuffix(strings.ToLower(c.OutputFile), ".png") {
		c.OutputFile += ".png"
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("db path is required")
	case c.SessionID < 0:
		return errors.New("session id must not be negative")
	case c.OutputFile == "":
		return errors.New("output file is required")
	case c.Width < minWidth:
		return errors.New("image is too narrow")
	}
	return nil
}
