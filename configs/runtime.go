package configs

import (
	"path/filepath"
)

func (c *Config) ResolveDataPath(p string) string {
	dataDir := c.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if p == "" {
		return dataDir
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

func (c *Config) ActivityLogPath() string {
	return c.ResolveDataPath(c.ActivityLog)
}

func (c *Config) ImagePath() string {
	return c.ResolveDataPath(c.Image.FileName)
}

func (c *Config) TokenPath() string {
	return c.ResolveDataPath("token.json")
}

func (c *Config) ProxyListPath() string {
	return c.ResolveDataPath("proxies.txt")
}
