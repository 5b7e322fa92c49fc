package coremain

import (
	"fmt"
	"time"

	"github.com/pmkol/rrcache-x/mlog"
	"github.com/pmkol/rrcache-x/pkg/dnsutils"
	"github.com/pmkol/rrcache-x/pkg/utils"
)

const (
	defaultCacheSize = 1024
	defaultAPIAddr   = "127.0.0.1:9091"
)

type Config struct {
	Log   mlog.LogConfig `yaml:"log"`
	Cache CacheConfig    `yaml:"cache"`
	API   APIConfig      `yaml:"api"`
}

type CacheConfig struct {
	// Size is the hash bucket count of every class cache. Each class
	// holds at most three times as many RRsets.
	Size int `yaml:"size"`

	// Classes to cache, as mnemonics ("IN", "CH") or numbers.
	// Default is IN.
	Classes []string `yaml:"classes"`

	// CleanerInterval (sec) enables a periodic sweep of stale entries.
	// Zero disables it, stale entries are then only dropped on lookup
	// or by eviction.
	CleanerInterval int `yaml:"cleaner_interval"`
}

type APIConfig struct {
	HTTP string `yaml:"http"`
}

func (c *Config) Init() {
	utils.SetDefaultNum(&c.Cache.Size, defaultCacheSize)
	if len(c.Cache.Classes) == 0 {
		c.Cache.Classes = []string{"IN"}
	}
	utils.SetDefaultString(&c.API.HTTP, defaultAPIAddr)
}

func (c *CacheConfig) classes() ([]uint16, error) {
	out := make([]uint16, 0, len(c.Classes))
	for _, s := range c.Classes {
		class, err := dnsutils.StringToQclass(s)
		if err != nil {
			return nil, err
		}
		out = append(out, class)
	}
	return out, nil
}

func (c *CacheConfig) cleanerInterval() (time.Duration, error) {
	if c.CleanerInterval < 0 {
		return 0, fmt.Errorf("invalid cleaner interval %d", c.CleanerInterval)
	}
	return time.Duration(c.CleanerInterval) * time.Second, nil
}
