package gorough

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultGPSBaud  = 9600
	defaultRepeats  = 1
	defaultInterval = 1

	// defaultGPSLeapSec is the GPS-to-UTC leap second offset applied
	// when comparing against a GNSS clock that reports GPS time.
	defaultGPSLeapSec = 18
)

type Config struct {
	Host  string `yaml:"host"`
	Key   string `yaml:"key"`
	Nonce string `yaml:"nonce"`

	Intervals  int `yaml:"intervals"`
	Repeats    int `yaml:"repeats"`
	TimeoutSec int `yaml:"timeout"`

	GPSPort    string `yaml:"gpsport"`
	GPSBaud    int    `yaml:"gpsbaud"`
	GPSLeapSec int    `yaml:"gpsleap"`

	Metric string `yaml:"metric"`
}

func NewConfigFromFile(p string) (cfg *Config, err error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return
	}
	cfg = &Config{}
	err = yaml.Unmarshal(data, cfg)
	return
}

// Validate checks the configuration and decodes the key material. All
// failures here are configuration errors: they are reported before any
// network activity and are fatal to the process.
func (c *Config) Validate() (key PublicKey, nonce *Nonce, err error) {
	if c.Host == "" {
		err = fmt.Errorf("config: host is required")
		return
	}
	if c.Key == "" {
		err = fmt.Errorf("config: key is required")
		return
	}
	key, err = PublicKeyFromBase64(c.Key)
	if err != nil {
		return
	}
	if c.Nonce != "" {
		var n Nonce
		n, err = NonceFromBase64(c.Nonce)
		if err != nil {
			return
		}
		nonce = &n
	}
	if c.Repeats < 1 {
		c.Repeats = defaultRepeats
	}
	if c.Intervals < 1 {
		c.Intervals = defaultInterval
	}
	if c.TimeoutSec < 1 {
		c.TimeoutSec = int(defaultTimeout / time.Second)
	}
	if c.GPSBaud <= 0 {
		c.GPSBaud = defaultGPSBaud
	}
	if c.GPSLeapSec == 0 {
		c.GPSLeapSec = defaultGPSLeapSec
	}
	return
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c *Config) interval() time.Duration {
	return time.Duration(c.Intervals) * time.Second
}
