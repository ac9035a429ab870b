package editor

import (
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v2"
)

type LevelConfig struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	Primary            string `yaml:"primary"`
	Companion          string `yaml:"companion"`
	TransformAttribute string `yaml:"transformAttribute"`
	Watch              bool   `yaml:"watch"`
}

type Config struct {
	Levels []LevelConfig `yaml:"levels"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}

	for _, level := range cfg.Levels {
		if level.ID == "" || level.Primary == "" {
			return nil, fmt.Errorf("every level needs an id and a primary document")
		}

		if seen[level.ID] {
			return nil, fmt.Errorf("level %s is configured more than once", level.ID)
		}
		seen[level.ID] = true
	}

	return cfg, nil
}
