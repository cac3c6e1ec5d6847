package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/andybalholm/cascadia"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// selectorsFile is the on-disk shape of SLOTWATCH_SELECTORS_FILE.
// A list (not a map) so declaration order survives decoding.
type selectorsFile struct {
	Groups []SlotGroup `yaml:"groups"`
}

// LoadGroupsFile reads an ordered selector group list from a YAML file:
//
//	groups:
//	  - name: main_banner
//	    selector: '.banner, [class*="hero"]'
func LoadGroupsFile(path string) ([]SlotGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selectors file: %w", err)
	}
	var f selectorsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse selectors file %s: %w", path, err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("selectors file %s: no groups", path)
	}
	return f.Groups, nil
}

// Validate resolves the selector file (if any) and checks the values a run
// cannot recover from at runtime.
func (c *Config) Validate() error {
	if c.Extract.GroupsFile != "" {
		groups, err := LoadGroupsFile(c.Extract.GroupsFile)
		if err != nil {
			return err
		}
		c.Extract.Groups = groups
	}

	u, err := url.Parse(c.Target.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid target URL %q", c.Target.URL)
	}

	if err := ValidateGroups(c.Extract.Groups); err != nil {
		return err
	}

	if c.Page.Scroll.Step <= 0 {
		return errors.New("scroll step must be positive")
	}
	if c.Links.Concurrency < 1 {
		c.Links.Concurrency = 1
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid cron spec %q: %w", c.Schedule.Cron, err)
		}
	}
	return nil
}

// ValidateGroups checks names are unique and every selector parses.
func ValidateGroups(groups []SlotGroup) error {
	if len(groups) == 0 {
		return errors.New("no selector groups configured")
	}
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("selector group with empty name (selector %q)", g.Selector)
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("duplicate selector group %q", g.Name)
		}
		seen[g.Name] = struct{}{}
		if _, err := cascadia.ParseGroup(g.Selector); err != nil {
			return fmt.Errorf("selector group %q: %w", g.Name, err)
		}
	}
	return nil
}
