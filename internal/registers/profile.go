package registers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pressline/encoderd/internal/s7"
	"gopkg.in/yaml.v3"
)

// Register is one named address in a PLC data block, optionally with a
// display unit and a plausible value range.
type Register struct {
	Name   string   `yaml:"name" json:"name"`
	Block  int      `yaml:"block" json:"block"`
	Offset int      `yaml:"offset" json:"offset"`
	Length int      `yaml:"length" json:"length"`
	Unit   string   `yaml:"unit,omitempty" json:"unit,omitempty"`
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Address returns the register's location as a client address.
func (r Register) Address() s7.RegisterAddress {
	return s7.RegisterAddress{Block: r.Block, Offset: r.Offset, Length: r.Length}
}

// Profile maps register names to addresses for one installation.
type Profile struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Registers   []Register `yaml:"registers" json:"registers"`
}

// Lookup finds a register by name.
func (p *Profile) Lookup(name string) (Register, bool) {
	for _, reg := range p.Registers {
		if reg.Name == name {
			return reg, true
		}
	}
	return Register{}, false
}

// Loader loads schema-validated register profiles from a list of search
// paths, caching parsed results.
type Loader struct {
	cache       sync.Map
	validator   *Validator
	searchPaths []string
}

func NewLoader(searchPaths []string) (*Loader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &Loader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

func (l *Loader) Load(profileName string) (*Profile, error) {
	if cached, ok := l.cache.Load(profileName); ok {
		return cached.(*Profile), nil
	}

	var data []byte
	var err error
	var foundPath string

	for _, searchPath := range l.searchPaths {
		fullPath := filepath.Join(searchPath, profileName+".yaml")
		data, err = os.ReadFile(fullPath)
		if err == nil {
			foundPath = fullPath
			break
		}
	}

	if data == nil {
		return nil, fmt.Errorf("profile not found: %s (searched in: %v)", profileName, l.searchPaths)
	}

	if err := l.validator.ValidateProfile(data); err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", foundPath, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	l.cache.Store(profileName, &profile)

	return &profile, nil
}

func (l *Loader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}
