package playground

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"evalgo.org/playground/internal/handler"
)

//go:embed service_types.yaml
var defaultServiceTypes []byte

// ServiceType is a backend a user can start inside the playground.
type ServiceType struct {
	Name        string   `yaml:"-" json:"name"`
	Image       string   `yaml:"image" json:"image"`
	Description string   `yaml:"description" json:"description"`
	Port        int      `yaml:"port,omitempty" json:"port,omitempty"`
	Env         []string `yaml:"env,omitempty" json:"env,omitempty"`
	ConfigEnv   string   `yaml:"config_env,omitempty" json:"config_env,omitempty"`
}

// ServiceTypes is the registry of service types by name.
type ServiceTypes map[string]ServiceType

type serviceTypesFile struct {
	ServiceTypes map[string]ServiceType `yaml:"service_types"`
}

// ParseServiceTypes decodes a registry document.
func ParseServiceTypes(data []byte) (ServiceTypes, error) {
	var doc serviceTypesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse service types: %w", err)
	}
	if len(doc.ServiceTypes) == 0 {
		return nil, fmt.Errorf("no service types defined")
	}

	types := make(ServiceTypes, len(doc.ServiceTypes))
	for name, st := range doc.ServiceTypes {
		if st.Image == "" {
			return nil, fmt.Errorf("service type %q has no image", name)
		}
		st.Name = name
		types[name] = st
	}
	return types, nil
}

// LoadServiceTypes reads the registry from path, or the built-in registry
// when path is empty.
func LoadServiceTypes(path string) (ServiceTypes, error) {
	if path == "" {
		return ParseServiceTypes(defaultServiceTypes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service types file: %w", err)
	}
	return ParseServiceTypes(data)
}

// Lookup implements handler.ServiceCatalog.
func (t ServiceTypes) Lookup(name string) (handler.ServiceImage, bool) {
	st, ok := t[name]
	if !ok {
		return handler.ServiceImage{}, false
	}
	return handler.ServiceImage{Image: st.Image, Env: st.Env, ConfigEnv: st.ConfigEnv}, true
}

// Names returns the registered names in sorted order.
func (t ServiceTypes) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
