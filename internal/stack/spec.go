// Package stack declares the three-service deployment as code and drives it
// through the Docker Engine API: one bridge network, an ingester that runs a
// single pass over the corpus, the retrieval API on 8000 and the chat app on
// 8501.
package stack

import (
	"fmt"
	"sort"
	"strings"
)

// Restart policies a service may declare.
const (
	RestartNever     = "no"
	RestartAlways    = "always"
	RestartOnFailure = "on-failure"
)

// PortBinding publishes a container tcp port on the host.
type PortBinding struct {
	Host      int
	Container int
}

// BindMount maps a host directory into a container.
type BindMount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ServiceSpec describes one container of the stack.
type ServiceSpec struct {
	Name      string
	Image     string
	Env       map[string]string
	Ports     []PortBinding
	Mounts    []BindMount
	Restart   string
	DependsOn []string
}

// StackSpec is the whole deployment: a named stack on a single bridge
// network. Start order follows DependsOn; it is an ordering hint, not a
// readiness gate.
type StackSpec struct {
	Name     string
	Network  string
	Services []ServiceSpec
}

// SpecConfig parameterizes the default stack.
type SpecConfig struct {
	CorpusDir          string
	OpenSearchEndpoint string
	OpenSearchIndex    string
	OllamaURL          string
	ModelName          string
	IngesterImage      string
	APIImage           string
	AppImage           string
}

func (c *SpecConfig) applyDefaults() {
	if c.CorpusDir == "" {
		c.CorpusDir = "./corpus"
	}
	if c.OpenSearchEndpoint == "" {
		c.OpenSearchEndpoint = "http://opensearch:9200"
	}
	if c.OpenSearchIndex == "" {
		c.OpenSearchIndex = "webinar_pdf_index"
	}
	if c.OllamaURL == "" {
		c.OllamaURL = "http://ollama:11434"
	}
	if c.ModelName == "" {
		c.ModelName = "qwen2:0.5b"
	}
	if c.IngesterImage == "" {
		c.IngesterImage = "thaidata/lexrag-ingester:latest"
	}
	if c.APIImage == "" {
		c.APIImage = "thaidata/lexrag-api:latest"
	}
	if c.AppImage == "" {
		c.AppImage = "thaidata/lexrag-app:latest"
	}
}

// DefaultSpec builds the canonical three-service stack. The ingester and API
// share the index configuration; the app only knows the API, the model
// endpoint and the model name.
func DefaultSpec(cfg SpecConfig) StackSpec {
	cfg.applyDefaults()

	indexEnv := map[string]string{
		"OPENSEARCH_ENDPOINT": cfg.OpenSearchEndpoint,
		"OPENSEARCH_INDEX":    cfg.OpenSearchIndex,
	}

	return StackSpec{
		Name:    "lexrag",
		Network: "lexrag",
		Services: []ServiceSpec{
			{
				Name:    "ingester",
				Image:   cfg.IngesterImage,
				Env:     indexEnv,
				Restart: RestartOnFailure,
				Mounts: []BindMount{
					{Source: cfg.CorpusDir, Target: "/corpus", ReadOnly: true},
				},
			},
			{
				Name:      "api",
				Image:     cfg.APIImage,
				Env:       indexEnv,
				Restart:   RestartAlways,
				Ports:     []PortBinding{{Host: 8000, Container: 8000}},
				DependsOn: []string{"ingester"},
			},
			{
				Name:  "app",
				Image: cfg.AppImage,
				Env: map[string]string{
					"API_URL":    "http://api:8000",
					"OLLAMA_URL": cfg.OllamaURL,
					"MODEL_NAME": cfg.ModelName,
				},
				Restart:   RestartAlways,
				Ports:     []PortBinding{{Host: 8501, Container: 8501}},
				DependsOn: []string{"api"},
			},
		},
	}
}

// Validate checks the spec invariants: non-empty names and images, unique
// service names, known restart policies, dependencies that exist and do not
// form a cycle.
func (s StackSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("stack name is empty")
	}
	if strings.TrimSpace(s.Network) == "" {
		return fmt.Errorf("stack network is empty")
	}
	if len(s.Services) == 0 {
		return fmt.Errorf("stack has no services")
	}

	byName := make(map[string]ServiceSpec, len(s.Services))
	for _, svc := range s.Services {
		if strings.TrimSpace(svc.Name) == "" {
			return fmt.Errorf("service with empty name")
		}
		if strings.TrimSpace(svc.Image) == "" {
			return fmt.Errorf("service %q has no image", svc.Name)
		}
		switch svc.Restart {
		case "", RestartNever, RestartAlways, RestartOnFailure:
		default:
			return fmt.Errorf("service %q has unknown restart policy %q", svc.Name, svc.Restart)
		}
		if _, exists := byName[svc.Name]; exists {
			return fmt.Errorf("duplicate service name %q", svc.Name)
		}
		byName[svc.Name] = svc
	}

	for _, svc := range s.Services {
		for _, dep := range svc.DependsOn {
			if _, ok := byName[dep]; !ok {
				return fmt.Errorf("service %q depends on %q, which does not exist", svc.Name, dep)
			}
		}
	}

	if _, err := s.StartOrder(); err != nil {
		return err
	}
	return nil
}

// StartOrder returns the services sorted so each one comes after everything
// it depends on. Independent services keep a stable alphabetical order.
func (s StackSpec) StartOrder() ([]ServiceSpec, error) {
	byName := make(map[string]ServiceSpec, len(s.Services))
	names := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		byName[svc.Name] = svc
		names = append(names, svc.Name)
	}
	sort.Strings(names)

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]uint8, len(names))
	ordered := make([]ServiceSpec, 0, len(names))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("circular dependency through service %q", name)
		case visited:
			return nil
		}
		state[name] = visiting

		svc := byName[name]
		deps := append([]string(nil), svc.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := byName[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		state[name] = visited
		ordered = append(ordered, svc)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// Service returns the named service spec.
func (s StackSpec) Service(name string) (ServiceSpec, bool) {
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceSpec{}, false
}

// ContainerName is the engine-level name for a service of this stack.
func (s StackSpec) ContainerName(service string) string {
	return s.Name + "-" + service
}

// envList renders a service environment as sorted K=V pairs.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
