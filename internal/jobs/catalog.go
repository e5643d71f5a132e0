package jobs

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danpasecinic/harvester/internal/jobs/docker"
	"github.com/danpasecinic/harvester/internal/registry"
	"github.com/danpasecinic/harvester/internal/types"
)

// Implementation tiers, most capable first.
const (
	TierEnhanced = "enhanced"
	TierBasic    = "basic"
)

const connectTimeout = 5 * time.Second

// ErrNoImage is returned when the container tier has no image to run.
var ErrNoImage = errors.New("no scraper image configured")

// Connector returns a reachable container runtime.
type Connector func(ctx context.Context) (ContainerRuntime, error)

// CatalogConfig controls which tiers are offered for the built-in job types.
type CatalogConfig struct {
	DockerEnabled bool
	ScraperImage  string
	HTTPClient    *http.Client
	Connect       Connector
}

// Definitions returns the built-in job types.
func Definitions() []registry.Definition {
	return []registry.Definition{
		{
			Name:        "tenders",
			Description: "Open public tenders",
			Defaults: map[string]any{
				"pages":       3,
				"page_param":  "page",
				"item_marker": `data-tender-id="`,
				"max_items":   0,
			},
		},
		{
			Name:        "procurement-notices",
			Description: "Prior information and procurement notices",
			Defaults: map[string]any{
				"pages":       2,
				"page_param":  "page",
				"item_marker": `data-notice-id="`,
				"max_items":   0,
			},
		},
		{
			Name:        "awards",
			Description: "Contract award notices",
			Defaults: map[string]any{
				"pages":       2,
				"page_param":  "p",
				"item_marker": `data-award-id="`,
				"max_items":   0,
			},
		},
	}
}

// RegisterCatalog registers the built-in job types. Each gets the container
// tier when Docker is enabled, with the in-process scraper as fallback.
func RegisterCatalog(r *registry.Registry, cfg CatalogConfig) {
	scraper := NewScraper(cfg.HTTPClient)

	for _, def := range Definitions() {
		var impls []registry.Implementation
		if cfg.DockerEnabled {
			impls = append(
				impls, registry.Implementation{
					Tier:  TierEnhanced,
					Build: containerBuilder(cfg, def.Name),
				},
			)
		}
		impls = append(
			impls, registry.Implementation{
				Tier: TierBasic,
				Build: func() (types.JobFunc, error) {
					return scraper.Run, nil
				},
			},
		)
		r.Register(def, impls...)
	}
}

func containerBuilder(cfg CatalogConfig, jobType string) func() (types.JobFunc, error) {
	return func() (types.JobFunc, error) {
		if cfg.ScraperImage == "" {
			return nil, ErrNoImage
		}
		if cfg.Connect == nil {
			return nil, errors.New("no container runtime configured")
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		runtime, err := cfg.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return NewContainerJob(runtime, jobType, cfg.ScraperImage).Run, nil
	}
}

// DockerConnector lazily creates one shared Docker client.
type DockerConnector struct {
	mu     sync.Mutex
	client *docker.Client
}

// Connect returns the shared client once the daemon answers a ping.
func (c *DockerConnector) Connect(ctx context.Context) (ContainerRuntime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		cli, err := docker.NewClient()
		if err != nil {
			return nil, err
		}
		c.client = cli
	}

	if err := c.client.Ping(ctx); err != nil {
		return nil, err
	}
	return c.client, nil
}

// Close closes the shared client.
func (c *DockerConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
