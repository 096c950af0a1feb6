// Package registry resolves a resource kind tag such as "project" or
// "job_template" to a factory that creates a fresh instance on the
// controller, together with whatever parents it needs.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

type Kind string

const (
	KindOrganization         Kind = "organization"
	KindTeam                 Kind = "team"
	KindUser                 Kind = "user"
	KindProject              Kind = "project"
	KindInventory            Kind = "inventory"
	KindInventorySource      Kind = "inventory_source"
	KindCredential           Kind = "credential"
	KindJobTemplate          Kind = "job_template"
	KindNotificationTemplate Kind = "notification_template"
)

// Endpoint is the collection the kind lives in.
func (k Kind) Endpoint() string {
	switch k {
	case KindInventory:
		return "inventories"
	default:
		return string(k) + "s"
	}
}

// KindOf maps a collection back to its kind.
func KindOf(endpoint string) Kind {
	if endpoint == "inventories" {
		return KindInventory
	}
	return Kind(strings.TrimSuffix(endpoint, "s"))
}

// ResourceClient is the part of the REST client factories need.
type ResourceClient interface {
	Create(ctx context.Context, endpoint string, fields map[string]any) (*models.Resource, error)
	Delete(ctx context.Context, endpoint string, id int) error
}

// Factory creates one resource. Parents are created through f so that they
// are cleaned up with the rest of the fixtures.
type Factory func(ctx context.Context, f *Fixtures, fields map[string]any) (*models.Resource, error)

type Registry struct {
	factories map[Kind]Factory
}

func New() *Registry {
	return &Registry{factories: map[Kind]Factory{}}
}

// Default returns a registry holding a factory for every known kind.
func Default() *Registry {
	r := New()
	r.Register(KindOrganization, simple(KindOrganization, nil))
	r.Register(KindTeam, withParents(KindTeam, map[string]Kind{"organization": KindOrganization}))
	r.Register(KindUser, func(ctx context.Context, f *Fixtures, fields map[string]any) (*models.Resource, error) {
		base := map[string]any{"username": RandomName("user"), "password": uuid.NewString()}
		maps.Copy(base, fields)
		return f.create(ctx, KindUser, base)
	})
	r.Register(KindProject, withParents(KindProject, map[string]Kind{"organization": KindOrganization}))
	r.Register(KindInventory, withParents(KindInventory, map[string]Kind{"organization": KindOrganization}))
	r.Register(KindInventorySource, withParents(KindInventorySource, map[string]Kind{"inventory": KindInventory}))
	r.Register(KindCredential, simple(KindCredential, map[string]any{"credential_type": 1}))
	r.Register(KindJobTemplate, withParents(KindJobTemplate, map[string]Kind{
		"project":   KindProject,
		"inventory": KindInventory,
	}))
	r.Register(KindNotificationTemplate, withParents(KindNotificationTemplate, map[string]Kind{"organization": KindOrganization}))
	return r
}

func (r *Registry) Register(k Kind, fn Factory) {
	r.factories[k] = fn
}

// Lookup returns the factory of k, or an UnknownKindError.
func (r *Registry) Lookup(k Kind) (Factory, error) {
	fn, ok := r.factories[k]
	if !ok {
		return nil, srvErrors.NewUnknownKindError(string(k))
	}
	return fn, nil
}

// Kinds lists the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	return slices.Sorted(maps.Keys(r.factories))
}

// RandomName returns prefix followed by a random suffix, unique per call.
func RandomName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

func simple(k Kind, defaults map[string]any) Factory {
	return func(ctx context.Context, f *Fixtures, fields map[string]any) (*models.Resource, error) {
		base := map[string]any{"name": RandomName(string(k))}
		maps.Copy(base, defaults)
		maps.Copy(base, fields)
		return f.create(ctx, k, base)
	}
}

// withParents creates each missing parent field before the resource itself.
func withParents(k Kind, parents map[string]Kind) Factory {
	return func(ctx context.Context, f *Fixtures, fields map[string]any) (*models.Resource, error) {
		base := map[string]any{"name": RandomName(string(k))}
		for _, field := range slices.Sorted(maps.Keys(parents)) {
			if _, set := fields[field]; set {
				continue
			}
			parent, err := f.Create(ctx, parents[field], nil)
			if err != nil {
				return nil, fmt.Errorf("creating %s for %s: %w", parents[field], k, err)
			}
			base[field] = parent.ID
		}
		maps.Copy(base, fields)
		return f.create(ctx, k, base)
	}
}

type created struct {
	kind Kind
	id   int
}

// Fixtures creates resources through a registry and remembers them so a
// test can delete everything it made.
type Fixtures struct {
	registry *Registry
	client   ResourceClient

	mu      sync.Mutex
	created []created
}

func NewFixtures(r *Registry, c ResourceClient) *Fixtures {
	return &Fixtures{registry: r, client: c}
}

// Create makes a resource of kind k. fields override the factory's defaults.
func (f *Fixtures) Create(ctx context.Context, k Kind, fields map[string]any) (*models.Resource, error) {
	fn, err := f.registry.Lookup(k)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fn(ctx, f, fields)
}

func (f *Fixtures) create(ctx context.Context, k Kind, fields map[string]any) (*models.Resource, error) {
	r, err := f.client.Create(ctx, k.Endpoint(), fields)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.created = append(f.created, created{kind: k, id: r.ID})
	f.mu.Unlock()

	zap.S().Named("registry").Debugw("fixture created", "kind", k, "id", r.ID, "name", r.Name)
	return r, nil
}

// Track adds a resource created elsewhere to the cleanup list.
func (f *Fixtures) Track(k Kind, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, created{kind: k, id: id})
}

// Cleanup deletes every tracked resource, newest first. Resources already
// gone are skipped; other failures are collected and returned together.
func (f *Fixtures) Cleanup(ctx context.Context) error {
	f.mu.Lock()
	items := f.created
	f.created = nil
	f.mu.Unlock()

	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		err := f.client.Delete(ctx, it.kind.Endpoint(), it.id)
		if err == nil || srvErrors.IsResourceNotFoundError(err) {
			continue
		}
		errs = append(errs, fmt.Errorf("deleting %s %d: %w", it.kind, it.id, err))
	}
	return errors.Join(errs...)
}
