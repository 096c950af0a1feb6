package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// resourceTypes maps the collections the fake controller serves to the
// singular type reported in each object's "type" field.
var resourceTypes = map[string]string{
	"organizations":          "organization",
	"teams":                  "team",
	"users":                  "user",
	"projects":               "project",
	"inventories":            "inventory",
	"inventory_sources":      "inventory_source",
	"hosts":                  "host",
	"credentials":            "credential",
	"job_templates":          "job_template",
	"system_job_templates":   "system_job_template",
	"workflow_job_templates": "workflow_job_template",
	"notification_templates": "notification_template",
}

// IsResourceEndpoint reports whether endpoint is a generic resource collection.
func IsResourceEndpoint(endpoint string) bool {
	_, ok := resourceTypes[endpoint]
	return ok
}

// ResourceEndpoints lists the generic collections, sorted.
func ResourceEndpoints() []string {
	return slices.Sorted(maps.Keys(resourceTypes))
}

// ControllerService keeps the fake controller's objects in memory. Objects
// are schemaless: whatever fields are posted are stored and echoed back.
type ControllerService struct {
	mu        sync.RWMutex
	nextID    map[string]int
	resources map[string]map[int]*models.Resource
}

func NewControllerService(adminPassword string) *ControllerService {
	c := &ControllerService{
		nextID:    make(map[string]int),
		resources: make(map[string]map[int]*models.Resource),
	}
	for endpoint := range resourceTypes {
		c.resources[endpoint] = make(map[int]*models.Resource)
	}

	ctx := context.Background()
	_, _ = c.Create(ctx, "users", map[string]any{"username": "admin", "password": adminPassword, "is_superuser": true})
	_, _ = c.Create(ctx, "organizations", map[string]any{"name": "Default"})
	_, _ = c.Create(ctx, "system_job_templates", map[string]any{"name": "Cleanup Job Details", "job_type": "cleanup_jobs"})
	_, _ = c.Create(ctx, "system_job_templates", map[string]any{"name": "Cleanup Activity Stream", "job_type": "cleanup_activitystream"})

	return c
}

// Create stores a new object. Names are unique within a collection.
func (c *ControllerService) Create(ctx context.Context, endpoint string, fields map[string]any) (*models.Resource, error) {
	typ, ok := resourceTypes[endpoint]
	if !ok {
		return nil, srvErrors.NewUnknownKindError(endpoint)
	}

	name := nameOf(endpoint, fields)
	if name == "" {
		return nil, srvErrors.NewInvalidArgumentError("name", "this field is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.resources[endpoint] {
		if r.Name == name {
			return nil, srvErrors.NewInvalidArgumentError("name", fmt.Sprintf("%s with this name already exists", typ))
		}
	}

	c.nextID[endpoint]++
	id := c.nextID[endpoint]
	r := &models.Resource{
		ID:      id,
		Type:    typ,
		Name:    name,
		URL:     fmt.Sprintf("/api/v2/%s/%d/", endpoint, id),
		Related: related(endpoint, id),
		Fields:  maps.Clone(fields),
	}
	c.resources[endpoint][id] = r

	zap.S().Named("controller_service").Debugw("resource created", "endpoint", endpoint, "id", id, "name", name)

	return clone(r), nil
}

func (c *ControllerService) Get(ctx context.Context, endpoint string, id int) (*models.Resource, error) {
	if !IsResourceEndpoint(endpoint) {
		return nil, srvErrors.NewUnknownKindError(endpoint)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.resources[endpoint][id]
	if !ok {
		return nil, srvErrors.NewResourceNotFoundError(resourceTypes[endpoint], strconv.Itoa(id))
	}
	return clone(r), nil
}

// List returns the collection ordered by id.
func (c *ControllerService) List(ctx context.Context, endpoint string) ([]models.Resource, error) {
	if !IsResourceEndpoint(endpoint) {
		return nil, srvErrors.NewUnknownKindError(endpoint)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Resource, 0, len(c.resources[endpoint]))
	for _, id := range slices.Sorted(maps.Keys(c.resources[endpoint])) {
		out = append(out, *clone(c.resources[endpoint][id]))
	}
	return out, nil
}

// Update merges fields into an existing object.
func (c *ControllerService) Update(ctx context.Context, endpoint string, id int, fields map[string]any) (*models.Resource, error) {
	if !IsResourceEndpoint(endpoint) {
		return nil, srvErrors.NewUnknownKindError(endpoint)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.resources[endpoint][id]
	if !ok {
		return nil, srvErrors.NewResourceNotFoundError(resourceTypes[endpoint], strconv.Itoa(id))
	}
	maps.Copy(r.Fields, fields)
	if name := nameOf(endpoint, fields); name != "" {
		r.Name = name
	}
	return clone(r), nil
}

func (c *ControllerService) Delete(ctx context.Context, endpoint string, id int) error {
	if !IsResourceEndpoint(endpoint) {
		return srvErrors.NewUnknownKindError(endpoint)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.resources[endpoint][id]; !ok {
		return srvErrors.NewResourceNotFoundError(resourceTypes[endpoint], strconv.Itoa(id))
	}
	delete(c.resources[endpoint], id)
	return nil
}

// Authenticate checks a username and password against the stored users.
func (c *ControllerService) Authenticate(username, password string) (*models.User, bool) {
	u, ok := c.FindUser(username)
	if !ok || u.Password != password {
		return nil, false
	}
	return u, true
}

func (c *ControllerService) FindUser(username string) (*models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.resources["users"] {
		if r.Name == username {
			password, _ := r.Fields["password"].(string)
			return &models.User{ID: r.ID, Username: r.Name, Password: password}, true
		}
	}
	return nil, false
}

// Associate adds or removes id in the list field of an object, the way the
// controller's sublist endpoints (e.g. notification_templates_success) do.
func (c *ControllerService) Associate(ctx context.Context, endpoint string, id int, field string, other int, disassociate bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.resources[endpoint][id]
	if !ok {
		return srvErrors.NewResourceNotFoundError(resourceTypes[endpoint], strconv.Itoa(id))
	}

	ids := IntList(r.Fields[field])
	ids = slices.DeleteFunc(ids, func(v int) bool { return v == other })
	if !disassociate {
		ids = append(ids, other)
	}
	r.Fields[field] = ids
	return nil
}

// IntList reads a list of ids out of a schemaless field.
func IntList(v any) []int {
	switch t := v.(type) {
	case []int:
		return slices.Clone(t)
	case []any:
		out := make([]int, 0, len(t))
		for _, e := range t {
			if f, ok := e.(float64); ok {
				out = append(out, int(f))
			}
		}
		return out
	default:
		return nil
	}
}

func nameOf(endpoint string, fields map[string]any) string {
	key := "name"
	if endpoint == "users" {
		key = "username"
	}
	name, _ := fields[key].(string)
	return name
}

func related(endpoint string, id int) map[string]string {
	base := fmt.Sprintf("/api/v2/%s/%d/", endpoint, id)
	rel := map[string]string{}
	switch endpoint {
	case "job_templates", "system_job_templates", "workflow_job_templates":
		rel["launch"] = base + "launch/"
		rel["jobs"] = base + "jobs/"
	case "projects", "inventory_sources":
		rel["update"] = base + "update/"
	case "notification_templates":
		rel["test"] = base + "test/"
		rel["notifications"] = base + "notifications/"
	case "users":
		rel["personal_tokens"] = base + "personal_tokens/"
	}
	if endpoint == "job_templates" || endpoint == "workflow_job_templates" {
		for _, event := range []string{"started", "success", "error"} {
			rel["notification_templates_"+event] = base + "notification_templates_" + event + "/"
		}
	}
	return rel
}

func clone(r *models.Resource) *models.Resource {
	c := *r
	c.Related = maps.Clone(r.Related)
	c.Fields = maps.Clone(r.Fields)
	return &c
}
