package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
)

func (c *Client) Instances(ctx context.Context) ([]models.Instance, error) {
	out := []models.Instance{}
	err := eachPage(ctx, c, "/instances/", nil, func(raw json.RawMessage) error {
		var i v2.Instance
		if err := json.Unmarshal(raw, &i); err != nil {
			return err
		}
		m, err := i.ToModel()
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func (c *Client) Instance(ctx context.Context, id int) (*models.Instance, error) {
	var i v2.Instance
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/instances/%d/", id), nil, nil, &i); err != nil {
		return nil, err
	}
	m, err := i.ToModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetCapacityAdjustment changes the instance's position between its cpu and memory capacity.
func (c *Client) SetCapacityAdjustment(ctx context.Context, id int, adjustment float64) (*models.Instance, error) {
	return c.patchInstance(ctx, id, map[string]any{"capacity_adjustment": fmt.Sprintf("%.2f", adjustment)})
}

func (c *Client) SetInstanceEnabled(ctx context.Context, id int, enabled bool) (*models.Instance, error) {
	return c.patchInstance(ctx, id, map[string]any{"enabled": enabled})
}

func (c *Client) patchInstance(ctx context.Context, id int, body map[string]any) (*models.Instance, error) {
	var i v2.Instance
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/instances/%d/", id), nil, body, &i); err != nil {
		return nil, err
	}
	m, err := i.ToModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) InstanceGroups(ctx context.Context) ([]models.InstanceGroup, error) {
	out := []models.InstanceGroup{}
	err := eachPage(ctx, c, "/instance_groups/", nil, func(raw json.RawMessage) error {
		var g v2.InstanceGroup
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		out = append(out, g.ToModel())
		return nil
	})
	return out, err
}

func (c *Client) InstanceGroup(ctx context.Context, id int) (*models.InstanceGroup, error) {
	var g v2.InstanceGroup
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/instance_groups/%d/", id), nil, nil, &g); err != nil {
		return nil, err
	}
	m := g.ToModel()
	return &m, nil
}

// CreateContainerGroup creates a container group. A nil pod uses DefaultPodSpec.
func (c *Client) CreateContainerGroup(ctx context.Context, name string, credential *int, pod *corev1.Pod) (*models.InstanceGroup, error) {
	if pod == nil {
		pod = DefaultPodSpec("default")
	}
	spec, err := yaml.Marshal(pod)
	if err != nil {
		return nil, fmt.Errorf("encoding pod spec override: %w", err)
	}

	var g v2.InstanceGroup
	body := v2.InstanceGroup{
		Name:             name,
		IsContainerGroup: true,
		Credential:       credential,
		PodSpecOverride:  string(spec),
	}
	if err := c.do(ctx, http.MethodPost, "/instance_groups/", nil, body, &g); err != nil {
		return nil, err
	}
	m := g.ToModel()
	return &m, nil
}

func (c *Client) DeleteInstanceGroup(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/instance_groups/%d/", id), nil, nil, nil)
}

// DefaultPodSpec is the execution environment pod the controller uses for container groups.
func DefaultPodSpec(namespace string) *corev1.Pod {
	return &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:  "worker",
				Image: "ansible/ansible-runner",
				Args:  []string{"sleep", "infinity"},
				Stdin: true,
				TTY:   true,
			}},
		},
	}
}

// ParsePodSpec decodes a group's pod_spec_override.
func ParsePodSpec(spec string) (*corev1.Pod, error) {
	pod := &corev1.Pod{}
	if err := yaml.Unmarshal([]byte(spec), pod); err != nil {
		return nil, fmt.Errorf("decoding pod spec override: %w", err)
	}
	return pod, nil
}
