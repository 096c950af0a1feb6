package cluster

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Deployment is a controller running as a Kubernetes deployment. Stop
// scales it to zero; Start restores the replica count Stop saw.
type Deployment struct {
	clientset kubernetes.Interface
	namespace string
	name      string

	mu       sync.Mutex
	replicas int32
}

func NewDeployment(clientset kubernetes.Interface, namespace, name string) *Deployment {
	return &Deployment{clientset: clientset, namespace: namespace, name: name, replicas: 1}
}

// NewClientset loads a kubeconfig the way kubectl does; an empty path uses
// the default loading rules.
func NewClientset(kubeconfig string) (kubernetes.Interface, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	return kubernetes.NewForConfig(cfg)
}

func (d *Deployment) Name() string {
	return fmt.Sprintf("deployment/%s/%s", d.namespace, d.name)
}

func (d *Deployment) Stop(ctx context.Context) error {
	scale, err := d.clientset.AppsV1().Deployments(d.namespace).GetScale(ctx, d.name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("reading scale of %s: %w", d.Name(), err)
	}

	d.mu.Lock()
	if scale.Spec.Replicas > 0 {
		d.replicas = scale.Spec.Replicas
	}
	d.mu.Unlock()

	return d.scale(ctx, 0)
}

func (d *Deployment) Start(ctx context.Context) error {
	d.mu.Lock()
	replicas := d.replicas
	d.mu.Unlock()
	return d.scale(ctx, replicas)
}

func (d *Deployment) scale(ctx context.Context, replicas int32) error {
	deployments := d.clientset.AppsV1().Deployments(d.namespace)
	scale, err := deployments.GetScale(ctx, d.name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("reading scale of %s: %w", d.Name(), err)
	}
	scale.Spec.Replicas = replicas
	if _, err := deployments.UpdateScale(ctx, d.name, scale, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("scaling %s to %d: %w", d.Name(), replicas, err)
	}
	zap.S().Named("cluster").Infow("scaled deployment", "deployment", d.Name(), "replicas", replicas)
	return nil
}
