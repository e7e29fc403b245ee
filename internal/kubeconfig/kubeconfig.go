// Package kubeconfig checks the cluster credential retrieved from the
// service node.
package kubeconfig

import (
	"errors"
	"fmt"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// ErrInvalid is returned for a kubeconfig that cannot reach any cluster.
var ErrInvalid = errors.New("invalid kubeconfig")

// Info summarizes a kubeconfig.
type Info struct {
	Context string
	Cluster string
	Server  string
}

// Inspect loads the kubeconfig at path and resolves its current context.
func Inspect(path string) (*Info, error) {
	cfg, err := clientcmd.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig %s: %w", path, err)
	}
	return inspect(cfg)
}

// Parse is Inspect for an in-memory kubeconfig.
func Parse(data []byte) (*Info, error) {
	cfg, err := clientcmd.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}
	return inspect(cfg)
}

func inspect(cfg *clientcmdapi.Config) (*Info, error) {
	name := cfg.CurrentContext
	if name == "" {
		// kubeadm writes a single context; accept it when none is selected.
		if len(cfg.Contexts) != 1 {
			return nil, fmt.Errorf("%w: no current context", ErrInvalid)
		}
		for n := range cfg.Contexts {
			name = n
		}
	}

	kctx, ok := cfg.Contexts[name]
	if !ok || kctx == nil {
		return nil, fmt.Errorf("%w: context %q not found", ErrInvalid, name)
	}
	cluster, ok := cfg.Clusters[kctx.Cluster]
	if !ok || cluster == nil {
		return nil, fmt.Errorf("%w: cluster %q not found", ErrInvalid, kctx.Cluster)
	}
	if cluster.Server == "" {
		return nil, fmt.Errorf("%w: cluster %q has no server", ErrInvalid, kctx.Cluster)
	}

	return &Info{Context: name, Cluster: kctx.Cluster, Server: cluster.Server}, nil
}
