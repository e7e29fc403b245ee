package handlers

import (
	"fmt"

	"github.com/kapctl/kap/internal/config"
	"github.com/kapctl/kap/internal/provisioning"
	"github.com/kapctl/kap/internal/ui/style"
)

const (
	dashboardForward = "kubectl port-forward -n kubernetes-dashboard service/kubernetes-dashboard-kong-proxy 8443:443"
	dashboardURL     = "https://localhost:8443"
)

// printAccess reports the retrieved kubeconfig and how to use it.
func printAccess(pCtx *provisioning.Context) {
	p := newPrinter(stdout)
	path := pCtx.Spec.KubeconfigPath()

	rows := []style.Row{{Key: "Kubeconfig", Value: path}}
	if info := pCtx.State.Kubeconfig; info != nil {
		rows = append(rows,
			style.Row{Key: "Context", Value: info.Context},
			style.Row{Key: "API server", Value: info.Server})
	}
	p.Sections([]style.Section{{Title: "Cluster access:", Rows: rows}})

	var hints []string
	if path != config.Default().KubeconfigPath() {
		hints = append(hints, fmt.Sprintf("export KUBECONFIG=%s", path))
	}
	for _, tool := range missingOptionalTools() {
		hints = append(hints, fmt.Sprintf("%s was not found in PATH, install it from %s", tool.Name, tool.InstallURL))
	}
	hints = append(hints,
		"Try to execute 'kubectl get nodes'",
		fmt.Sprintf("To reach the dashboard run '%s'", dashboardForward),
		fmt.Sprintf("and open %s", dashboardURL))
	p.Hints(hints...)
}
