package testing

import (
	"fmt"
	"strings"
)

// TerraformOutput renders `terraform output -json` for a cluster with the
// given node counts. Hosts are named m0.., w0.. in order.
func TerraformOutput(masters, workers int) []byte {
	return []byte(fmt.Sprintf(`{"kmasters_info":{"sensitive":false,"value":{%s}},"kworkers_info":{"sensitive":false,"value":{%s}}}`,
		hostMap("m", masters), hostMap("w", workers)))
}

func hostMap(prefix string, n int) string {
	entries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, fmt.Sprintf(`"%s%d":"ec2-%s%d.eu-west-3.compute.amazonaws.com"`, prefix, i, prefix, i))
	}
	return strings.Join(entries, ",")
}

// Kubeconfig is a minimal admin kubeconfig as written by kubeadm.
const Kubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://kap-lb.eu-west-3.elb.amazonaws.com:6443
  name: kubernetes
contexts:
- context:
    cluster: kubernetes
    user: kubernetes-admin
  name: kubernetes-admin@kubernetes
current-context: kubernetes-admin@kubernetes
users:
- name: kubernetes-admin
  user:
    token: test
`
