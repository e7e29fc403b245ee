package orchestration

import (
	"fmt"

	"github.com/kapctl/kap/internal/config"
)

// DescaleRejectedError is returned when a request would shrink a running cluster.
type DescaleRejectedError struct {
	Deployed  config.DeployedShape
	Requested config.DeployedShape
}

func (e *DescaleRejectedError) Error() string {
	return fmt.Sprintf("descaling is not supported: the cluster runs %s (masters:workers) and %s was requested; "+
		"destroy and redeploy the cluster with the desired dimensions",
		e.Deployed, e.Requested)
}

// CheckScaling passes when no cluster exists or when requested keeps or
// grows both node counts of deployed.
func CheckScaling(requested config.DeployedShape, deployed *config.DeployedShape) error {
	if deployed == nil {
		return nil
	}
	if requested.Masters < deployed.Masters || requested.Workers < deployed.Workers {
		return &DescaleRejectedError{Deployed: *deployed, Requested: requested}
	}
	return nil
}
