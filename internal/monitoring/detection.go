package monitoring

import (
	"strings"

	"github.com/qfleet/qfleet/internal/models"
	"github.com/qfleet/qfleet/internal/qumulo"
)

// DetectClusterType classifies a cluster from its node model strings. Cloud
// deployments report their platform in the model number; anything else is an
// on-prem cluster described by its distinct hardware SKUs.
func DetectClusterType(nodes []qumulo.Node) models.ClusterType {
	skus := make([]string, 0, len(nodes))
	for _, node := range nodes {
		model := strings.TrimSpace(node.Model)
		if model == "" {
			continue
		}
		upper := strings.ToUpper(model)
		if strings.Contains(upper, "AWS") {
			return models.ClusterType{Kind: models.ClusterKindCNQAWS}
		}
		if strings.Contains(upper, "AZURE") {
			return models.ClusterType{Kind: models.ClusterKindANQAzure}
		}
		skus = append(skus, model)
	}
	return models.OnPremType(skus)
}
