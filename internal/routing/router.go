// Package routing selects the archive backend for an upload. Rule
// evaluation is a pure function of (configs, rules, context) so it can be
// table-tested without network access.
package routing

import (
	"fmt"
	"sort"

	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// Route evaluates routing rules in ascending priority order and returns
// the first fully-matching rule's target archive, provided that archive is
// active. With no matching rule the default active archive wins. Routing
// fails with an explicit error when no candidate exists; uploads are never
// silently dropped.
func Route(configs []models.ArchiveConfig, rules []models.RoutingRule, ctx models.RoutingContext) (*models.ArchiveConfig, error) {
	sorted := make([]models.RoutingRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	for _, rule := range sorted {
		if !rule.IsActive || !Matches(rule, ctx) {
			continue
		}
		for i := range configs {
			if configs[i].ID == rule.ArchiveID && configs[i].IsActive {
				return &configs[i], nil
			}
		}
	}

	for i := range configs {
		if configs[i].IsDefault && configs[i].IsActive {
			return &configs[i], nil
		}
	}

	return nil, fmt.Errorf("no routing rule matched and no active default archive is configured")
}

// Matches reports whether every present condition of the rule holds for the
// context. Absent conditions are wildcards.
func Matches(rule models.RoutingRule, ctx models.RoutingContext) bool {
	if rule.Location != "" && ctx.Location != rule.Location {
		return false
	}
	if len(rule.ImageTypes) > 0 {
		found := false
		for _, t := range rule.ImageTypes {
			if ctx.ImageType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if rule.PatientID != "" && ctx.PatientID != rule.PatientID {
		return false
	}
	if rule.LeadID != "" && ctx.LeadID != rule.LeadID {
		return false
	}
	return true
}
