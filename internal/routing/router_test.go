package routing

import (
	"testing"

	"github.com/google/uuid"

	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

var (
	archiveA = uuid.New()
	archiveB = uuid.New()
	archiveC = uuid.New()
)

func testConfigs() []models.ArchiveConfig {
	return []models.ArchiveConfig{
		{ID: archiveA, Name: "primary", IsActive: true, IsDefault: true},
		{ID: archiveB, Name: "secondary", IsActive: true},
		{ID: archiveC, Name: "retired", IsActive: false},
	}
}

func TestRoutePriorityOrder(t *testing.T) {
	rules := []models.RoutingRule{
		{Priority: 20, Location: "clinic-1", ArchiveID: archiveA, IsActive: true},
		{Priority: 10, Location: "clinic-1", ArchiveID: archiveB, IsActive: true},
	}

	got, err := Route(testConfigs(), rules, models.RoutingContext{Location: "clinic-1"})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if got.ID != archiveB {
		t.Errorf("routed to %s, want lower-priority-number rule's archive %s", got.ID, archiveB)
	}
}

func TestRouteAllConditionsMustMatch(t *testing.T) {
	rules := []models.RoutingRule{
		{
			Priority:   1,
			Location:   "clinic-1",
			ImageTypes: []string{"panoramic", "cbct"},
			PatientID:  "P001",
			ArchiveID:  archiveB,
			IsActive:   true,
		},
	}

	// One condition off: falls through to the default.
	got, err := Route(testConfigs(), rules, models.RoutingContext{
		Location: "clinic-1", ImageType: "panoramic", PatientID: "P999",
	})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if got.ID != archiveA {
		t.Errorf("partial match routed to %s, want default %s", got.ID, archiveA)
	}

	// All conditions hold.
	got, err = Route(testConfigs(), rules, models.RoutingContext{
		Location: "clinic-1", ImageType: "cbct", PatientID: "P001",
	})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if got.ID != archiveB {
		t.Errorf("full match routed to %s, want %s", got.ID, archiveB)
	}
}

func TestRouteAbsentConditionsAreWildcards(t *testing.T) {
	rules := []models.RoutingRule{
		{Priority: 1, ArchiveID: archiveB, IsActive: true},
	}

	got, err := Route(testConfigs(), rules, models.RoutingContext{Location: "anywhere"})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if got.ID != archiveB {
		t.Errorf("wildcard rule routed to %s, want %s", got.ID, archiveB)
	}
}

func TestRouteSkipsInactiveRuleAndArchive(t *testing.T) {
	rules := []models.RoutingRule{
		{Priority: 1, ArchiveID: archiveB, IsActive: false},
		{Priority: 2, ArchiveID: archiveC, IsActive: true}, // archive inactive
	}

	got, err := Route(testConfigs(), rules, models.RoutingContext{})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if got.ID != archiveA {
		t.Errorf("routed to %s, want default %s", got.ID, archiveA)
	}
}

func TestRouteNoDefaultFails(t *testing.T) {
	configs := []models.ArchiveConfig{
		{ID: archiveB, Name: "secondary", IsActive: true},
	}

	_, err := Route(configs, nil, models.RoutingContext{})
	if err == nil {
		t.Fatal("expected an error with no rules and no default archive")
	}
}

func TestRouteDeterministic(t *testing.T) {
	rules := []models.RoutingRule{
		{Priority: 5, ImageTypes: []string{"bitewing"}, ArchiveID: archiveB, IsActive: true},
		{Priority: 5, ImageTypes: []string{"bitewing"}, ArchiveID: archiveA, IsActive: true},
	}
	ctx := models.RoutingContext{ImageType: "bitewing"}

	first, err := Route(testConfigs(), rules, ctx)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := Route(testConfigs(), rules, ctx)
		if err != nil {
			t.Fatalf("Route failed: %v", err)
		}
		if got.ID != first.ID {
			t.Fatal("equal-priority routing is not deterministic")
		}
	}
}

func TestMatchesImageTypeList(t *testing.T) {
	rule := models.RoutingRule{ImageTypes: []string{"panoramic", "cephalometric"}}

	if !Matches(rule, models.RoutingContext{ImageType: "cephalometric"}) {
		t.Error("listed image type should match")
	}
	if Matches(rule, models.RoutingContext{ImageType: "cbct"}) {
		t.Error("unlisted image type should not match")
	}
	if Matches(rule, models.RoutingContext{}) {
		t.Error("empty image type should not match a typed rule")
	}
}
