package metricdef

import "testing"

func TestRegistryLookupByNameAndID(t *testing.T) {
	r, err := NewRegistry([]Metric{
		{Name: "power", ID: "p", DeletePossible: true},
	}, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	m, err := r.Lookup("power")
	if err != nil || m.ID != "p" {
		t.Fatalf("lookup by name: %+v, %v", m, err)
	}
	m, err = r.Lookup("p")
	if err != nil || m.Name != "power" {
		t.Fatalf("lookup by id: %+v, %v", m, err)
	}
	if _, err := r.Lookup("bogus"); err == nil {
		t.Fatal("expected ErrUnknownMetric for unregistered name")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Metric{
		{Name: "power", ID: "p"},
		{Name: "power", ID: "q"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for duplicate metric name")
	}
	_, err = NewRegistry([]Metric{
		{Name: "power", ID: "p"},
		{Name: "temp", ID: "p"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for duplicate metric id")
	}
}

func TestRegistryEvents(t *testing.T) {
	r, err := NewRegistry(nil, []Event{{Name: "door"}})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if !r.HasEvent("door") {
		t.Fatal("expected door to be a known event")
	}
	if r.HasEvent("window") {
		t.Fatal("window should not be known")
	}
}

func TestRegistryAllPreservesOrder(t *testing.T) {
	r, err := NewRegistry([]Metric{
		{Name: "power", ID: "p"},
		{Name: "temp", ID: "t"},
	}, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	all := r.All()
	if len(all) != 2 || all[0].Name != "power" || all[1].Name != "temp" {
		t.Fatalf("unexpected order: %+v", all)
	}
}
