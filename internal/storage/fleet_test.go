package storage

import (
	"testing"

	"pump-console/internal/data"
)

func testPump(id int, status string, efficiency float64) *data.Pump {
	return &data.Pump{
		ID:      id,
		Name:    "Pump",
		Status:  status,
		Metrics: data.Metrics{Efficiency: efficiency},
		Alerts:  []data.Alert{},
	}
}

func TestReplaceAll(t *testing.T) {
	t.Run("replaces instead of merging", func(t *testing.T) {
		store := NewFleetStore()
		store.ReplaceAll([]*data.Pump{
			testPump(1, data.StatusRunning, 90),
			testPump(2, data.StatusStopped, 0),
			testPump(3, data.StatusRunning, 80),
		})

		store.ReplaceAll([]*data.Pump{
			testPump(1, data.StatusRunning, 91),
			testPump(3, data.StatusRunning, 81),
		})

		if store.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", store.Len())
		}
		if _, ok := store.Get(2); ok {
			t.Error("pump 2 survived a resync that omitted it")
		}
	})

	t.Run("identical resyncs are idempotent", func(t *testing.T) {
		store := NewFleetStore()
		pumps := []*data.Pump{
			testPump(1, data.StatusRunning, 90),
			testPump(2, data.StatusRunning, 80),
		}
		store.ReplaceAll(pumps)
		first := store.Rollups()

		store.ReplaceAll(pumps)
		second := store.Rollups()

		if first != second {
			t.Errorf("rollups drifted across identical resyncs: %+v vs %+v", first, second)
		}
		if got := store.Len(); got != 2 {
			t.Errorf("Len() = %d, want 2", got)
		}
	})

	t.Run("empty list clears the fleet", func(t *testing.T) {
		store := NewFleetStore()
		store.ReplaceAll([]*data.Pump{testPump(1, data.StatusRunning, 90)})
		store.ReplaceAll([]*data.Pump{})

		if store.Len() != 0 {
			t.Errorf("Len() = %d, want 0", store.Len())
		}
	})
}

func TestReplace(t *testing.T) {
	store := NewFleetStore()
	store.ReplaceAll([]*data.Pump{
		testPump(1, data.StatusRunning, 90),
		testPump(2, data.StatusRunning, 80),
	})

	updated := testPump(1, data.StatusStopped, 0)
	store.Replace(1, updated)

	got, ok := store.Get(1)
	if !ok {
		t.Fatal("pump 1 missing after replace")
	}
	if got != updated {
		t.Error("Get returned a different snapshot than the one replaced in")
	}
	if other, _ := store.Get(2); other.Status != data.StatusRunning {
		t.Error("replace of pump 1 touched pump 2")
	}
}

func TestReplaceBatch(t *testing.T) {
	store := NewFleetStore()
	store.ReplaceAll([]*data.Pump{
		testPump(1, data.StatusRunning, 90),
		testPump(2, data.StatusRunning, 80),
		testPump(3, data.StatusStopped, 0),
	})

	store.ReplaceBatch([]*data.Pump{
		testPump(1, data.StatusEmergencyStop, 0),
		testPump(2, data.StatusEmergencyStop, 0),
	})

	if got := store.Rollups().RunningPumps; got != 0 {
		t.Errorf("RunningPumps = %d, want 0", got)
	}
	if pump, _ := store.Get(3); pump.Status != data.StatusStopped {
		t.Error("batch touched a pump it did not list")
	}
}

func TestAppendAlert(t *testing.T) {
	t.Run("appends via snapshot replacement", func(t *testing.T) {
		store := NewFleetStore()
		store.ReplaceAll([]*data.Pump{testPump(1, data.StatusRunning, 90)})
		before, _ := store.Get(1)

		if !store.AppendAlert(1, data.Alert{ID: "1-pressure_high", Severity: data.SeverityCritical}) {
			t.Fatal("AppendAlert returned false for a known pump")
		}

		after, _ := store.Get(1)
		if after == before {
			t.Error("AppendAlert mutated the existing snapshot instead of replacing it")
		}
		if len(before.Alerts) != 0 {
			t.Error("held snapshot changed under the reader")
		}
		if len(after.Alerts) != 1 {
			t.Fatalf("alerts = %d, want 1", len(after.Alerts))
		}
	})

	t.Run("unknown pump is a no-op", func(t *testing.T) {
		store := NewFleetStore()
		store.ReplaceAll([]*data.Pump{testPump(1, data.StatusRunning, 90)})

		if store.AppendAlert(99, data.Alert{ID: "x"}) {
			t.Error("AppendAlert returned true for an unknown pump")
		}
		if got := store.Rollups().ActiveAlerts; got != 0 {
			t.Errorf("ActiveAlerts = %d, want 0", got)
		}
	})

	t.Run("preserves append order", func(t *testing.T) {
		store := NewFleetStore()
		store.ReplaceAll([]*data.Pump{testPump(1, data.StatusRunning, 90)})
		store.AppendAlert(1, data.Alert{ID: "a"})
		store.AppendAlert(1, data.Alert{ID: "b"})

		pump, _ := store.Get(1)
		if pump.Alerts[0].ID != "a" || pump.Alerts[1].ID != "b" {
			t.Errorf("alert order = [%s %s], want [a b]", pump.Alerts[0].ID, pump.Alerts[1].ID)
		}
	})
}

func TestRollups(t *testing.T) {
	store := NewFleetStore()
	pumps := []*data.Pump{
		testPump(1, data.StatusRunning, 90),
		testPump(2, data.StatusRunning, 80),
		testPump(3, data.StatusStopped, 50),
	}
	pumps[2].Alerts = []data.Alert{{ID: "3-flow_low"}}
	store.ReplaceAll(pumps)

	rollups := store.Rollups()
	if rollups.TotalPumps != 3 {
		t.Errorf("TotalPumps = %d, want 3", rollups.TotalPumps)
	}
	if rollups.RunningPumps != 2 {
		t.Errorf("RunningPumps = %d, want 2", rollups.RunningPumps)
	}
	if rollups.AvgEfficiency != 85 {
		t.Errorf("AvgEfficiency = %v, want 85 (stopped pumps excluded)", rollups.AvgEfficiency)
	}
	if rollups.ActiveAlerts != 1 {
		t.Errorf("ActiveAlerts = %d, want 1", rollups.ActiveAlerts)
	}
}

func TestList(t *testing.T) {
	store := NewFleetStore()
	store.ReplaceAll([]*data.Pump{
		testPump(3, data.StatusRunning, 90),
		testPump(1, data.StatusRunning, 90),
		testPump(2, data.StatusRunning, 90),
	})

	list := store.List()
	for i, pump := range list {
		if pump.ID != i+1 {
			t.Fatalf("List()[%d].ID = %d, want %d", i, pump.ID, i+1)
		}
	}
}

func TestClear(t *testing.T) {
	store := NewFleetStore()
	store.ReplaceAll([]*data.Pump{testPump(1, data.StatusRunning, 90)})
	store.SetHealth(data.SystemHealth{Score: 95, Status: "excellent"})
	store.SetUsersOnline(3)

	store.Clear()

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
	if store.Health().Status != "" {
		t.Error("health survived Clear")
	}
	if store.UsersOnline() != 0 {
		t.Error("users online survived Clear")
	}
	if store.Rollups() != (Rollups{}) {
		t.Errorf("Rollups() = %+v, want zero", store.Rollups())
	}
}
