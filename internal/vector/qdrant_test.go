package vector

import (
	"testing"

	"github.com/hyperjump/kangae/internal/models"
	"github.com/qdrant/go-client/qdrant"
)

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("note-1")
	if a != PointID("note-1") {
		t.Error("PointID must be stable")
	}
	if a == PointID("note-2") {
		t.Error("different ids must map to different points")
	}
	if len(a) != 36 {
		t.Errorf("expected a UUID string, got %q", a)
	}
}

func TestToPoint_PayloadRoundTrip(t *testing.T) {
	item := models.StoredItem{
		ID:     "n1",
		Vector: []float32{0.1, 0.2},
		Payload: map[string]interface{}{
			"userId": "42",
			"score":  float64(1.5),
			"tags":   []interface{}{"a", "b"},
			"meta":   map[string]interface{}{"pinned": true},
		},
	}
	p, err := toPoint(item)
	if err != nil {
		t.Fatal(err)
	}
	if p.GetId().GetUuid() != PointID("n1") {
		t.Errorf("point id = %v", p.GetId())
	}
	if got := p.GetPayload()[ItemIDKey].GetStringValue(); got != "n1" {
		t.Errorf("item_id payload = %q", got)
	}

	back := fromPayload(p.GetId(), p.GetPayload())
	if back.ID != "n1" {
		t.Errorf("ID = %q", back.ID)
	}
	if _, ok := back.Payload[ItemIDKey]; ok {
		t.Error("item_id must not leak into payload")
	}
	if back.Payload["userId"] != "42" || back.Payload["score"] != 1.5 {
		t.Errorf("payload = %+v", back.Payload)
	}
	tags, _ := back.Payload["tags"].([]interface{})
	if len(tags) != 2 || tags[1] != "b" {
		t.Errorf("tags = %v", back.Payload["tags"])
	}
	meta, _ := back.Payload["meta"].(map[string]interface{})
	if meta["pinned"] != true {
		t.Errorf("meta = %v", back.Payload["meta"])
	}
}

func TestToPoint_InvalidPayload(t *testing.T) {
	_, err := toPoint(models.StoredItem{ID: "x", Vector: []float32{1}, Payload: map[string]interface{}{"ch": make(chan int)}})
	if err == nil {
		t.Error("expected error for unsupported payload type")
	}
}

func TestFromPayload_FallsBackToPointID(t *testing.T) {
	it := fromPayload(qdrant.NewIDNum(7), nil)
	if it.ID != "7" {
		t.Errorf("ID = %q, want 7", it.ID)
	}
	if it.Payload != nil {
		t.Errorf("Payload = %v, want nil", it.Payload)
	}
}

func TestToFilter(t *testing.T) {
	if toFilter(nil) != nil {
		t.Error("empty filter must be nil")
	}
	f := toFilter(map[string]string{"userId": "42"})
	if len(f.GetMust()) != 1 {
		t.Fatalf("Must = %v", f.GetMust())
	}
	if f.GetMust()[0].GetField().GetKey() != "userId" {
		t.Errorf("condition = %v", f.GetMust()[0])
	}
}
