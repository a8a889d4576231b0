package objref

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sharedcode/livepers"
)

type handle struct{ e *livepers.Entity }

func (h handle) ID() livepers.ID           { return h.e.ID }
func (h handle) Kind() livepers.HandleKind { return livepers.KindLocal }
func (h handle) Entity() *livepers.Entity  { return h.e }

type mapGetter map[livepers.ID]*livepers.Entity

func (g mapGetter) Get(ctx context.Context, id livepers.ID) (livepers.Handle, error) {
	if e, ok := g[id]; ok {
		return handle{e}, nil
	}
	return nil, livepers.ErrNotFound
}

func TestResolveReferencesReplacesPlaceholders(t *testing.T) {
	r := NewResolver(mapGetter{"IB": {ID: "IB"}})
	data := livepers.Data{
		"id":   "IA",
		"ref":  map[string]any{"isReference": true, "id": "IB"},
		"refs": []any{map[string]any{"isReference": true, "id": "IB"}, 3},
		"bag": map[string]any{
			"inner": map[string]any{"objref": true, "tsid": "IC"},
		},
	}
	r.ResolveReferences(data)

	ref, ok := data["ref"].(*Ref)
	if !ok {
		t.Fatalf("ref is %T, want *Ref", data["ref"])
	}
	if ref.ID() != "IB" {
		t.Errorf("ref.ID() = %s", ref.ID())
	}
	refs := data["refs"].([]any)
	if refs[0] != ref {
		t.Errorf("placeholders to one id do not share one Ref")
	}
	if refs[1] != 3 {
		t.Errorf("non-placeholder slice element changed: %v", refs[1])
	}
	inner, ok := data["bag"].(map[string]any)["inner"].(*Ref)
	if !ok || inner.ID() != "IC" {
		t.Errorf("legacy placeholder not resolved: %v", data["bag"])
	}

	h, err := ref.Resolve(context.Background())
	if err != nil || h.ID() != "IB" {
		t.Errorf("Resolve() = %v, %v", h, err)
	}
}

func TestDanglingReferenceResolvesLazily(t *testing.T) {
	r := NewResolver(mapGetter{})
	data := livepers.Data{"id": "IO", "ref": map[string]any{"isReference": true, "id": "IUNAVAILABLE"}}
	r.ResolveReferences(data)
	ref, ok := data["ref"].(*Ref)
	if !ok {
		t.Fatalf("ref is %T", data["ref"])
	}
	if _, err := ref.Resolve(context.Background()); !errors.Is(err, livepers.ErrNotFound) {
		t.Errorf("Resolve() err = %v, want ErrNotFound", err)
	}
}

func TestFlattenReferences(t *testing.T) {
	r := NewResolver(nil)
	b := &livepers.Entity{ID: "IB"}
	c := &livepers.Entity{ID: "IC"}
	data := livepers.Data{
		"id":     "IA",
		"entity": b,
		"handle": handle{c},
		"ref":    NewRef("ID", nil),
		"list":   []any{b, "x"},
		"nested": map[string]any{"e": c, "n": 1},
		"plain":  7,
	}
	out := r.FlattenReferences(data)

	assertPlaceholder(t, out["entity"], "IB")
	assertPlaceholder(t, out["handle"], "IC")
	assertPlaceholder(t, out["ref"], "ID")
	assertPlaceholder(t, out["list"].([]any)[0], "IB")
	assertPlaceholder(t, out["nested"].(map[string]any)["e"], "IC")
	if out["plain"] != 7 || out["id"] != "IA" {
		t.Errorf("plain values changed: %v", out)
	}
	if _, ok := data["entity"].(*livepers.Entity); !ok {
		t.Errorf("input data was modified")
	}
}

func TestFlattenTypedContainers(t *testing.T) {
	r := NewResolver(nil)
	b := &livepers.Entity{ID: "IB", Fields: map[string]any{"name": "b"}}
	c := &livepers.Entity{ID: "IC"}
	nums := []int{1, 2}
	data := livepers.Data{
		"id":      "IA",
		"kids":    []*livepers.Entity{b, nil},
		"byName":  map[string]*livepers.Entity{"b": b},
		"handles": []livepers.Handle{handle{c}},
		"pair":    [2]*livepers.Entity{b, c},
		"groups":  map[string][]*livepers.Entity{"g": {c}},
		"nums":    nums,
	}
	out := r.FlattenReferences(data)

	kids := out["kids"].([]any)
	assertPlaceholder(t, kids[0], "IB")
	if kids[1] != nil {
		t.Errorf("nil entity flattened to %v", kids[1])
	}
	assertPlaceholder(t, out["byName"].(map[string]any)["b"], "IB")
	assertPlaceholder(t, out["handles"].([]any)[0], "IC")
	assertPlaceholder(t, out["pair"].([]any)[1], "IC")
	assertPlaceholder(t, out["groups"].(map[string]any)["g"].([]any)[0], "IC")
	if got, ok := out["nums"].([]int); !ok || len(got) != 2 {
		t.Errorf("nums = %#v, want the []int unchanged", out["nums"])
	}

	ba, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back livepers.Data
	if err := json.Unmarshal(ba, &back); err != nil {
		t.Fatal(err)
	}
	assertPlaceholder(t, back["kids"].([]any)[0], "IB")
}

func TestFlattenEntityCycleThroughTypedSlices(t *testing.T) {
	r := NewResolver(nil)
	a := &livepers.Entity{ID: "IA", Fields: map[string]any{}}
	b := &livepers.Entity{ID: "IB", Fields: map[string]any{}}
	a.Fields["peers"] = []*livepers.Entity{b}
	b.Fields["peers"] = []*livepers.Entity{a}

	for _, e := range []*livepers.Entity{a, b} {
		ba, err := json.Marshal(r.FlattenReferences(e.Serialize()))
		if err != nil {
			t.Fatalf("%s: Marshal: %v", e.ID, err)
		}
		var back livepers.Data
		if err := json.Unmarshal(ba, &back); err != nil {
			t.Fatal(err)
		}
		peers := back["peers"].([]any)
		if len(peers) != 1 {
			t.Fatalf("%s: peers = %v", e.ID, peers)
		}
		if _, ok := IsPlaceholder(peers[0]); !ok {
			t.Errorf("%s: peer stored inline: %v", e.ID, peers[0])
		}
	}
}

func TestFlattenCutsCyclicContainers(t *testing.T) {
	r := NewResolver(nil)
	m := map[string]any{"n": 1}
	m["self"] = m
	out := r.FlattenReferences(livepers.Data{"id": "IA", "m": m})
	cm := out["m"].(map[string]any)
	if cm["self"] != nil {
		t.Errorf("cycle not cut: %v", cm["self"])
	}
	if cm["n"] != 1 {
		t.Errorf("n = %v", cm["n"])
	}
}

func TestRoundTripThroughJSON(t *testing.T) {
	r := NewResolver(mapGetter{})
	data := livepers.Data{"id": "IA", "ref": map[string]any{"isReference": true, "id": "IB"}}
	r.ResolveReferences(data)
	ba, err := json.Marshal(r.FlattenReferences(data))
	if err != nil {
		t.Fatal(err)
	}
	var back livepers.Data
	if err := json.Unmarshal(ba, &back); err != nil {
		t.Fatal(err)
	}
	assertPlaceholder(t, back["ref"], "IB")

	// A Ref left in place marshals to its placeholder as well.
	ba, err = json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	back = nil
	if err := json.Unmarshal(ba, &back); err != nil {
		t.Fatal(err)
	}
	assertPlaceholder(t, back["ref"], "IB")
}

func assertPlaceholder(t *testing.T, v any, want livepers.ID) {
	t.Helper()
	id, ok := IsPlaceholder(v)
	if !ok {
		t.Errorf("%v is not a placeholder", v)
		return
	}
	if id != want {
		t.Errorf("placeholder id = %s, want %s", id, want)
	}
}
