package model

import "testing"

func TestCapabilitySet_Has_exact(t *testing.T) {
	cs := CapabilitySet{
		"categories:view": true,
		"products:view":   true,
	}
	if !cs.Has("categories:view") {
		t.Error("Has(categories:view) = false, want true")
	}
	if cs.Has("categories:manage") {
		t.Error("Has(categories:manage) = true, want false")
	}
}

func TestCapabilitySet_Has_wildcard_star(t *testing.T) {
	cs := CapabilitySet{"*": true}
	if !cs.Has("team:manage") {
		t.Error("wildcard * should match team:manage")
	}
}

func TestCapabilitySet_Has_wildcard_namespace(t *testing.T) {
	cs := CapabilitySet{"vendors:*": true}
	if !cs.Has("vendors:manage") {
		t.Error("vendors:* should match vendors:manage")
	}
	if cs.Has("team:view") {
		t.Error("vendors:* should not match team:view")
	}
}

func TestCapabilitySet_Has_empty(t *testing.T) {
	cs := CapabilitySet{}
	if cs.Has("products:view") {
		t.Error("empty set should not match anything")
	}
}

func TestCapabilitySet_HasAll_HasAny(t *testing.T) {
	cs := CapabilitySet{"users:view": true, "orders:*": true}
	if !cs.HasAll("users:view", "orders:manage") {
		t.Error("HasAll = false, want true")
	}
	if cs.HasAll("users:view", "team:view") {
		t.Error("HasAll with team:view = true, want false")
	}
	if !cs.HasAny("team:view", "orders:view") {
		t.Error("HasAny = false, want true")
	}
	if cs.HasAny("team:view", "payouts:view") {
		t.Error("HasAny = true, want false")
	}
}

func TestCapabilityHelpers(t *testing.T) {
	if got := ViewCapability("categories"); got != "categories:view" {
		t.Errorf("ViewCapability = %q", got)
	}
	if got := ManageCapability("team"); got != "team:manage" {
		t.Errorf("ManageCapability = %q", got)
	}
}
