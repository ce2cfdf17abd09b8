// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "testing"

func TestSelectorDirectAndGroupAreMutuallyExclusive(t *testing.T) {
	s := NewSelector()

	s.SelectDirect("u2")
	cur := s.Current()
	if cur.PeerID != "u2" || cur.GroupID != "" {
		t.Fatalf("after SelectDirect: %+v", cur)
	}

	s.SelectGroup("g1")
	cur = s.Current()
	if cur.GroupID != "g1" || cur.PeerID != "" {
		t.Fatalf("after SelectGroup the peer must be cleared: %+v", cur)
	}

	s.SelectDirect("u3")
	cur = s.Current()
	if cur.PeerID != "u3" || cur.GroupID != "" {
		t.Fatalf("after re-selecting direct the group must be cleared: %+v", cur)
	}
}

func TestSelectorEpochAdvancesOnEveryChange(t *testing.T) {
	s := NewSelector()

	a := s.SelectDirect("u2")
	b := s.SelectGroup("g1")
	c := s.Clear()

	if !(a.Epoch < b.Epoch && b.Epoch < c.Epoch) {
		t.Errorf("epochs not strictly increasing: %d, %d, %d", a.Epoch, b.Epoch, c.Epoch)
	}
}

func TestSelectorMatchesOnlyCurrentEpoch(t *testing.T) {
	s := NewSelector()

	stale := s.SelectDirect("u2")
	fresh := s.SelectGroup("g1")

	if s.Matches(stale) {
		t.Error("stale selection still matches")
	}
	if !s.Matches(fresh) {
		t.Error("current selection does not match")
	}
}

func TestSelectorReselectingSamePeerStillAdvances(t *testing.T) {
	s := NewSelector()

	first := s.SelectDirect("u2")
	second := s.SelectDirect("u2")

	// Re-selecting the same conversation restarts the fetch; the earlier
	// epoch must go stale so its in-flight result is discarded.
	if s.Matches(first) {
		t.Error("earlier epoch for the same peer still matches")
	}
	if !s.Matches(second) {
		t.Error("latest epoch does not match")
	}
}

func TestSelectionKindPredicates(t *testing.T) {
	if !(Selection{}).IsZero() {
		t.Error("zero selection not IsZero")
	}
	if !(Selection{PeerID: "u2"}).IsDirect() {
		t.Error("peer selection not IsDirect")
	}
	if !(Selection{GroupID: "g1"}).IsGroup() {
		t.Error("group selection not IsGroup")
	}
	if (Selection{PeerID: "u2"}).IsZero() {
		t.Error("peer selection reported zero")
	}
}
