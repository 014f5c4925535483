package thread

import (
	"testing"

	"github.com/hyperjump/knowledgehub/internal/models"
)

func TestGroup(t *testing.T) {
	msgs := []models.Message{
		{Text: "root a", Timestamp: "100.000001"},
		{Text: "reply a2", Timestamp: "102.000000", ThreadRootTS: "100.000001", IsReply: true},
		{Text: "root b", Timestamp: "101.000000"},
		{Text: "reply a1", Timestamp: "101.500000", ThreadRootTS: "100.000001", IsReply: true},
	}
	g := Group(msgs)

	if len(g) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(g))
	}
	a := g.For(models.Message{Timestamp: "100.000001"})
	want := []string{"root a", "reply a1", "reply a2"}
	if len(a) != len(want) {
		t.Fatalf("thread a = %v", a)
	}
	for i, w := range want {
		if a[i].Text != w {
			t.Errorf("thread a[%d] = %q, want %q", i, a[i].Text, w)
		}
	}
	if b := g.For(models.Message{Timestamp: "101.000000"}); len(b) != 1 || b[0].Text != "root b" {
		t.Errorf("thread b = %v", b)
	}
}

func TestGroupDeterministic(t *testing.T) {
	msgs := []models.Message{
		{Text: "first", Timestamp: "5.0", ThreadRootTS: "1.0"},
		{Text: "second", Timestamp: "5.0", ThreadRootTS: "1.0"},
		{Text: "root", Timestamp: "1.0"},
	}
	for i := 0; i < 10; i++ {
		got := Group(msgs).For(models.Message{Timestamp: "1.0"})
		if got[0].Text != "root" || got[1].Text != "first" || got[2].Text != "second" {
			t.Fatalf("unstable order: %v", got)
		}
	}
}

func TestGroupsFor(t *testing.T) {
	g := Group([]models.Message{{Text: "root", Timestamp: "1.0"}})
	if got := g.For(models.Message{Timestamp: "2.0", ThreadRootTS: "1.0"}); len(got) != 1 || got[0].Text != "root" {
		t.Errorf("For known thread = %v", got)
	}
	lone := models.Message{Text: "lone", Timestamp: "9.0"}
	if got := g.For(lone); len(got) != 1 || got[0].Text != "lone" {
		t.Errorf("For unknown thread = %v", got)
	}
}

func TestGroupSeparatesChannels(t *testing.T) {
	g := Group([]models.Message{
		{Text: "eng root", ChannelID: "C1", Timestamp: "1.0"},
		{Text: "ops root", ChannelID: "C2", Timestamp: "1.0"},
		{Text: "eng reply", ChannelID: "C1", Timestamp: "2.0", ThreadRootTS: "1.0", IsReply: true},
	})
	if len(g) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(g))
	}
	eng := g.For(models.Message{ChannelID: "C1", Timestamp: "1.0"})
	if len(eng) != 2 || eng[1].Text != "eng reply" {
		t.Errorf("eng thread = %v", eng)
	}
	ops := g.For(models.Message{ChannelID: "C2", Timestamp: "1.0"})
	if len(ops) != 1 || ops[0].Text != "ops root" {
		t.Errorf("ops thread = %v", ops)
	}
}
