package cache

import (
	"reflect"
	"testing"

	"jobsdashboard/pkg/domain"
)

func company(id, name string) domain.Company {
	return domain.Company{Base: domain.Base{ID: id}, Name: name}
}

func names[T domain.Entity[T]](c Collection[T]) []string {
	out := make([]string, 0, c.Len())
	for _, item := range c.Items() {
		out = append(out, item.DisplayName())
	}
	return out
}

func TestNewCollectionSortsOrderedInput(t *testing.T) {
	input := []domain.Company{company("3", "Umbrella"), company("1", "Acme"), company("2", "Globex")}
	c := NewCollection(input, true)
	if got, want := names(c), []string{"Acme", "Globex", "Umbrella"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	if input[0].Name != "Umbrella" {
		t.Fatalf("input slice was reordered")
	}
	unordered := NewCollection(input, false)
	if got := unordered.IDs(); !reflect.DeepEqual(got, []string{"3", "1", "2"}) {
		t.Fatalf("unordered collection reordered: %v", got)
	}
}

func TestInsertKeepsOrder(t *testing.T) {
	c := NewCollection([]domain.Company{company("1", "Acme"), company("2", "Umbrella")}, true)
	next := c.Insert(company("3", "Globex"))
	if got, want := names(next), []string{"Acme", "Globex", "Umbrella"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	if c.Len() != 2 {
		t.Fatalf("receiver mutated: len %d", c.Len())
	}
}

func TestInsertAtClampsIndex(t *testing.T) {
	c := NewCollection([]domain.Company{company("1", "B"), company("2", "A")}, false)
	if got := c.InsertAt(-5, company("3", "C")).IDs(); !reflect.DeepEqual(got, []string{"3", "1", "2"}) {
		t.Fatalf("InsertAt(-5) = %v", got)
	}
	if got := c.InsertAt(99, company("3", "C")).IDs(); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Fatalf("InsertAt(99) = %v", got)
	}
}

func TestReplaceAndPatch(t *testing.T) {
	c := NewCollection([]domain.Company{company("1", "Acme"), company("2", "Globex")}, true)

	replaced, ok := c.Replace("1", company("1", "Zenith"))
	if !ok {
		t.Fatalf("expected replace to find id 1")
	}
	if got, want := replaced.IDs(), []string{"2", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("replace should re-sort, got %v", got)
	}

	patched, ok := c.Patch("2", func(co *domain.Company) {
		co.Address = "42 Elm"
		co.ID = "hijacked"
	})
	if !ok {
		t.Fatalf("expected patch to find id 2")
	}
	got, found := patched.Find("2")
	if !found || got.Address != "42 Elm" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if _, stillOld := c.Find("2"); !stillOld {
		t.Fatalf("receiver lost record")
	}
	if orig, _ := c.Find("2"); orig.Address != "" {
		t.Fatalf("receiver mutated by patch")
	}

	same, ok := c.Patch("missing", func(*domain.Company) { t.Fatalf("patch fn must not run") })
	if ok || !reflect.DeepEqual(same.IDs(), c.IDs()) {
		t.Fatalf("patch on missing id must be a no-op")
	}
	if _, ok := c.Replace("missing", company("missing", "X")); ok {
		t.Fatalf("replace on missing id must report false")
	}
}

func TestRemoveReportsIndex(t *testing.T) {
	c := NewCollection([]domain.Company{company("1", "A"), company("2", "B"), company("3", "C")}, true)
	next, removed, idx, ok := c.Remove("2")
	if !ok || idx != 1 || removed.Name != "B" {
		t.Fatalf("unexpected removal: ok=%v idx=%d removed=%+v", ok, idx, removed)
	}
	if got := next.IDs(); !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Fatalf("ids after remove = %v", got)
	}
	if _, _, idx, ok := c.Remove("nope"); ok || idx != -1 {
		t.Fatalf("expected missing removal to report false/-1")
	}
}

func TestSortIsStableAndIdempotent(t *testing.T) {
	c := NewCollection([]domain.Company{company("1", "Same"), company("2", "Alpha"), company("3", "Same")}, false)
	once := c.Sorted()
	twice := once.Sorted()
	if !once.IsSorted() || !reflect.DeepEqual(once.IDs(), twice.IDs()) {
		t.Fatalf("sort not idempotent: %v vs %v", once.IDs(), twice.IDs())
	}
	if got := once.IDs(); !reflect.DeepEqual(got, []string{"2", "1", "3"}) {
		t.Fatalf("sort not stable: %v", got)
	}
}

func TestHasTemporary(t *testing.T) {
	c := NewCollection([]domain.Company{company("1", "A")}, true)
	if c.HasTemporary() {
		t.Fatalf("unexpected temporary record")
	}
	if !c.Insert(company(domain.TemporaryIDPrefix+"1", "B")).HasTemporary() {
		t.Fatalf("expected temporary record")
	}
}

func TestItemsReturnsCopies(t *testing.T) {
	c := NewCollection([]domain.Job{{Base: domain.Base{ID: "j"}, Title: "Welder", SkillIDs: []string{"s1"}}}, true)
	items := c.Items()
	items[0].SkillIDs[0] = "changed"
	if got := c.At(0).SkillIDs[0]; got != "s1" {
		t.Fatalf("collection aliased by Items: %q", got)
	}
}
