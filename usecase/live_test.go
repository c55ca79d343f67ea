package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"gradient/model"
	"gradient/repository"
)

func waitFor[T any](t *testing.T, ch <-chan []T, cond func([]T) bool) []T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case list, ok := <-ch:
			if !ok {
				t.Fatal("subscription channel closed")
			}
			if cond(list) {
				return list
			}
		case <-deadline:
			t.Fatal("timed out waiting for list")
		}
	}
}

func putProject(t *testing.T, store repository.Store, id, name string) {
	t.Helper()
	p := &model.Project{ID: id, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	p.Normalize()
	if err := store.Put(context.Background(), repository.ProjectsCollection, id, p.ToDocument()); err != nil {
		t.Fatal(err)
	}
}

func newProjectCollection(store repository.Store) *LiveCollection[model.Project] {
	return NewLiveCollection(store, repository.ProjectsCollection, repository.Filter{},
		model.ProjectFromDocument, ProjectLess)
}

func TestLiveCollectionReplacesListOnEverySnapshot(t *testing.T) {
	store := repository.NewMemoryStore()
	putProject(t, store, "a", "A")
	putProject(t, store, "b", "B")

	live := newProjectCollection(store)
	if err := live.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer live.Stop()

	updates, cancel := live.Subscribe()
	defer cancel()
	waitFor(t, updates, func(l []model.Project) bool { return len(l) == 2 })

	// Next snapshot holds only B and C
	store.Delete(context.Background(), repository.ProjectsCollection, "a")
	putProject(t, store, "c", "C")

	list := waitFor(t, updates, func(l []model.Project) bool {
		return len(l) == 2 && l[0].ID == "b" && l[1].ID == "c"
	})
	if list[0].Name != "B" {
		t.Errorf("list = %+v", list)
	}
	if live.State() != StateSubscribed {
		t.Errorf("State() = %v, want subscribed", live.State())
	}
}

func TestLiveCollectionSkipsUndecodableDocuments(t *testing.T) {
	store := repository.NewMemoryStore()
	putProject(t, store, "a", "A")
	store.Put(context.Background(), repository.ProjectsCollection, "broken", model.Document{"name": 42})

	live := newProjectCollection(store)
	if err := live.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer live.Stop()

	updates, cancel := live.Subscribe()
	defer cancel()
	list := waitFor(t, updates, func(l []model.Project) bool { return len(l) == 1 })
	if list[0].ID != "a" {
		t.Errorf("list = %+v", list)
	}
	if live.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1", live.Skipped())
	}
}

func TestLiveCollectionDiscardsStaleSnapshots(t *testing.T) {
	live := newProjectCollection(repository.NewMemoryStore())
	live.state = StateSubscribed

	doc := func(id string) model.Document {
		p := &model.Project{ID: id, Name: id}
		p.Normalize()
		return p.ToDocument()
	}
	live.apply(repository.Snapshot{Seq: 2, Documents: []model.Document{doc("new")}})
	live.apply(repository.Snapshot{Seq: 1, Documents: []model.Document{doc("old")}})
	live.apply(repository.Snapshot{Seq: 2, Documents: []model.Document{doc("dup")}})

	items := live.Items()
	if len(items) != 1 || items[0].ID != "new" {
		t.Errorf("Items() = %+v, want only the seq 2 list", items)
	}
}

func TestLiveCollectionStopDetaches(t *testing.T) {
	store := repository.NewMemoryStore()
	putProject(t, store, "a", "A")

	live := newProjectCollection(store)
	if err := live.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	updates, _ := live.Subscribe()
	waitFor(t, updates, func(l []model.Project) bool { return len(l) == 1 })

	live.Stop()
	if live.State() != StateUnsubscribed {
		t.Fatalf("State() = %v, want unsubscribed", live.State())
	}
	if _, ok := <-updates; ok {
		t.Error("subscriber channel should be closed after Stop")
	}

	putProject(t, store, "b", "B")
	time.Sleep(50 * time.Millisecond)
	if got := live.Items(); len(got) != 1 {
		t.Errorf("Items() after Stop = %+v, want the last list", got)
	}
	if err := live.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() after Stop error = %v, want ErrAlreadyStarted", err)
	}
	live.Stop()
}

func TestLiveCollectionWatchFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	putProject(t, store, "a", "A")

	live := newProjectCollection(store)
	if err := live.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	updates, _ := live.Subscribe()
	waitFor(t, updates, func(l []model.Project) bool { return len(l) == 1 })

	live.sub.Fail(errInjected)
	for range updates {
	}
	if live.State() != StateUnsubscribed {
		t.Errorf("State() = %v, want unsubscribed", live.State())
	}
	if !errors.Is(live.Err(), errInjected) {
		t.Errorf("Err() = %v, want injected failure", live.Err())
	}
	if len(live.Items()) != 1 {
		t.Error("last list should survive a watch failure")
	}
}

func TestLiveCollectionSetFilter(t *testing.T) {
	store := repository.NewMemoryStore()
	putProject(t, store, "a", "Bench")
	putProject(t, store, "b", "Shelf")

	live := newProjectCollection(store)
	if err := live.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer live.Stop()
	updates, cancel := live.Subscribe()
	defer cancel()
	waitFor(t, updates, func(l []model.Project) bool { return len(l) == 2 })

	live.SetFilter(ProjectMatcher(ScopeName, "shel"))
	list := waitFor(t, updates, func(l []model.Project) bool { return len(l) == 1 })
	if list[0].ID != "b" {
		t.Errorf("filtered list = %+v", list)
	}

	live.SetFilter(nil)
	waitFor(t, updates, func(l []model.Project) bool { return len(l) == 2 })
}
