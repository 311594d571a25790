package pipeline

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/kbukum/entitypipe/condition"
)

func names(users []*user) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Name
	}
	return out
}

// upperMatched upper-cases the matched members and returns only them.
func upperMatched(seen *[2]int) CollectionHook[*user] {
	return func(_ context.Context, data, matched []*user, _ *Context, r *Response[[]*user]) (*Response[[]*user], error) {
		if seen != nil {
			seen[0], seen[1] = len(data), len(matched)
		}
		for _, u := range matched {
			u.Name = strings.ToUpper(u.Name)
		}
		return r.OK(matched), nil
	}
}

func TestCollectionProcessor_FilterProcessMerge(t *testing.T) {
	var seen [2]int
	p := NewCollectionProcessor("upper", upperMatched(&seen), quiet(newGates())...)
	mustInit(t, p)

	in := []*user{
		{Name: "alice", Active: true},
		{Name: "bob", Active: false},
		{Name: "carol", Active: true},
	}
	bob := in[1]

	resp, err := p.Execute(context.Background(), in, "active == true", NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.State != OK {
		t.Fatalf("expected OK, got %s", resp.State)
	}
	want := []string{"ALICE", "CAROL", "bob"}
	if got := names(resp.Data); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if resp.Data[2] != bob {
		t.Error("expected the filtered member to be forwarded untouched")
	}
	if seen != [2]int{3, 2} {
		t.Errorf("expected hook to see 3 members and 2 matched, got %v", seen)
	}
}

func TestCollectionProcessor_ExcludeFiltered(t *testing.T) {
	p := NewCollectionProcessor("upper", upperMatched(nil), quiet(newGates(), WithIncludeFiltered(false))...)
	mustInit(t, p)
	if p.IncludeFiltered() {
		t.Fatal("expected includeFiltered to be false")
	}

	in := []*user{{Name: "alice", Active: true}, {Name: "bob"}}
	resp, err := p.Execute(context.Background(), in, "active == true", NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := names(resp.Data); !reflect.DeepEqual(got, []string{"ALICE"}) {
		t.Errorf("expected [ALICE], got %v", got)
	}
}

func TestCollectionProcessor_NothingMatched(t *testing.T) {
	in := []*user{{Name: "bob"}, {Name: "dan"}}

	t.Run("include filtered", func(t *testing.T) {
		p := NewCollectionProcessor("upper", upperMatched(nil), quiet(newGates())...)
		mustInit(t, p)
		resp, err := p.Execute(context.Background(), in, "active == true", NewContext())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.State != Skipped {
			t.Errorf("expected Skipped, got %s", resp.State)
		}
		if len(resp.Data) != 2 || resp.Data[0] != in[0] || resp.Data[1] != in[1] {
			t.Errorf("expected original input, got %v", names(resp.Data))
		}
	})

	t.Run("exclude filtered", func(t *testing.T) {
		p := NewCollectionProcessor("upper", upperMatched(nil), quiet(newGates(), WithIncludeFiltered(false))...)
		mustInit(t, p)
		resp, err := p.Execute(context.Background(), in, "active == true", NewContext())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.State != NullData {
			t.Errorf("expected NullData, got %s", resp.State)
		}
		if resp.Data != nil {
			t.Errorf("expected nil data, got %v", names(resp.Data))
		}
	})
}

func TestCollectionProcessor_NilHookDataKeepsFiltered(t *testing.T) {
	p := NewCollectionProcessor("drop", func(_ context.Context, _, _ []*user, _ *Context, r *Response[[]*user]) (*Response[[]*user], error) {
		r.Data = nil
		return r.SetState(OK), nil
	}, quiet(newGates())...)
	mustInit(t, p)

	in := []*user{{Name: "alice", Active: true}, {Name: "bob"}}
	resp, err := p.Execute(context.Background(), in, "active == true", NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := names(resp.Data); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Errorf("expected only the filtered member, got %v", got)
	}
}

func TestCollectionProcessor_MembershipIsIdentity(t *testing.T) {
	a := &user{Name: "twin", Active: true}
	b := &user{Name: "twin", Active: true}

	gates := condition.NewRegistry(nil)
	gates.Register(reflect.TypeOf((**user)(nil)).Elem(), condition.Predicate(func(e any, _ string) (bool, error) {
		return e.(*user) == a, nil
	}))

	var matchedSeen []*user
	p := NewCollectionProcessor("pick", func(_ context.Context, _, matched []*user, _ *Context, r *Response[[]*user]) (*Response[[]*user], error) {
		matchedSeen = matched
		return r.OK(matched), nil
	}, quiet(gates)...)
	mustInit(t, p)

	resp, err := p.Execute(context.Background(), []*user{b, a}, "pick-a", NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matchedSeen) != 1 || matchedSeen[0] != a {
		t.Fatalf("expected only a to match, got %v", matchedSeen)
	}
	if len(resp.Data) != 2 || resp.Data[0] != a || resp.Data[1] != b {
		t.Error("expected [a, b]: value-equal b must be treated as filtered out")
	}
}

func TestCollectionProcessor_EmptyConditionMatchesAll(t *testing.T) {
	var seen [2]int
	p := NewCollectionProcessor("upper", upperMatched(&seen), quiet(nil)...)
	mustInit(t, p)

	resp, err := p.Execute(context.Background(), []*user{{Name: "a"}, {Name: "b"}}, "", NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := names(resp.Data); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", got)
	}
	if seen != [2]int{2, 2} {
		t.Errorf("expected all members matched, got %v", seen)
	}
}

func TestCollectionProcessor_ElementType(t *testing.T) {
	p := NewCollectionProcessor("upper", upperMatched(nil))
	if p.EntityType() != reflect.TypeOf((**user)(nil)).Elem() {
		t.Errorf("expected element type *user, got %v", p.EntityType())
	}
}
