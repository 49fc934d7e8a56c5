package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/kv"
	"dayonme/internal/services/persona/domain"
	"dayonme/internal/services/persona/repo"
)

// seq returns an Intn that replays picks and then repeats the last one
func seq(picks ...int) (func(int) int, *int) {
	calls := 0
	return func(n int) int {
		i := min(calls, len(picks)-1)
		calls++
		return picks[i] % n
	}, &calls
}

func clock() func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newAlloc(t *testing.T, store kv.Store, cfg Config) *Allocator {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = clock()
	}
	return New(repo.NewKV(store, kv.JSON{}), cfg)
}

var onePool = domain.Pool{{Name: "기쁨이", Icon: "😊", Color: "#FFD93D"}}

func TestGetOrCreate_Idempotent(t *testing.T) {
	a := newAlloc(t, kv.NewMemory(), Config{})
	ctx := context.Background()
	first, err := a.GetOrCreate(ctx, 10, "7")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := a.GetOrCreate(ctx, 10, "7")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if first != second {
		t.Fatalf("not idempotent: %+v vs %+v", first, second)
	}
	if first.ScopeID != 10 || first.IdentityKey != "7" || first.Nickname == "" || first.Icon == "" || first.Color == "" {
		t.Fatalf("incomplete assignment: %+v", first)
	}
}

func TestGetOrCreate_SuffixesCollisions(t *testing.T) {
	a := newAlloc(t, kv.NewMemory(), Config{Pool: onePool})
	ctx := context.Background()
	want := []string{"기쁨이", "기쁨이_01", "기쁨이_02", "기쁨이_03"}
	for i, w := range want {
		as, err := a.GetOrCreate(ctx, 1, strconv.Itoa(i))
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		if as.Nickname != w {
			t.Fatalf("user %d nickname = %q, want %q", i, as.Nickname, w)
		}
	}
	// other scopes start fresh
	if as, _ := a.GetOrCreate(ctx, 2, "0"); as.Nickname != "기쁨이" {
		t.Fatalf("scope 2 nickname = %q", as.Nickname)
	}
}

func TestGetOrCreate_UniqueWithinScope(t *testing.T) {
	a := newAlloc(t, kv.NewMemory(), Config{})
	ctx := context.Background()
	seen := map[string]bool{}
	for u := range 300 {
		as, err := a.GetOrCreate(ctx, 99, strconv.Itoa(u))
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		if seen[as.Nickname] {
			t.Fatalf("duplicate nickname %q at user %d", as.Nickname, u)
		}
		seen[as.Nickname] = true
	}
}

func TestGetOrCreate_RedrawsWhenBaseExhausted(t *testing.T) {
	pool := domain.Pool{
		{Name: "기쁨이", Icon: "😊", Color: "#1"},
		{Name: "슬픔이", Icon: "😢", Color: "#2"},
	}
	ctx := context.Background()
	fill, _ := seq(0)
	a := newAlloc(t, kv.NewMemory(), Config{Pool: pool, Intn: fill})
	for u := range maxSuffix + 1 {
		if _, err := a.GetOrCreate(ctx, 5, strconv.Itoa(u)); err != nil {
			t.Fatalf("fill: %v", err)
		}
	}

	a.intn, _ = seq(0, 1)
	as, err := a.GetOrCreate(ctx, 5, "1000")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if as.Nickname != "슬픔이" || as.Color != "#2" {
		t.Fatalf("expected a redraw onto the second persona, got %+v", as)
	}
}

func TestGetOrCreate_AcceptsDuplicateAfterBoundedDraws(t *testing.T) {
	ctx := context.Background()
	fill, _ := seq(0)
	a := newAlloc(t, kv.NewMemory(), Config{Pool: onePool, Intn: fill})
	for u := range maxSuffix + 1 {
		if _, err := a.GetOrCreate(ctx, 5, strconv.Itoa(u)); err != nil {
			t.Fatalf("fill: %v", err)
		}
	}
	intn, calls := seq(0)
	a.intn = intn
	as, err := a.GetOrCreate(ctx, 5, "1000")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if as.Nickname != "기쁨이" {
		t.Fatalf("degraded nickname = %q", as.Nickname)
	}
	if *calls != maxDraws {
		t.Fatalf("draws = %d, want %d", *calls, maxDraws)
	}
}

func TestGetOrCreate_SurvivesReload(t *testing.T) {
	store := kv.NewMemory()
	ctx := context.Background()
	a := newAlloc(t, store, Config{})
	before, _ := a.GetOrCreate(ctx, 3, "11")
	perComment, _ := a.GetOrCreate(ctx, 3, "11_900")

	b := newAlloc(t, store, Config{})
	after, err := b.GetOrCreate(ctx, 3, "11")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !after.AssignedAt.Equal(before.AssignedAt) || after.Nickname != before.Nickname || after.Icon != before.Icon {
		t.Fatalf("reload changed assignment: %+v vs %+v", before, after)
	}
	all, _ := b.GetAllForScope(ctx, 3)
	if len(all) != 2 || all[1].Nickname != perComment.Nickname {
		t.Fatalf("reloaded scope = %+v", all)
	}
}

func TestGetOrCreate_CorruptTableIsEmpty(t *testing.T) {
	store := kv.NewMemory()
	_ = store.Set(context.Background(), kv.KeyPersonas, []byte(`["not","a","table"]`))
	a := newAlloc(t, store, Config{Pool: onePool})
	as, err := a.GetOrCreate(context.Background(), 1, "1")
	if err != nil {
		t.Fatalf("corrupt table must not surface: %v", err)
	}
	if as.Nickname != "기쁨이" {
		t.Fatalf("nickname = %q", as.Nickname)
	}
}

type brokenRepo struct{ saves int }

func (*brokenRepo) Load(context.Context) (domain.Table, error) {
	return domain.Table{}, perr.Storef("disk gone")
}
func (r *brokenRepo) Save(context.Context, domain.Table) error {
	r.saves++
	return errors.New("disk gone")
}
func (*brokenRepo) Clear(context.Context) error { return errors.New("disk gone") }

func TestGetOrCreate_StoreFailuresAreSwallowed(t *testing.T) {
	r := &brokenRepo{}
	a := New(r, Config{Pool: onePool})
	ctx := context.Background()
	first, err := a.GetOrCreate(ctx, 1, "1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	again, _ := a.GetOrCreate(ctx, 1, "1")
	if first != again {
		t.Fatalf("in-memory assignment lost: %+v vs %+v", first, again)
	}
	if r.saves != 1 {
		t.Fatalf("saves = %d, want 1", r.saves)
	}
	if err := a.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll must swallow store errors: %v", err)
	}
}

func TestGetOrCreate_RejectsBadInput(t *testing.T) {
	a := newAlloc(t, kv.NewMemory(), Config{})
	tests := []struct {
		scope int64
		key   string
	}{
		{-1, "1"},
		{1, ""},
		{1, "-3"},
		{1, "+3"},
		{1, "abc"},
		{1, "1_"},
		{1, "1_-2"},
		{1, "_2"},
		{1, "1_2_3"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%s", tt.scope, tt.key), func(t *testing.T) {
			_, err := a.GetOrCreate(context.Background(), tt.scope, tt.key)
			if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
				t.Fatalf("err = %v, want invalid argument", err)
			}
		})
	}
}

func TestResolve_Modes(t *testing.T) {
	a := newAlloc(t, kv.NewMemory(), Config{})
	ctx := context.Background()
	cid := int64(55)

	stable, err := a.GetOrCreateAnonymousUser(ctx, 8, 4, nil)
	if err != nil || stable.IdentityKey != "4" {
		t.Fatalf("stable = %+v %v", stable, err)
	}
	inst, err := a.GetOrCreateAnonymousUser(ctx, 8, 4, &cid)
	if err != nil || inst.IdentityKey != "4_55" {
		t.Fatalf("per instance = %+v %v", inst, err)
	}
	if inst.Nickname == stable.Nickname {
		t.Fatalf("per-instance persona shares the stable nickname %q", inst.Nickname)
	}
	again, _ := a.Resolve(ctx, 8, 4, domain.ModeStable, &cid)
	if again != stable {
		t.Fatalf("stable mode must ignore the comment id")
	}
	if _, err := a.Resolve(ctx, 8, 4, domain.ModePerInstance, nil); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("missing comment id err = %v", err)
	}
	if _, err := a.Resolve(ctx, 8, 4, domain.Mode("weird"), nil); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad mode err = %v", err)
	}
	if _, err := a.Resolve(ctx, 8, -4, domain.ModeStable, nil); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("negative user err = %v", err)
	}
}

func TestScopeListingAndClears(t *testing.T) {
	store := kv.NewMemory()
	a := newAlloc(t, store, Config{})
	ctx := context.Background()
	for _, k := range []string{"3", "1", "2"} {
		_, _ = a.GetOrCreate(ctx, 1, k)
	}
	_, _ = a.GetOrCreate(ctx, 2, "1")

	all, err := a.GetAllForScope(ctx, 1)
	if err != nil || len(all) != 3 {
		t.Fatalf("GetAllForScope = %v %v", all, err)
	}
	if all[0].IdentityKey != "3" || all[2].IdentityKey != "2" {
		t.Fatalf("not in assignment order: %v", all)
	}

	if err := a.ClearScope(ctx, 1); err != nil {
		t.Fatalf("ClearScope: %v", err)
	}
	if all, _ := a.GetAllForScope(ctx, 1); len(all) != 0 {
		t.Fatalf("scope 1 not cleared: %v", all)
	}
	reloaded := newAlloc(t, store, Config{})
	if all, _ := reloaded.GetAllForScope(ctx, 2); len(all) != 1 {
		t.Fatalf("scope 2 lost on clear of scope 1: %v", all)
	}

	if err := a.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if _, ok, _ := store.Get(ctx, kv.KeyPersonas); ok {
		t.Fatalf("table still stored after ClearAll")
	}
	if all, _ := a.GetAllForScope(ctx, 2); len(all) != 0 {
		t.Fatalf("scope 2 survived ClearAll: %v", all)
	}
}

func TestGetOrCreate_ConcurrentCallersStayUnique(t *testing.T) {
	a := newAlloc(t, kv.NewMemory(), Config{Pool: onePool})
	ctx := context.Background()
	var wg sync.WaitGroup
	out := make([]domain.Assignment, 40)
	for i := range out {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i], _ = a.GetOrCreate(ctx, 77, strconv.Itoa(i))
		}()
	}
	wg.Wait()
	seen := map[string]bool{}
	for _, as := range out {
		if seen[as.Nickname] {
			t.Fatalf("duplicate %q under concurrency", as.Nickname)
		}
		seen[as.Nickname] = true
	}
}
