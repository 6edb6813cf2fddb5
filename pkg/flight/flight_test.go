package flight

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDoCachesSuccess(t *testing.T) {
	c := New[string, int]()
	var runs atomic.Int32

	for range 3 {
		v, err := c.Do("k", func() (int, error) {
			runs.Add(1)
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Fatalf("got %d, %v", v, err)
		}
	}
	if runs.Load() != 1 {
		t.Fatalf("fn ran %d times", runs.Load())
	}
}

func TestDoDoesNotCacheFailure(t *testing.T) {
	c := New[string, int]()
	boom := errors.New("boom")
	calls := 0

	if _, err := c.Do("k", func() (int, error) { calls++; return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if v, err := c.Do("k", func() (int, error) { calls++; return 7, nil }); err != nil || v != 7 {
		t.Fatalf("got %d, %v", v, err)
	}
	if calls != 2 {
		t.Fatalf("fn ran %d times", calls)
	}
}

func TestDoSharesInflightCall(t *testing.T) {
	c := New[string, int]()
	var runs atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Do("k", func() (int, error) {
				runs.Add(1)
				<-release
				return 9, nil
			})
			if err != nil || v != 9 {
				t.Errorf("got %d, %v", v, err)
			}
		}()
	}
	close(release)
	wg.Wait()
	if runs.Load() != 1 {
		t.Fatalf("fn ran %d times", runs.Load())
	}
}

func TestForget(t *testing.T) {
	c := New[string, int]()
	calls := 0
	fn := func() (int, error) { calls++; return calls, nil }

	if v, _ := c.Do("k", fn); v != 1 {
		t.Fatalf("got %d", v)
	}
	c.Forget("k")
	if v, _ := c.Do("k", fn); v != 2 {
		t.Fatalf("got %d after forget", v)
	}
}
