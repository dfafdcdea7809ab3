package fluxion_test

import (
	"context"
	"fmt"

	"github.com/soracane/fluxion"
)

type counterState struct {
	Count int
}

type counterAction struct {
	Delta int
}

// ExampleNewStore dispatches a state mutation and waits for its result.
func ExampleNewStore() {
	state := counterState{}

	store := fluxion.NewStore(&state, func(ctx context.Context, action counterAction, s *counterState) (fluxion.Effect[counterState, int], error) {
		s.Count += action.Delta
		return fluxion.Immediate[counterState, int](s.Count), nil
	})
	defer store.Close()

	value, err := fluxion.Dispatch(context.Background(), store, counterAction{Delta: 3})
	if err != nil {
		fmt.Println("dispatch failed:", err)
		return
	}
	fmt.Println("count:", value)
	// Output:
	// count: 3
}

// ExampleConcat sequences several effects; side effects run in order and
// the last step's value becomes the dispatch result.
func ExampleConcat() {
	state := counterState{}

	store := fluxion.NewStore(&state, func(ctx context.Context, action counterAction, s *counterState) (fluxion.Effect[counterState, string], error) {
		step := func(label string) fluxion.Effect[counterState, string] {
			return fluxion.Task(func(ctx context.Context, st *fluxion.StateRef[counterState]) (string, error) {
				fmt.Println("running", label)
				return label, nil
			})
		}
		return fluxion.Concat(step("first"), step("second"), step("third"))
	})
	defer store.Close()

	last, err := fluxion.Dispatch(context.Background(), store, counterAction{})
	if err != nil {
		fmt.Println("dispatch failed:", err)
		return
	}
	fmt.Println("result:", last)
	// Output:
	// running first
	// running second
	// running third
	// result: third
}

// ExampleEffect_CancellableAs replaces an in-flight task that shares its
// cancellation identity, so only the latest request survives.
func ExampleEffect_CancellableAs() {
	state := counterState{}

	started := make(chan struct{})
	release := make(chan struct{})

	store := fluxion.NewStore(&state, func(ctx context.Context, action counterAction, s *counterState) (fluxion.Effect[counterState, int], error) {
		n := action.Delta
		return fluxion.Task(func(ctx context.Context, st *fluxion.StateRef[counterState]) (int, error) {
			if n == 1 {
				close(started)
				<-ctx.Done()
				return 0, ctx.Err()
			}
			<-release
			return n, nil
		}).CancellableAs("refresh", true), nil
	})
	defer store.Close()

	first := store.Dispatch(context.Background(), counterAction{Delta: 1})
	<-started

	second := store.Dispatch(context.Background(), counterAction{Delta: 2})
	<-first.Done()
	close(release)

	if _, err := first.Await(context.Background()); err != nil {
		fmt.Println("first:", err)
	}
	if n, err := second.Await(context.Background()); err == nil {
		fmt.Println("second:", n)
	}
	// Output:
	// first: fluxion: cancelled
	// second: 2
}
