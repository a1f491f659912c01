package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"pgregory.net/rapid"

	"github.com/BaSui01/httplistener/testutil/fixtures"
	"github.com/BaSui01/httplistener/types"
)

// Property: creating servers for a sequence of identifiers succeeds exactly
// for the first occurrence of each identifier; repeats fail with
// SERVER_ALREADY_EXISTS and leave the registry unchanged.
func TestProperty_OneServerPerKey(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("duplicates are rejected", prop.ForAll(
		func(picks []int) bool {
			reg := New(Options{SelectorThreads: 2, WorkerThreads: 2})
			if err := reg.Initialize(); err != nil {
				return false
			}
			defer reg.Dispose(context.Background())

			names := []string{"a", "b", "c"}
			seen := map[string]bool{}
			for _, pick := range picks {
				name := names[pick]
				id := types.ServerIdentifier{Context: "prop", Name: name}
				_, err := reg.CreateServer(fixtures.LoopbackAddress(0), nil, true, 0, id)
				if seen[name] {
					if !types.IsErrorCode(err, types.ErrServerAlreadyExists) {
						return false
					}
				} else if err != nil {
					return false
				}
				seen[name] = true
				if !reg.ContainsServerFor(fixtures.LoopbackAddress(0), id) {
					return false
				}
			}
			return len(reg.Servers()) == len(seen)
		},
		gen.SliceOfN(6, gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}

// Property: an unresolvable host never registers a server.
func TestProperty_UnresolvableHostLeavesNothing(t *testing.T) {
	reg := newRegistry(t)

	rapid.Check(t, func(rt *rapid.T) {
		label := rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "label")
		port := rapid.IntRange(0, 65535).Draw(rt, "port")

		_, err := reg.Create(context.Background(), ServerConfiguration{
			Name: label,
			Host: fmt.Sprintf("%s.invalid", label),
			Port: port,
		}, "prop")
		if !types.IsErrorCode(err, types.ErrServerCreation) {
			rt.Fatalf("expected creation error, got %v", err)
		}
		if n := len(reg.Servers()); n != 0 {
			rt.Fatalf("expected no servers, got %d", n)
		}
	})
}
