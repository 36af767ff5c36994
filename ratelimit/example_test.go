/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/ratelimit/memstore"
	"github.com/acronis/go-ratelimit/ratelimit/ratelimittest"
)

func Example() {
	clock := ratelimittest.NewManualClock(time.Unix(1_700_000_040, 0))
	limiter, err := ratelimit.NewWithOpts(ratelimit.MustPerMinute(2), memstore.NewWithOpts(memstore.Opts{Clock: clock}),
		ratelimit.Opts{Clock: clock, ReservedKeyChars: ratelimit.PSR16ReservedKeyChars})
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err = limiter.Limit(ctx, "user@example.com"); err != nil {
			if errors.Is(err, ratelimit.ErrLimitExceeded) {
				fmt.Println("rejected:", err)
				continue
			}
			fmt.Println(err)
			return
		}
		fmt.Println("allowed")
	}

	status, err := limiter.LimitSilently(ctx, "user@example.com")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("current: %d, limit: %d, remaining: %d\n", status.Current, status.Limit, status.RemainingAttempts())

	// Output:
	// allowed
	// allowed
	// rejected: limit has been exceeded for identifier "user@example.com"
	// current: 3, limit: 2, remaining: 0
}
