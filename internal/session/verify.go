package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/shadow"
)

// Verifier connects to a robot with unconfirmed credentials and reports
// which product family it is.
type Verifier struct {
	Dialer  Dialer
	Timings Timings
}

// Verify connects, waits for the first report to settle and returns the
// detected family. Connect failures are returned as *ConnectError.
func (v Verifier) Verify(ctx context.Context, address, robotID, secret string) (robot.Family, error) {
	t := v.Timings
	if t == (Timings{}) {
		t = DefaultTimings()
	}
	ctx, cancel := context.WithTimeout(ctx, t.VerifyTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		doc     = shadow.New()
		settle  *time.Timer
		settled = make(chan struct{})
		lost    = make(chan error, 1)
	)
	defer func() {
		mu.Lock()
		if settle != nil {
			settle.Stop()
		}
		mu.Unlock()
	}()

	handlers := Handlers{
		OnReport: func(reported []byte) {
			mu.Lock()
			defer mu.Unlock()
			if _, err := doc.MergeJSON(reported); err != nil {
				return
			}
			if settle == nil {
				settle = time.AfterFunc(t.Settle, func() { close(settled) })
			}
		},
		OnLost: func(err error) {
			select {
			case lost <- err:
			default:
			}
		},
	}

	id := robot.Identity{ID: robotID, Secret: secret, Family: robot.FamilyUnrecognized}
	tr, err := v.Dialer.Dial(ctx, address, id, handlers)
	if err != nil {
		return robot.FamilyUnrecognized, ClassifyConnectError(err)
	}
	defer tr.Close()

	select {
	case <-settled:
		mu.Lock()
		defer mu.Unlock()
		return robot.DetectFamily(doc.Snapshot()), nil
	case err := <-lost:
		return robot.FamilyUnrecognized, fmt.Errorf("session: connection lost while verifying: %w", err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return robot.FamilyUnrecognized, ErrVerifyTimeout
		}
		return robot.FamilyUnrecognized, ctx.Err()
	}
}
