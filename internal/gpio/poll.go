package gpio

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// Poll samples every button each period and posts an edge whenever the
// sampled level differs from the previous sample. It is the producer for
// sources that cannot deliver edge events. Blocks until ctx is done.
func Poll(ctx context.Context, src Source, ids []logic.ButtonID, period time.Duration, now func() time.Time, post PostFunc) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	pollLoop(ctx, src, ids, now, ticker.C, post)
}

func pollLoop(ctx context.Context, src Source, ids []logic.ButtonID, now func() time.Time, tick <-chan time.Time, post PostFunc) {
	last := make(map[logic.ButtonID]bool, len(ids))
	for _, id := range ids {
		level, err := src.Level(id)
		if err != nil {
			log.Printf("gpio: initial read of line %d: %v", id, err)
			continue
		}
		last[id] = level
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			t := now()
			for _, id := range ids {
				level, err := src.Level(id)
				if err != nil {
					log.Printf("gpio: read line %d: %v", id, err)
					continue
				}
				if prev, ok := last[id]; ok && prev == level {
					continue
				}
				last[id] = level
				if !post(Edge{Button: id, Level: level, Time: t}) {
					log.Printf("gpio: edge queue full, dropped edge for line %d", id)
				}
			}
		}
	}
}
