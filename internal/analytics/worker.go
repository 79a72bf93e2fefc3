package analytics

import (
	"context"
	"log"
	"time"
)

// StartFinalizationWorker launches a background goroutine that settles
// rolled-over daily buckets once at startup and then every hour. The
// recompute-and-persist pass makes finalized days immune to increments
// that were lost to a crash.
func StartFinalizationWorker(agg *Aggregator) {
	go func() {
		if err := agg.FinalizeRolledOver(context.Background()); err != nil {
			log.Printf("finalization error (startup): %v", err)
		}

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := agg.FinalizeRolledOver(context.Background()); err != nil {
				log.Printf("finalization error: %v", err)
			}
		}
	}()
}
