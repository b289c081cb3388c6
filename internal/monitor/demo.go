package monitor

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

var demoUsers = []string{"andi", "budi", "citra", "dewi", "eko", "fajar", "gita", "hadi"}

// GenerateDemoEntries returns n deterministic entries for seed, spread over
// the 60 days before now with a few always falling on today.
func GenerateDemoEntries(n int, now time.Time, seed int64) []models.LogEntry {
	if n <= 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed))
	entries := make([]models.LogEntry, 0, n)

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sinceMidnight := now.Sub(startOfDay)

	for i := 0; i < n; i++ {
		var createdAt time.Time
		if i%10 == 0 && sinceMidnight > 0 {
			// roughly one in ten lands today so the ticker has content
			createdAt = startOfDay.Add(time.Duration(rng.Int63n(int64(sinceMidnight))))
		} else {
			createdAt = now.Add(-time.Duration(rng.Int63n(int64(60 * 24 * time.Hour))))
		}

		entries = append(entries, models.LogEntry{
			ID:        fmt.Sprintf("demo-%04d", i),
			Username:  demoUsers[rng.Intn(len(demoUsers))],
			CreatedAt: createdAt.UTC(),
		})
	}

	return entries
}
