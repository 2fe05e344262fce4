package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/example/event-booking/internal/persistence"
)

// seedLookup is one reference entry loaded by Seed.
type seedLookup struct {
	id       string
	kind     string
	name     string
	category string
	minAge   int
}

// referenceData lists the lookup entries every installation starts with.
// Event status IDs are the built-in codes used by the services.
var referenceData = func() []seedLookup {
	var out []seedLookup
	for _, age := range []int{0, 6, 12, 16, 18, 21} {
		name := strconv.Itoa(age) + "+"
		out = append(out, seedLookup{id: "age-" + strconv.Itoa(age), kind: persistence.LookupAgeCategory, name: name, minAge: age})
	}
	for _, status := range [][2]string{
		{"planned", "Planned"},
		{"active", "Active"},
		{"completed", "Completed"},
		{"cancelled", "Cancelled"},
	} {
		out = append(out, seedLookup{id: status[0], kind: persistence.LookupEventStatus, name: status[1]})
	}
	for _, name := range []string{
		"Conference hall", "Training room", "Coworking", "Multipurpose hall",
		"Sports hall", "Cinema", "Lecture hall", "Exhibition hall",
		"Dance hall", "Library", "Cafe", "Assembly hall",
	} {
		out = append(out, seedLookup{id: "room-type-" + slug(name), kind: persistence.LookupRoomType, name: name})
	}
	for _, entry := range [][2]string{
		{"Conference", "Scientific"}, {"Forum", "Scientific"}, {"Seminar", "Scientific"},
		{"Presentation", "Business"}, {"Exhibition", "Business"}, {"Job fair", "Business"},
		{"Lecture", "Educational"}, {"Workshop", "Educational"}, {"Training", "Educational"},
		{"Corporate party", "Entertainment"}, {"Team building", "Entertainment"}, {"Party", "Entertainment"},
		{"Concert", "Cultural"}, {"Festival", "Cultural"}, {"Performance", "Cultural"},
		{"Competition", "Sports"}, {"Tournament", "Sports"}, {"Sports day", "Sports"},
	} {
		out = append(out, seedLookup{id: "event-type-" + slug(entry[0]), kind: persistence.LookupEventType, name: entry[0], category: entry[1]})
	}
	return out
}()

// Seed loads the reference lookups. Entries that already exist are kept.
func (s *Storage) Seed(ctx context.Context) error {
	helper := NewQueryHelper(s.pool)
	mapper := NewErrorMapper()
	now := time.Now().UTC()

	return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, entry := range referenceData {
			_, err := helper.ExecTx(ctx, tx, `
				INSERT INTO lookups (`+lookupColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT DO NOTHING
			`,
				entry.id,
				entry.kind,
				entry.name,
				entry.category,
				entry.minAge,
				helper.Time(now),
				helper.Time(now),
			)
			if err != nil {
				return mapper.MapError(err)
			}
		}
		return nil
	})
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
