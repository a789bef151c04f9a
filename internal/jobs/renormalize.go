package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/normalize"
)

// RenormalizeJob re-derives stored normalized keys after the normalizer
// changed (new boilerplate tokens, better folding). It processes rows in
// ID batches and writes only rows whose derived value actually differs,
// so an interrupted run resumes with no duplicate effects.
type RenormalizeJob struct {
	db         *gorm.DB
	normalizer *normalize.Normalizer
	batchSize  int
}

// NewRenormalizeJob creates a new renormalize job
func NewRenormalizeJob(db *gorm.DB, normalizer *normalize.Normalizer, batchSize int) *RenormalizeJob {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &RenormalizeJob{db: db, normalizer: normalizer, batchSize: batchSize}
}

// Run executes one full backfill pass and returns the number of rows updated
func (j *RenormalizeJob) Run() (int, error) {
	updated, err := j.renormalizeEntities()
	if err != nil {
		return updated, err
	}

	altUpdated, err := j.renormalizeAlternatives()
	updated += altUpdated
	return updated, err
}

func (j *RenormalizeJob) renormalizeEntities() (int, error) {
	updated := 0
	lastID := uint(0)

	for {
		var entities []database.Entity
		err := j.db.Where("id > ?", lastID).Order("id ASC").Limit(j.batchSize).Find(&entities).Error
		if err != nil {
			return updated, err
		}
		if len(entities) == 0 {
			return updated, nil
		}

		for _, entity := range entities {
			lastID = entity.ID
			key := j.normalizer.Key(entity.OfficialName)
			if key == "" || key == entity.NormalizedName {
				continue
			}
			err := j.db.Model(&database.Entity{}).Where("id = ?", entity.ID).
				Update("normalized_name", key).Error
			if err != nil {
				log.Printf("RenormalizeJob: failed to update entity %d: %v", entity.ID, err)
				continue
			}
			updated++
		}
	}
}

func (j *RenormalizeJob) renormalizeAlternatives() (int, error) {
	updated := 0
	lastID := uint(0)

	for {
		var alts []database.AlternativeName
		err := j.db.Where("id > ?", lastID).Order("id ASC").Limit(j.batchSize).Find(&alts).Error
		if err != nil {
			return updated, err
		}
		if len(alts) == 0 {
			return updated, nil
		}

		for _, alt := range alts {
			lastID = alt.ID
			key := j.normalizer.Key(alt.RawText)
			if key == "" || key == alt.NormalizedText {
				continue
			}
			// Two old variants can converge on one new key; the natural key
			// rejects the duplicate row and we drop it instead.
			err := j.db.Model(&database.AlternativeName{}).Where("id = ?", alt.ID).
				Update("normalized_text", key).Error
			if err != nil {
				if delErr := j.db.Delete(&database.AlternativeName{}, alt.ID).Error; delErr != nil {
					log.Printf("RenormalizeJob: failed to drop converged alternative %d: %v", alt.ID, delErr)
				} else {
					log.Printf("RenormalizeJob: dropped alternative %d, key %q already registered", alt.ID, key)
				}
				continue
			}
			updated++
		}
	}
}

// Start begins the periodic backfill passes
func (j *RenormalizeJob) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			updated, err := j.Run()
			if err != nil {
				log.Printf("Renormalize job error: %v", err)
			} else if updated > 0 {
				log.Printf("Renormalize job: updated %d rows", updated)
			}
		case <-stop:
			log.Println("Renormalize job stopped")
			return
		}
	}
}
