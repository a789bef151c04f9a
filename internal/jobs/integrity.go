package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/services"
)

// IntegrityReport lists everything one scan found wrong
type IntegrityReport struct {
	OrphanedAlternatives []uint `json:"orphaned_alternatives"`
	OrphanedLearning     []uint `json:"orphaned_learning"`
	ReplayViolations     []uint `json:"replay_violations"`
}

// Total returns the number of findings in the report
func (r *IntegrityReport) Total() int {
	return len(r.OrphanedAlternatives) + len(r.OrphanedLearning) + len(r.ReplayViolations)
}

// IntegrityJob periodically audits referential integrity and the
// event-sourcing round-trip law. It only reports; nothing is repaired
// automatically because every finding needs a human decision.
type IntegrityJob struct {
	db      *gorm.DB
	history *services.HistoryService
}

// NewIntegrityJob creates a new integrity job
func NewIntegrityJob(db *gorm.DB, history *services.HistoryService) *IntegrityJob {
	return &IntegrityJob{db: db, history: history}
}

// Run executes one integrity scan and returns the number of findings
func (j *IntegrityJob) Run() (int, error) {
	report, err := j.Scan()
	if err != nil {
		return 0, err
	}

	for _, id := range report.OrphanedAlternatives {
		log.Printf("IntegrityJob: alternative name %d references a missing entity", id)
	}
	for _, id := range report.OrphanedLearning {
		log.Printf("IntegrityJob: learning confirmation %d references a missing entity", id)
	}
	for _, id := range report.ReplayViolations {
		log.Printf("IntegrityJob: guarantee %d replay does not reproduce current state", id)
	}

	return report.Total(), nil
}

// Scan builds the full integrity report without logging
func (j *IntegrityJob) Scan() (*IntegrityReport, error) {
	report := &IntegrityReport{
		OrphanedAlternatives: []uint{},
		OrphanedLearning:     []uint{},
		ReplayViolations:     []uint{},
	}

	var altIDs []uint
	err := j.db.Model(&database.AlternativeName{}).
		Where("entity_id NOT IN (?)", j.db.Model(&database.Entity{}).Select("id")).
		Order("id ASC").
		Pluck("id", &altIDs).Error
	if err != nil {
		return nil, err
	}
	report.OrphanedAlternatives = altIDs

	var learningIDs []uint
	err = j.db.Model(&database.LearningConfirmation{}).
		Where("entity_id NOT IN (?)", j.db.Model(&database.Entity{}).Select("id")).
		Order("id ASC").
		Pluck("id", &learningIDs).Error
	if err != nil {
		return nil, err
	}
	report.OrphanedLearning = learningIDs

	var guaranteeIDs []uint
	if err := j.db.Model(&database.Guarantee{}).Order("id ASC").Pluck("id", &guaranteeIDs).Error; err != nil {
		return nil, err
	}
	for _, id := range guaranteeIDs {
		ok, err := j.history.VerifyReplay(id)
		if err == services.ErrNoHistory {
			// A guarantee without events predates the recorder; the replay
			// law does not apply to it.
			continue
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			report.ReplayViolations = append(report.ReplayViolations, id)
		}
	}

	return report, nil
}

// Start begins the periodic integrity scans
func (j *IntegrityJob) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			findings, err := j.Run()
			if err != nil {
				log.Printf("Integrity job error: %v", err)
			} else if findings > 0 {
				log.Printf("Integrity job: %d findings", findings)
			}
		case <-stop:
			log.Println("Integrity job stopped")
			return
		}
	}
}
