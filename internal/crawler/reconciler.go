package crawler

import (
	"context"

	"github.com/mwantia/phoenix-tracker/internal/phoenix"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

// FileWriter persists classified files.
type FileWriter interface {
	UpsertFiles(ctx context.Context, files []models.ClassifiedFile) (store.BatchResult, error)
}

// Reconciler writes a merged crawl batch to the metadata store.
type Reconciler struct {
	store FileWriter
	log   log.LoggerService
}

func NewReconciler(st FileWriter, logger log.LoggerService) *Reconciler {
	return &Reconciler{store: st, log: logger}
}

// Reconciliation counts the outcome of one batch.
type Reconciliation struct {
	Written int
	// Unknown rows belong to a subject the store does not know and were
	// dropped before writing.
	Unknown int
	// Rejected rows were refused by the store.
	Rejected int
}

func (r Reconciliation) Failed() int {
	return r.Unknown + r.Rejected
}

// Reconcile upserts every file of the batch whose subject is known. Running it
// twice with the same batch leaves the store unchanged apart from extracted
// timestamps.
func (r *Reconciler) Reconcile(ctx context.Context, known func(models.SubjectKey) bool, files []models.ClassifiedFile) (Reconciliation, error) {
	result := Reconciliation{}

	batch := make([]models.ClassifiedFile, 0, len(files))
	for _, file := range files {
		key := models.SubjectKey{StudyID: file.Phoenix.StudyID, SubjectID: file.Phoenix.SubjectID}
		if known != nil && !known(key) {
			err := phoenix.ErrUnknownEntity.New("subject %s", key)
			r.log.Warn("Dropping %s: %v", file.File.FilePath, err)
			result.Unknown++
			continue
		}
		batch = append(batch, file)
	}

	if len(batch) == 0 {
		return result, nil
	}

	written, err := r.store.UpsertFiles(ctx, batch)
	if err != nil {
		return result, phoenix.ErrTransientIO.Wrap(err)
	}

	for _, failed := range written.Failed {
		r.log.Warn("Rejected %s: %v", failed.Key, failed.Err)
	}
	result.Written = written.Written
	result.Rejected = len(written.Failed)

	return result, nil
}
