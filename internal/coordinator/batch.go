package coordinator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lumen-ai/conductor/pkg/models"
)

// skillFailure pairs a failed skill with its error, in declared plan order.
type skillFailure struct {
	desc models.SkillDescriptor
	err  error
}

// buildBatches splits the plan into execution batches. Consecutive
// parallel-safe skills with no dependency between them share a batch, capped
// at maxParallel; everything else runs as a singleton batch. Plan order is
// preserved: batch N+1 starts only after batch N joins.
func buildBatches(descs []models.SkillDescriptor, maxParallel int) [][]models.SkillDescriptor {
	if maxParallel < 1 {
		maxParallel = 1
	}

	var batches [][]models.SkillDescriptor
	var current []models.SkillDescriptor

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
		}
	}

	for _, desc := range descs {
		if !desc.ParallelSafe || len(current) >= maxParallel || dependsOnAny(desc, current) {
			flush()
		}
		if !desc.ParallelSafe {
			batches = append(batches, []models.SkillDescriptor{desc})
			continue
		}
		current = append(current, desc)
	}
	flush()
	return batches
}

// dependsOnAny reports whether desc requires a key some batch member
// produces. Such a skill must wait for the batch to join.
func dependsOnAny(desc models.SkillDescriptor, batch []models.SkillDescriptor) bool {
	for _, member := range batch {
		for _, key := range desc.Required {
			if member.ProducesKey(key) {
				return true
			}
		}
	}
	return false
}

// runBatch executes a parallel batch. Each member runs against a private
// scratch of the context; after all members join, scratches are absorbed in
// declared plan order, so merge results never depend on completion order.
// Failures come back in declared order as well.
func (c *Coordinator) runBatch(ctx context.Context, uif *models.ExecutionContext, batch []models.SkillDescriptor) []skillFailure {
	scratches := make([]*models.ExecutionContext, len(batch))
	errs := make([]error, len(batch))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.maxParallel)
	for i, desc := range batch {
		scratches[i] = uif.Scratch()
		g.Go(func() error {
			errs[i] = c.runSkill(groupCtx, scratches[i], desc)
			// Member failures are isolated; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	var failed []skillFailure
	for i, desc := range batch {
		uif.Absorb(scratches[i])
		if errs[i] != nil {
			failed = append(failed, skillFailure{desc: desc, err: errs[i]})
			continue
		}
		// A terminal skill inside a batch still resolves write-once in
		// declared order.
		if response, set := scratches[i].FinalResponse(); set {
			if err := uif.SetFinalResponse(response, scratches[i].Confidence()); err != nil {
				uif.Warn(desc.Name, "response_conflict", "%v", err)
			}
		}
	}
	return failed
}
