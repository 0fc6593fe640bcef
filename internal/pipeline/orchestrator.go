// Package pipeline drives a summarization job from submission to a terminal
// state: fetch, extract, transcribe, summarize, then format and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tubesum/internal/formatter"
	"tubesum/internal/media"
	"tubesum/internal/metrics"
	"tubesum/internal/models"
	"tubesum/internal/services"
	"tubesum/internal/store"
)

// MediaFetcher downloads the source video into workDir.
type MediaFetcher interface {
	Fetch(ctx context.Context, sourceURL, workDir string) (*media.Media, error)
}

// AudioExtractor converts downloaded media into audio of the given format.
type AudioExtractor interface {
	Extract(ctx context.Context, m *media.Media, format media.AudioFormat, workDir string) (*media.Audio, error)
}

// Transcriber turns audio into text and names the audio format it wants.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *media.Audio) (string, error)
	InputFormat() media.AudioFormat
}

// Summarizer produces the structured summary of a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (models.SummaryResult, error)
}

// ResultStore persists rendered documents.
type ResultStore interface {
	Append(ctx context.Context, block string) error
}

// TranscriptWriter keeps a copy of each transcript under name.
type TranscriptWriter interface {
	Write(ctx context.Context, name, text string) (string, error)
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Jobs        store.JobStore
	Fetcher     MediaFetcher
	Extractor   AudioExtractor
	Transcriber Transcriber
	Summarizer  Summarizer
	Results     ResultStore
	// Transcripts is optional. Write failures are logged, not fatal.
	Transcripts TranscriptWriter
}

// Options tune an Orchestrator.
type Options struct {
	// ScratchDir is where per-job working directories are created.
	ScratchDir string
	// Concurrency bounds the in-process pool when no Dispatcher is given.
	Concurrency int
	// Dispatcher hands jobs to workers. Nil runs them in-process.
	Dispatcher store.JobClient
}

// Orchestrator owns every job mutation after creation.
type Orchestrator struct {
	deps       Deps
	scratchDir string
	dispatcher store.JobClient
	local      *LocalDispatcher
	now        func() time.Time
	newID      func() string
}

// New builds an Orchestrator. Without opts.Dispatcher jobs run on a local pool.
func New(deps Deps, opts Options) *Orchestrator {
	o := &Orchestrator{
		deps:       deps,
		scratchDir: opts.ScratchDir,
		dispatcher: opts.Dispatcher,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if o.dispatcher == nil {
		o.local = NewLocalDispatcher(o, opts.Concurrency)
		o.dispatcher = o.local
	}
	return o
}

// Submit creates a queued job for sourceURL and dispatches it. It never waits
// for the pipeline. An unparseable URL is still accepted and fails at fetch.
func (o *Orchestrator) Submit(ctx context.Context, sourceURL string) (string, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return "", fmt.Errorf("%w: source url is required", models.ErrValidation)
	}

	job := &models.Job{
		ID:        o.newID(),
		SourceURL: sourceURL,
		Status:    models.JobStatusQueued,
		CreatedAt: o.now().UTC(),
	}
	if id, err := media.ParseVideoURL(sourceURL); err == nil {
		job.VideoID = id
	}
	if err := o.deps.Jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	metrics.IncreaseJobsSubmitted()
	log.WithFields(log.Fields{"job_id": job.ID, "source_url": sourceURL}).Info("Job queued")

	if err := o.dispatcher.Dispatch(ctx, job.ID); err != nil {
		// A job that can never run must not stay queued.
		se := models.NewStageError(models.JobStatusFetching, "job could not be dispatched", err)
		o.finish(context.WithoutCancel(ctx), job.ID, func(j *models.Job) {
			j.Fail(se.Stage, se.Kind, se.Error(), o.now().UTC())
		})
		return job.ID, fmt.Errorf("dispatch job %s: %w", job.ID, err)
	}
	return job.ID, nil
}

// Get returns a snapshot of one job.
func (o *Orchestrator) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return o.deps.Jobs.Get(ctx, jobID)
}

// List returns jobs newest first.
func (o *Orchestrator) List(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	return o.deps.Jobs.List(ctx, limit, offset)
}

// Wait blocks until every job dispatched in-process has finished.
func (o *Orchestrator) Wait() {
	if o.local != nil {
		o.local.Wait()
	}
}

// Close waits for in-process jobs and releases the dispatcher.
func (o *Orchestrator) Close() error {
	return o.dispatcher.Close()
}

// runState carries intermediate results between stages of one job.
type runState struct {
	job        *models.Job
	scratch    *media.Scratch
	media      *media.Media
	audio      *media.Audio
	transcript string
	summary    models.SummaryResult
}

type stage struct {
	status models.JobStatus
	run    func(ctx context.Context, st *runState) error
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{models.JobStatusFetching, o.fetch},
		{models.JobStatusExtracting, o.extract},
		{models.JobStatusTranscribing, o.transcribe},
		{models.JobStatusSummarizing, o.summarize},
		{models.JobStatusFormatting, o.format},
	}
}

// Run executes the stage sequence for one queued job. Stage failures are
// recorded on the job and are not returned; the error reports only problems
// reaching the job store. Jobs that are no longer queued are skipped.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	// Once started a job runs to a terminal state.
	ctx = services.ContextWithJobID(context.WithoutCancel(ctx), jobID)

	job, err := o.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	entry := log.WithFields(log.Fields{"job_id": jobID, "source_url": job.SourceURL})
	if job.Status != models.JobStatusQueued {
		entry.Warnf("Skipping job in status %s", job.Status)
		return nil
	}

	done := metrics.TrackInFlight()
	defer done()

	st := &runState{job: job}
	defer func() {
		// Stages release as they go; this covers early exits.
		st.media.Release()
		st.audio.Release()
		if err := st.scratch.Release(); err != nil {
			entry.Warnf("Failed to remove job workspace %s: %v", st.scratch.Dir(), err)
		}
	}()

	for i, s := range o.stages() {
		first := i == 0
		updated, err := o.deps.Jobs.Update(ctx, jobID, func(j *models.Job) error {
			// Only one runner may claim a queued job.
			if first && j.Status != models.JobStatusQueued {
				return fmt.Errorf("%w: job is %s, not queued", store.ErrInvalidTransition, j.Status)
			}
			j.Status = s.status
			return nil
		})
		if first && errors.Is(err, store.ErrInvalidTransition) {
			entry.Warnf("Skipping job claimed by another runner: %v", err)
			return nil
		}
		if err != nil {
			entry.Errorf("Failed to move job to %s: %v", s.status, err)
			return o.fail(ctx, entry, jobID, models.NewStageError(s.status, "job store rejected stage transition", err))
		}
		st.job = updated
		entry = entry.WithField("stage", string(s.status))
		entry.Info("Stage started")

		start := o.now()
		err = o.runStage(ctx, s, st)
		metrics.ObserveStageDuration(string(s.status), o.now().Sub(start))
		if err != nil {
			return o.fail(ctx, entry, jobID, toStageError(s.status, err))
		}
	}
	return nil
}

// runStage runs one stage, turning a panic into that stage's error.
func (o *Orchestrator) runStage(ctx context.Context, s stage, st *runState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("job_id", st.job.ID).Errorf("Panic in stage %s: %v\n%s", s.status, r, debug.Stack())
			err = stageFailure(s.status, fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return s.run(ctx, st)
}

func (o *Orchestrator) fetch(ctx context.Context, st *runState) error {
	scratch, err := media.NewScratch(o.scratchDir, "job-"+st.job.ID+"-")
	if err != nil {
		return stageFailure(models.JobStatusFetching, "could not allocate scratch space", err)
	}
	st.scratch = scratch

	m, err := o.deps.Fetcher.Fetch(ctx, st.job.SourceURL, scratch.Dir())
	if err != nil {
		return err
	}
	st.media = m
	updated, err := o.deps.Jobs.Update(ctx, st.job.ID, func(j *models.Job) error {
		if m.VideoID != "" {
			j.VideoID = m.VideoID
		}
		j.Title = m.Title
		return nil
	})
	if err != nil {
		return stageFailure(models.JobStatusFetching, "could not record video metadata", err)
	}
	st.job = updated
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, st *runState) error {
	defer st.media.Release()
	a, err := o.deps.Extractor.Extract(ctx, st.media, o.deps.Transcriber.InputFormat(), st.scratch.Dir())
	if err != nil {
		return err
	}
	st.audio = a
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, st *runState) error {
	defer st.audio.Release()
	text, err := o.deps.Transcriber.Transcribe(ctx, st.audio)
	if err != nil {
		return err
	}
	st.transcript = text
	o.keepTranscript(ctx, st)
	return nil
}

func (o *Orchestrator) keepTranscript(ctx context.Context, st *runState) {
	if o.deps.Transcripts == nil || strings.TrimSpace(st.transcript) == "" {
		return
	}
	name := st.job.VideoID
	if name == "" {
		name = st.job.ID
	}
	entry := log.WithField("job_id", st.job.ID)
	path, err := o.deps.Transcripts.Write(ctx, name, st.transcript)
	if err != nil {
		entry.Warnf("Failed to keep transcript: %v", err)
		return
	}
	entry.Debugf("Transcript written to %s", path)
}

func (o *Orchestrator) summarize(ctx context.Context, st *runState) error {
	if strings.TrimSpace(st.transcript) == "" {
		return models.NewStageError(models.JobStatusSummarizing, "transcript is empty", models.ErrEmptyTranscript)
	}
	res, err := o.deps.Summarizer.Summarize(ctx, st.transcript)
	if err != nil {
		return err
	}
	st.summary = res
	return nil
}

// format renders the document, appends it and completes the job. Any failure
// here happens after a summary exists and is reported as a PersistenceError.
func (o *Orchestrator) format(ctx context.Context, st *runState) error {
	block := formatter.Render(formatter.MetaFromJob(st.job), st.summary.Document)
	if err := o.deps.Results.Append(ctx, block); err != nil {
		return stageFailure(models.JobStatusFormatting, "append to result store failed", err)
	}

	completed, err := o.deps.Jobs.Update(ctx, st.job.ID, func(j *models.Job) error {
		j.Complete(block, o.now().UTC())
		return nil
	})
	if err != nil {
		return stageFailure(models.JobStatusFormatting, "could not record completed job", err)
	}
	st.job = completed
	metrics.IncreaseJobsFinished(string(models.JobStatusCompleted))
	log.WithFields(log.Fields{
		"job_id":    completed.ID,
		"video_id":  completed.VideoID,
		"structure": string(st.summary.Structure),
	}).Info("Job completed")
	return nil
}

// fail records se on the job. It returns an error only when the job store
// could not be updated.
func (o *Orchestrator) fail(ctx context.Context, entry *log.Entry, jobID string, se *models.StageError) error {
	metrics.IncreaseStageFailures(string(se.Stage), string(se.Kind))
	entry.WithField("error_kind", string(se.Kind)).Errorf("Job failed: %v", se)

	return o.finish(ctx, jobID, func(j *models.Job) {
		j.Fail(se.Stage, se.Kind, se.Error(), o.now().UTC())
	})
}

// finish applies a terminal mutation unless the job is already terminal.
func (o *Orchestrator) finish(ctx context.Context, jobID string, mark func(j *models.Job)) error {
	_, err := o.deps.Jobs.Update(ctx, jobID, func(j *models.Job) error {
		if j.Status.IsTerminal() {
			return errAlreadyTerminal
		}
		mark(j)
		return nil
	})
	if errors.Is(err, errAlreadyTerminal) {
		return nil
	}
	if err != nil {
		log.WithField("job_id", jobID).Errorf("Failed to record job failure: %v", err)
		return fmt.Errorf("record failure for job %s: %w", jobID, err)
	}
	metrics.IncreaseJobsFinished(string(models.JobStatusFailed))
	return nil
}

var errAlreadyTerminal = errors.New("job already terminal")

// stageFailure builds a StageError for stage. Formatting failures always
// state that the summary itself was generated.
func stageFailure(stage models.JobStatus, cause string, err error) *models.StageError {
	if stage == models.JobStatusFormatting {
		cause = models.PersistenceCausePrefix + " (" + cause + ")"
	}
	return models.NewStageError(stage, cause, err)
}

// toStageError keeps an adapter's StageError and wraps anything else in the
// kind of the stage that produced it.
func toStageError(stage models.JobStatus, err error) *models.StageError {
	if se, ok := models.AsStageError(err); ok {
		if stage == models.JobStatusFormatting && se.Kind != models.KindPersistence {
			return stageFailure(stage, se.Cause, err)
		}
		return se
	}
	return stageFailure(stage, "stage failed", err)
}
