package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gmat-zalo-bot/internal/catalog"
)

const DefaultCaptionPrefix = "Here's your GMAT question! 📚"

type Stage int

const (
	StageFetching Stage = iota + 1
	StageRendering
	StageHosting
	StageSending
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageFetching:
		return "fetching"
	case StageRendering:
		return "rendering"
	case StageHosting:
		return "hosting"
	case StageSending:
		return "sending"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageError records which stage ended a job.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage carried by err, or 0.
func FailedStage(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return 0
}

type Job struct {
	ID                  string
	Ref                 catalog.QuestionRef
	Recipients          []string
	IncludeExplanations bool
	Attempts            int
}

type RecipientFailure struct {
	ChatID string
	Err    error
}

type Outcome struct {
	JobID     string
	Ref       catalog.QuestionRef
	Stage     Stage
	Attempts  int
	ImageURL  string
	Delivered []string
	Failed    []RecipientFailure
	Err       error
}

// Succeeded is true when every recipient got the question.
func (o Outcome) Succeeded() bool {
	return o.Stage == StageDone && len(o.Failed) == 0
}

// Partial is true when sending ran but at least one recipient failed.
func (o Outcome) Partial() bool {
	return o.Stage == StageDone && len(o.Failed) > 0
}

type PipelineConfig struct {
	CaptionPrefix   string
	Fetch           RetryPolicy
	Render          RetryPolicy
	Host            RetryPolicy
	SendConcurrency int

	// KeepImages leaves rendered files on disk after a successful upload.
	KeepImages bool
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CaptionPrefix:   DefaultCaptionPrefix,
		Fetch:           DefaultFetchPolicy(),
		Render:          NoRetry(),
		Host:            NoRetry(),
		SendConcurrency: 1,
	}
}

// Pipeline runs fetch, render, host and send for one question at a time.
type Pipeline struct {
	logger   *log.Logger
	content  ContentFetcher
	renderer ImageRenderer
	host     ArtifactHoster
	sender   PhotoSender
	cfg      PipelineConfig

	sleep      sleepFunc
	removeFile func(string) error
	newID      func() string
}

func NewPipeline(
	logger *log.Logger,
	content ContentFetcher,
	renderer ImageRenderer,
	host ArtifactHoster,
	sender PhotoSender,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.CaptionPrefix == "" {
		cfg.CaptionPrefix = DefaultCaptionPrefix
	}
	if cfg.SendConcurrency <= 0 {
		cfg.SendConcurrency = 1
	}
	return &Pipeline{
		logger:     logger,
		content:    content,
		renderer:   renderer,
		host:       host,
		sender:     sender,
		cfg:        cfg,
		sleep:      sleepContext,
		removeFile: os.Remove,
		newID:      uuid.NewString,
	}
}

// NewJob prepares a job with a fresh id.
func (p *Pipeline) NewJob(ref catalog.QuestionRef, recipients []string, includeExplanations bool) Job {
	return Job{
		ID:                  p.newID(),
		Ref:                 ref,
		Recipients:          append([]string(nil), recipients...),
		IncludeExplanations: includeExplanations,
	}
}

// DeliverToChat answers a single chat. Explicitly requested questions come
// with explanations; random ones do not.
func (p *Pipeline) DeliverToChat(ctx context.Context, chatID string, ref catalog.QuestionRef, requestedByID bool) Outcome {
	return p.Run(ctx, p.NewJob(ref, []string{chatID}, requestedByID))
}

// Run drives job to StageDone or StageFailed. Stages never overlap: one
// content record and one image at most exist per job.
func (p *Pipeline) Run(ctx context.Context, job Job) Outcome {
	if job.ID == "" {
		job.ID = p.newID()
	}
	out := Outcome{JobID: job.ID, Ref: job.Ref}
	fail := func(stage Stage, err error) Outcome {
		out.Stage = StageFailed
		out.Attempts = job.Attempts
		out.Err = &StageError{Stage: stage, Err: err}
		p.logger.Printf("job=%s question=%s failed at %s: %v", job.ID, job.Ref.ID, stage, err)
		return out
	}

	content, err := p.fetch(ctx, &job)
	if err != nil {
		return fail(StageFetching, err)
	}
	if job.Ref.Category == catalog.Any {
		if c, ok := catalog.Lookup(content.TypeTag); ok {
			job.Ref.Category = c
			out.Ref = job.Ref
		}
	}
	p.logger.Printf("job=%s question=%s (%s) fetched: %s", job.ID, job.Ref.ID, job.Ref.Category.Label(), content.Preview)

	imagePath, err := p.renderImage(ctx, job, content)
	if err != nil {
		return fail(StageRendering, err)
	}

	imageURL, err := p.hostImage(ctx, job, imagePath)
	if err != nil {
		return fail(StageHosting, err)
	}
	out.ImageURL = imageURL

	out.Delivered, out.Failed = p.send(ctx, job, imageURL, p.caption(job.Ref, content))
	out.Stage = StageDone
	out.Attempts = job.Attempts
	if len(out.Failed) > 0 {
		out.Err = &StageError{
			Stage: StageSending,
			Err:   fmt.Errorf("%d of %d recipients failed", len(out.Failed), len(job.Recipients)),
		}
		p.logger.Printf("job=%s question=%s delivered to %d, failed for %d recipient(s)",
			job.ID, job.Ref.ID, len(out.Delivered), len(out.Failed))
		return out
	}
	p.logger.Printf("job=%s question=%s delivered to %d recipient(s)", job.ID, job.Ref.ID, len(out.Delivered))
	return out
}

// RenderOnly fetches and renders without hosting or sending; the image stays
// on disk.
func (p *Pipeline) RenderOnly(ctx context.Context, ref catalog.QuestionRef, includeExplanations bool) (string, error) {
	job := p.NewJob(ref, nil, includeExplanations)
	content, err := p.fetch(ctx, &job)
	if err != nil {
		return "", &StageError{Stage: StageFetching, Err: err}
	}
	path, err := p.renderImage(ctx, job, content)
	if err != nil {
		return "", &StageError{Stage: StageRendering, Err: err}
	}
	return path, nil
}

func (p *Pipeline) fetch(ctx context.Context, job *Job) (QuestionContent, error) {
	var content QuestionContent
	_, err := p.cfg.Fetch.do(ctx, p.sleep, func(attempt int) error {
		job.Attempts = attempt
		c, err := p.content.FetchQuestion(ctx, job.Ref.ID)
		if err != nil {
			p.logger.Printf("job=%s question=%s fetch attempt %d/%d failed: %v",
				job.ID, job.Ref.ID, attempt, max(p.cfg.Fetch.MaxAttempts, 1), err)
			return err
		}
		content = c
		return nil
	})
	return content, err
}

func (p *Pipeline) renderImage(ctx context.Context, job Job, content QuestionContent) (string, error) {
	var path string
	_, err := p.cfg.Render.do(ctx, p.sleep, func(int) error {
		var err error
		path, err = p.renderer.Render(ctx, content, job.Ref.Category, job.IncludeExplanations)
		return err
	})
	return path, err
}

func (p *Pipeline) hostImage(ctx context.Context, job Job, path string) (string, error) {
	var url string
	_, err := p.cfg.Host.do(ctx, p.sleep, func(int) error {
		var err error
		url, err = p.host.Upload(ctx, path)
		return err
	})
	if err != nil {
		return "", err
	}
	if p.cfg.KeepImages {
		return url, nil
	}
	if err := p.removeFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Printf("job=%s remove rendered image %s: %v", job.ID, path, err)
	}
	return url, nil
}

// send tries every recipient regardless of sibling failures and reports both
// lists in recipient order.
func (p *Pipeline) send(ctx context.Context, job Job, imageURL, caption string) ([]string, []RecipientFailure) {
	errs := make([]error, len(job.Recipients))

	var g errgroup.Group
	g.SetLimit(p.cfg.SendConcurrency)
	for i, chatID := range job.Recipients {
		g.Go(func() error {
			if err := p.sender.SendPhoto(ctx, chatID, imageURL, caption); err != nil {
				errs[i] = err
				p.logger.Printf("job=%s question=%s send to chat=%s failed: %v", job.ID, job.Ref.ID, chatID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	delivered := make([]string, 0, len(job.Recipients))
	var failed []RecipientFailure
	for i, chatID := range job.Recipients {
		if errs[i] != nil {
			failed = append(failed, RecipientFailure{ChatID: chatID, Err: errs[i]})
			continue
		}
		delivered = append(delivered, chatID)
	}
	return delivered, failed
}

func (p *Pipeline) caption(ref catalog.QuestionRef, content QuestionContent) string {
	var b strings.Builder
	b.WriteString(p.cfg.CaptionPrefix)
	fmt.Fprintf(&b, "\n\nQuestion ID: %s (%s)", content.ID, ref.Category.Label())
	if content.Source != "" {
		fmt.Fprintf(&b, "\nFrom: %s", content.Source)
	}
	return b.String()
}
