package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/quartus-catalog/internal/config"
	xhttp "github.com/handiism/quartus-catalog/internal/http"
	"github.com/handiism/quartus-catalog/internal/intel"
	"github.com/handiism/quartus-catalog/internal/model"
	"github.com/handiism/quartus-catalog/internal/retry"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a pipeline progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Progress is a snapshot of the pipeline counters.
type Progress struct {
	Groups        int
	PagesDone     int32
	PagesTotal    int32
	Artifacts     int32
	ResolvedDone  int32
	ResolvedTotal int32
	Failures      int
}

// Manager coordinates a catalog run: discovering groups, collecting
// artifacts from every version page, then resolving CDN URLs.
//
// The session is owned by the caller, who creates it once per run and
// closes it afterwards. Stages are run in order; each one keeps going past
// individual failures, which end up in Catalog.Failures.
type Manager struct {
	settings *config.Settings
	crawler  *intel.Crawler
	parser   *intel.LinkPageParser
	resolver *intel.Resolver
	log      logrus.FieldLogger

	runID     string
	started   time.Time
	groups    []*model.DistributionGroup
	artifacts []*model.ArtifactRecord
	failures  []Failure

	pagesTotal    int32
	pagesDone     int32
	artifactCount int32
	resolveTotal  int32
	resolveDone   int32

	onProgress func(ProgressEvent)
	mu         sync.RWMutex
}

// NewManager creates a new Manager.
func NewManager(settings *config.Settings, session *xhttp.Session, log logrus.FieldLogger, onProgress func(ProgressEvent)) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctl := retry.New(settings.RetryPolicy(), log)
	crawler, err := intel.NewCrawler(session, ctl, settings.CrawlerConfig(), log)
	if err != nil {
		return nil, err
	}
	parser, err := intel.NewLinkPageParser(settings.SiteRoot, log)
	if err != nil {
		return nil, err
	}

	return &Manager{
		settings:   settings,
		crawler:    crawler,
		parser:     parser,
		resolver:   intel.NewResolver(session, ctl, settings.ResolverConfig(), log),
		log:        log,
		runID:      uuid.NewString(),
		started:    time.Now().UTC(),
		onProgress: onProgress,
	}, nil
}

// RunOptions selects how far Run goes.
type RunOptions struct {
	// SkipArtifacts stops after discovery.
	SkipArtifacts bool

	// SkipCDN stops after the version pages are parsed.
	SkipCDN bool
}

// Run executes the stages selected by opts and returns the catalog. The
// catalog is returned even when a stage was cancelled, holding whatever was
// collected up to that point.
func (m *Manager) Run(ctx context.Context, opts RunOptions) (*Catalog, error) {
	if err := m.Initialize(ctx); err != nil {
		return m.Catalog(), err
	}
	if !opts.SkipArtifacts {
		if err := m.CollectArtifacts(ctx); err != nil {
			return m.Catalog(), err
		}
		if !opts.SkipCDN {
			if err := m.ResolveCDN(ctx); err != nil {
				return m.Catalog(), err
			}
		}
	}
	return m.Catalog(), nil
}

// Initialize loads the distribution groups, from the settings when they
// list any, from the landing page otherwise.
func (m *Manager) Initialize(ctx context.Context) error {
	var (
		groups []*model.DistributionGroup
		err    error
	)

	if len(m.settings.Groups) > 0 {
		groups, err = m.settings.SeededGroups()
		if err != nil {
			return err
		}
		m.progress(ProgressEvent{Message: fmt.Sprintf("Using %d groups from settings", len(groups)), Level: LevelInfo})
	} else {
		m.progress(ProgressEvent{Message: "Discovering distribution groups", Level: LevelInfo})
		groups, err = m.crawler.Discover(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.recordErrors(StageDiscover, m.settings.LandingURL, err)
			if len(groups) == 0 {
				return fmt.Errorf("no distribution groups: %w", err)
			}
		}
	}

	var pages int32
	for _, g := range groups {
		pages += int32(len(g.Pages))
		m.progress(ProgressEvent{Message: fmt.Sprintf("Found %s/%s (%d versions)", g.Edition, g.Platform, len(g.Pages)), Level: LevelInfo})
	}

	m.mu.Lock()
	m.groups = groups
	m.mu.Unlock()
	atomic.StoreInt32(&m.pagesTotal, pages)
	return nil
}

type pageJob struct {
	group *model.DistributionGroup
	page  model.VersionPage
}

// CollectArtifacts fetches and parses every version page of every group.
func (m *Manager) CollectArtifacts(ctx context.Context) error {
	m.mu.RLock()
	var jobs []pageJob
	for _, g := range m.groups {
		for _, p := range g.Pages {
			jobs = append(jobs, pageJob{group: g, page: p})
		}
	}
	m.mu.RUnlock()

	results := make([][]*model.ArtifactRecord, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.MaxConcurrentPages)
	for i, job := range jobs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = m.collectPage(gctx, job)
			atomic.AddInt32(&m.pagesDone, 1)
			return nil
		})
	}
	err := g.Wait()

	var artifacts []*model.ArtifactRecord
	for _, recs := range results {
		artifacts = append(artifacts, recs...)
	}

	m.mu.Lock()
	m.artifacts = append(m.artifacts, artifacts...)
	m.mu.Unlock()
	atomic.AddInt32(&m.artifactCount, int32(len(artifacts)))

	if err != nil {
		return err
	}
	m.progress(ProgressEvent{Message: fmt.Sprintf("Collected %d artifacts from %d pages", len(artifacts), len(jobs)), Level: LevelSuccess})
	return nil
}

func (m *Manager) collectPage(ctx context.Context, job pageJob) []*model.ArtifactRecord {
	label := fmt.Sprintf("%s/%s %s", job.group.Edition, job.group.Platform, job.page.Version)
	m.progress(ProgressEvent{Message: fmt.Sprintf("Fetching %s", label), Level: LevelVerbose})

	page, err := m.crawler.FetchVersionPage(ctx, job.page.URL)
	if err != nil {
		if ctx.Err() == nil {
			m.recordErrors(StageFetch, job.page.URL, err)
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error fetching %s: %v", label, err), Level: LevelError})
		}
		return nil
	}

	res, err := m.parser.Parse(string(page.Body), intel.ParseOptions{
		EditionHint: job.group.Edition,
		DateOrder:   m.settings.DateOrderFor(job.page.URL),
		SourcePage:  job.page.URL,
	})
	if err != nil {
		m.recordErrors(StageParse, job.page.URL, err)
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error parsing %s: %v", label, err), Level: LevelError})
		return nil
	}

	for _, skip := range res.Skipped {
		m.recordErrors(StageSkip, skip.Page, skip)
	}
	if res.Platform != model.PlatformUnknown && res.Platform != job.group.Platform {
		m.progress(ProgressEvent{Message: fmt.Sprintf("%s: page says %s", label, res.Platform), Level: LevelWarning})
	}

	level := LevelInfo
	if len(res.Skipped) > 0 {
		level = LevelWarning
	}
	m.progress(ProgressEvent{Message: fmt.Sprintf("%s: %d artifacts, %d skipped", label, len(res.Records), len(res.Skipped)), Level: level})
	return res.Records
}

// ResolveCDN resolves the CDN URL of every collected artifact that does not
// have one yet.
func (m *Manager) ResolveCDN(ctx context.Context) error {
	m.mu.RLock()
	var pending []*model.ArtifactRecord
	for _, a := range m.artifacts {
		if !a.Resolved() {
			pending = append(pending, a)
		}
	}
	m.mu.RUnlock()

	atomic.StoreInt32(&m.resolveTotal, int32(len(pending)))
	atomic.StoreInt32(&m.resolveDone, 0)
	m.progress(ProgressEvent{Message: fmt.Sprintf("Resolving %d CDN URLs", len(pending)), Level: LevelInfo})

	var failed int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.MaxConcurrentResolves)
	for _, rec := range pending {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			err := m.resolver.ResolveRecord(gctx, rec)
			atomic.AddInt32(&m.resolveDone, 1)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt32(&failed, 1)
				m.recordErrors(StageResolve, rec.DirectURL, err)
				m.progress(ProgressEvent{Message: fmt.Sprintf("Error resolving %s: %v", rec.Filename, err), Level: LevelError})
				return nil
			}
			m.progress(ProgressEvent{Message: fmt.Sprintf("Resolved %s", rec.Filename), Level: LevelVerbose})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if failed == 0 {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Resolved all %d CDN URLs", len(pending)), Level: LevelSuccess})
	} else {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Resolved %d CDN URLs, %d failed", len(pending)-int(failed), failed), Level: LevelWarning})
	}
	return nil
}

// Catalog returns a snapshot of everything collected so far.
func (m *Manager) Catalog() *Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &Catalog{
		RunID:       m.runID,
		GeneratedAt: m.started,
		Groups:      append([]*model.DistributionGroup(nil), m.groups...),
		Artifacts:   append([]*model.ArtifactRecord(nil), m.artifacts...),
		Failures:    append([]Failure(nil), m.failures...),
	}
}

// GetProgress returns current pipeline progress.
func (m *Manager) GetProgress() Progress {
	m.mu.RLock()
	groups, failures := len(m.groups), len(m.failures)
	m.mu.RUnlock()

	return Progress{
		Groups:        groups,
		PagesDone:     atomic.LoadInt32(&m.pagesDone),
		PagesTotal:    atomic.LoadInt32(&m.pagesTotal),
		Artifacts:     atomic.LoadInt32(&m.artifactCount),
		ResolvedDone:  atomic.LoadInt32(&m.resolveDone),
		ResolvedTotal: atomic.LoadInt32(&m.resolveTotal),
		Failures:      failures,
	}
}

// RunID returns the identifier stamped on the catalog.
func (m *Manager) RunID() string {
	return m.runID
}

// recordErrors adds one Failure per error, splitting aggregates.
func (m *Manager) recordErrors(stage Stage, target string, err error) {
	errs := []error{err}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range errs {
		m.failures = append(m.failures, Failure{
			Stage:    stage,
			Target:   target,
			Error:    e.Error(),
			Attempts: retry.Attempts(e),
			Fatal:    retry.IsFatal(e),
		})
	}
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
