package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"syllabus/api/internal/config"
	"syllabus/api/internal/courseload"
	"syllabus/api/internal/notify"
	"syllabus/api/internal/report"
	"syllabus/api/internal/search"
	"syllabus/api/internal/status"
	"syllabus/api/internal/store"
	"syllabus/api/internal/tagsync"
	"syllabus/api/internal/util"
)

const (
	PipelineLegacy  = "legacy"
	PipelineCurrent = "current"
)

type dataStore interface {
	QuestionIDs(ctx context.Context, courseID int64) (map[string]int64, error)
	ListCourseTags(ctx context.Context, courseID int64) ([]store.TagUsage, error)
	CountCourseQuestions(ctx context.Context, courseID int64) (int, int, error)
	UpsertLTILink(ctx context.Context, link store.LTILink) (store.LTILink, error)
	ListLTILinks(ctx context.Context, courseID int64) ([]store.LTILink, error)
	DeleteLTILink(ctx context.Context, courseID int64, resourceKey string) error
	Ping(ctx context.Context) error
}

type bundleLoader interface {
	LoadDir(dir string) (courseload.Bundle, error)
}

type statusStore interface {
	SaveRun(ctx context.Context, rec status.RunRecord) error
	LastRun(ctx context.Context, courseID int64) (status.RunRecord, error)
	Ping(ctx context.Context) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexCourse(tags []search.TagRecord, questions []search.QuestionRecord)
	ReindexAllFromPG(ctx context.Context)
}

type notifier interface {
	IsConfigured() bool
	SendSyncFailure(courseID int64, pipeline string, at time.Time, reason string) error
}

type reportService interface {
	Generate(ctx context.Context, req report.Request) (*report.Result, error)
}

type gitFetcher interface {
	Fetch(ctx context.Context, name, url, ref string) (string, error)
}

type objectFetcher interface {
	Fetch(ctx context.Context, prefix string) (string, error)
}

type dirLoader struct{}

func (dirLoader) LoadDir(dir string) (courseload.Bundle, error) {
	b, err := courseload.LoadDir(dir)
	if err != nil {
		return courseload.Bundle{}, err
	}
	return *b, nil
}

type Service struct {
	cfg     config.Config
	store   dataStore
	syncer  *tagsync.Syncer
	loader  bundleLoader
	runs    statusStore
	search  searchIndex
	reports reportService
	notify  notifier
	git     gitFetcher
	objects objectFetcher
}

// reportStore adapts the data store to the report renderer's view of it.
type reportStore struct {
	store dataStore
}

func (r reportStore) ListCourseTagUsage(ctx context.Context, courseID int64) ([]report.TagUsageInfo, error) {
	tags, err := r.store.ListCourseTags(ctx, courseID)
	if err != nil {
		return nil, err
	}
	infos := make([]report.TagUsageInfo, 0, len(tags))
	for _, tag := range tags {
		infos = append(infos, report.TagUsageInfo{
			Name:          tag.Name,
			Color:         tag.Color,
			Description:   tag.Description,
			QuestionCount: tag.QuestionCount,
		})
	}
	return infos, nil
}

func (r reportStore) CountCourseQuestions(ctx context.Context, courseID int64) (int, int, error) {
	return r.store.CountCourseQuestions(ctx, courseID)
}

func New(cfg config.Config, dataStore *store.PostgresStore, runs *status.RedisStore, searchSvc *search.Service, notifySvc *notify.Service, gitSrc *courseload.GitSource, objSrc *courseload.ObjectSource) *Service {
	s := &Service{
		cfg:    cfg,
		store:  dataStore,
		syncer: tagsync.NewSyncer(dataStore),
		loader: dirLoader{},
	}
	s.reports = report.NewService(reportStore{store: s.store})
	// nil concrete values must stay nil interfaces
	if runs != nil {
		s.runs = runs
	}
	if searchSvc != nil {
		s.search = searchSvc
	}
	if notifySvc != nil {
		s.notify = notifySvc
	}
	if gitSrc != nil {
		s.git = gitSrc
	}
	if objSrc != nil {
		s.objects = objSrc
	}
	return s
}

// Bootstrap verifies database connectivity and backfills the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingRuns(ctx context.Context) error {
	if s.runs == nil {
		return fmt.Errorf("run store not configured")
	}
	return s.runs.Ping(ctx)
}

// VerifySyncToken checks a presented sync token against the configured
// credential. A bcrypt hash takes precedence over the plain token.
func (s *Service) VerifySyncToken(token string) bool {
	if token == "" {
		return false
	}
	if s.cfg.SyncTokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.cfg.SyncTokenHash), []byte(token)) == nil
	}
	if s.cfg.SyncToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.SyncToken)) == 1
}

const (
	SourceDir    = "dir"
	SourceGit    = "git"
	SourceObject = "object"
)

// SyncInput names the pipeline to run and where the course bundle comes
// from. An empty Source reads the bundle already on disk.
type SyncInput struct {
	Pipeline string `json:"pipeline"`
	Source   string `json:"source"`
	RepoURL  string `json:"repoUrl"`
	Ref      string `json:"ref"`
	Prefix   string `json:"prefix"`
}

// SyncCourse materializes the course bundle, then reconciles its tags and
// question associations through the requested pipeline. A run record is
// saved whether the run succeeds or fails.
func (s *Service) SyncCourse(ctx context.Context, courseID int64, input SyncInput) (map[string]any, error) {
	pipeline := input.Pipeline
	if pipeline == "" {
		pipeline = PipelineCurrent
	}
	if pipeline != PipelineLegacy && pipeline != PipelineCurrent {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "pipeline must be 'legacy' or 'current'", nil)
	}

	dir, err := s.resolveBundleDir(ctx, courseID, input)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	bundle, err := s.loader.LoadDir(dir)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "BUNDLE_NOT_FOUND", fmt.Sprintf("course bundle: %v", err), nil)
	}

	var syncErr error
	switch pipeline {
	case PipelineLegacy:
		syncErr = s.runLegacy(ctx, courseID, bundle)
	case PipelineCurrent:
		syncErr = s.runCurrent(ctx, courseID, bundle)
	}

	rec := status.RunRecord{
		RunID:         util.NewID("run"),
		CourseID:      courseID,
		Pipeline:      pipeline,
		StartedAt:     started,
		FinishedAt:    time.Now(),
		OK:            syncErr == nil,
		QuestionCount: len(bundle.Questions),
		TagCount:      len(bundle.Course.Data.Tags),
	}
	if syncErr != nil {
		rec.Error = syncErr.Error()
	}
	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, rec); err != nil {
			log.Printf("app: save run record for course %d: %v", courseID, err)
		}
	}

	if syncErr != nil {
		if s.notify != nil && s.notify.IsConfigured() {
			if err := s.notify.SendSyncFailure(courseID, pipeline, rec.FinishedAt, syncErr.Error()); err != nil {
				log.Printf("app: sync failure alert for course %d: %v", courseID, err)
			}
		}
		if tagsync.IsConfigError(syncErr) {
			return nil, domainError(http.StatusUnprocessableEntity, "CONFIG_ERROR", syncErr.Error(), nil)
		}
		return nil, syncErr
	}

	s.indexCourse(ctx, courseID, bundle)

	return map[string]any{
		"runId":     rec.RunID,
		"courseId":  courseID,
		"pipeline":  pipeline,
		"ok":        true,
		"tags":      rec.TagCount,
		"questions": rec.QuestionCount,
	}, nil
}

// resolveBundleDir materializes the bundle for the requested source and
// returns the directory to load it from.
func (s *Service) resolveBundleDir(ctx context.Context, courseID int64, input SyncInput) (string, error) {
	name := strconv.FormatInt(courseID, 10)
	switch input.Source {
	case "", SourceDir:
		return courseDir(s.cfg.CoursesDir, courseID), nil
	case SourceGit:
		if s.git == nil {
			return "", domainError(http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "git source not configured", nil)
		}
		if input.RepoURL == "" {
			return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "repoUrl is required for the git source", nil)
		}
		dir, err := s.git.Fetch(ctx, name, input.RepoURL, input.Ref)
		if err != nil {
			return "", domainError(http.StatusBadGateway, "SOURCE_FETCH_FAILED", fmt.Sprintf("git fetch: %v", err), nil)
		}
		return dir, nil
	case SourceObject:
		if s.objects == nil {
			return "", domainError(http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "object storage source not configured", nil)
		}
		prefix := input.Prefix
		if prefix == "" {
			prefix = name
		}
		dir, err := s.objects.Fetch(ctx, prefix)
		if err != nil {
			return "", domainError(http.StatusBadGateway, "SOURCE_FETCH_FAILED", fmt.Sprintf("object fetch: %v", err), nil)
		}
		return dir, nil
	}
	return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "source must be 'dir', 'git' or 'object'", nil)
}

// runLegacy feeds the bundle through the additive pipeline. The whole bundle
// must be parseable and every question persisted, or the run is rejected.
func (s *Service) runLegacy(ctx context.Context, courseID int64, bundle courseload.Bundle) error {
	if bundle.Course.HasErrors() {
		return tagsync.NewConfigError(fmt.Sprintf("course file invalid: %v", bundle.Course.Errors))
	}
	for _, workingID := range sortedQuestionIDs(bundle) {
		if bundle.Questions[workingID].HasErrors() {
			return tagsync.NewConfigError(fmt.Sprintf("question %s invalid: %v", workingID, bundle.Questions[workingID].Errors))
		}
	}

	ids, err := s.store.QuestionIDs(ctx, courseID)
	if err != nil {
		return err
	}

	questions := make(map[string]tagsync.Question, len(bundle.Questions))
	for _, workingID := range sortedQuestionIDs(bundle) {
		id, ok := ids[workingID]
		if !ok {
			return tagsync.NewConfigError(fmt.Sprintf("question %s has not been persisted", workingID))
		}
		questions[workingID] = tagsync.Question{ID: id, Tags: bundle.Questions[workingID].Data.Tags}
	}

	course := tagsync.CourseInfo{Tags: declaredTags(bundle)}
	return s.syncer.Sync(ctx, courseID, course, questions)
}

// runCurrent feeds the bundle through the reconciling pipeline, carrying
// per-item validity instead of rejecting the whole bundle.
func (s *Service) runCurrent(ctx context.Context, courseID int64, bundle courseload.Bundle) error {
	ids, err := s.store.QuestionIDs(ctx, courseID)
	if err != nil {
		return err
	}

	data := tagsync.CourseData{
		CourseValid:  bundle.CourseValid(),
		DeclaredTags: declaredTags(bundle),
		Questions:    make(map[string]tagsync.QuestionData, len(bundle.Questions)),
		QuestionIDs:  ids,
	}
	for workingID, item := range bundle.Questions {
		data.Questions[workingID] = tagsync.QuestionData{
			Valid: !item.HasErrors(),
			Tags:  item.Data.Tags,
		}
	}
	return s.syncer.SyncNew(ctx, courseID, data)
}

// indexCourse pushes the post-sync state into the search index.
func (s *Service) indexCourse(ctx context.Context, courseID int64, bundle courseload.Bundle) {
	if s.search == nil {
		return
	}
	tags, err := s.store.ListCourseTags(ctx, courseID)
	if err != nil {
		log.Printf("app: list tags for search index, course %d: %v", courseID, err)
		return
	}
	ids, err := s.store.QuestionIDs(ctx, courseID)
	if err != nil {
		log.Printf("app: list question ids for search index, course %d: %v", courseID, err)
		return
	}

	tagRecords := make([]search.TagRecord, 0, len(tags))
	for _, tag := range tags {
		tagRecords = append(tagRecords, search.TagRecord{
			ID:          strconv.FormatInt(tag.ID, 10),
			CourseID:    tag.CourseID,
			Name:        tag.Name,
			Color:       tag.Color,
			Description: tag.Description,
		})
	}

	questionRecords := make([]search.QuestionRecord, 0, len(bundle.Questions))
	for _, workingID := range sortedQuestionIDs(bundle) {
		id, ok := ids[workingID]
		if !ok {
			continue
		}
		item := bundle.Questions[workingID]
		questionRecords = append(questionRecords, search.QuestionRecord{
			ID:        strconv.FormatInt(id, 10),
			CourseID:  courseID,
			WorkingID: workingID,
			Title:     item.Data.Title,
			Tags:      item.Data.Tags,
		})
	}

	s.search.IndexCourse(tagRecords, questionRecords)
}

// SyncStatus returns the most recent run record for a course.
func (s *Service) SyncStatus(ctx context.Context, courseID int64) (map[string]any, error) {
	if s.runs == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STATUS_UNAVAILABLE", "run status storage not configured", nil)
	}
	rec, err := s.runs.LastRun(ctx, courseID)
	if err != nil {
		if errors.Is(err, status.ErrNoRun) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "no sync runs recorded for course", nil)
		}
		return nil, err
	}
	payload := map[string]any{
		"runId":      rec.RunID,
		"courseId":   rec.CourseID,
		"pipeline":   rec.Pipeline,
		"startedAt":  rec.StartedAt.Format(time.RFC3339),
		"finishedAt": rec.FinishedAt.Format(time.RFC3339),
		"ok":         rec.OK,
		"tags":       rec.TagCount,
		"questions":  rec.QuestionCount,
	}
	if rec.Error != "" {
		payload["error"] = rec.Error
	}
	return payload, nil
}

// Search proxies to the search facade.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// Report renders a course tag report.
func (s *Service) Report(ctx context.Context, courseID int64, format report.Format) (*report.Result, error) {
	if s.reports == nil {
		return nil, domainError(http.StatusServiceUnavailable, "REPORT_UNAVAILABLE", "report rendering not configured", nil)
	}
	return s.reports.Generate(ctx, report.Request{CourseID: courseID, Format: format})
}

// UpsertLTILink creates or updates the launch mapping for a course resource.
func (s *Service) UpsertLTILink(ctx context.Context, courseID int64, resourceKey, launchURL string) (map[string]any, error) {
	link, err := s.store.UpsertLTILink(ctx, store.LTILink{
		CourseID:    courseID,
		ResourceKey: resourceKey,
		LaunchURL:   launchURL,
	})
	if err != nil {
		return nil, err
	}
	return ltiLinkPayload(link), nil
}

// ListLTILinks returns the live launch mappings of a course.
func (s *Service) ListLTILinks(ctx context.Context, courseID int64) (map[string]any, error) {
	links, err := s.store.ListLTILinks(ctx, courseID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(links))
	for _, link := range links {
		items = append(items, ltiLinkPayload(link))
	}
	return map[string]any{
		"courseId": courseID,
		"items":    items,
	}, nil
}

// DeleteLTILink removes a launch mapping.
func (s *Service) DeleteLTILink(ctx context.Context, courseID int64, resourceKey string) error {
	return s.store.DeleteLTILink(ctx, courseID, resourceKey)
}

func ltiLinkPayload(link store.LTILink) map[string]any {
	return map[string]any{
		"id":          link.ID,
		"courseId":    link.CourseID,
		"resourceKey": link.ResourceKey,
		"launchUrl":   link.LaunchURL,
		"createdAt":   link.CreatedAt.Format(time.RFC3339),
		"updatedAt":   link.UpdatedAt.Format(time.RFC3339),
	}
}

func declaredTags(bundle courseload.Bundle) []tagsync.Tag {
	tags := make([]tagsync.Tag, 0, len(bundle.Course.Data.Tags))
	for _, def := range bundle.Course.Data.Tags {
		tags = append(tags, tagsync.Tag{
			Name:        def.Name,
			Color:       def.Color,
			Description: def.Description,
		})
	}
	return tags
}

func sortedQuestionIDs(bundle courseload.Bundle) []string {
	ids := make([]string, 0, len(bundle.Questions))
	for workingID := range bundle.Questions {
		ids = append(ids, workingID)
	}
	sort.Strings(ids)
	return ids
}

func courseDir(base string, courseID int64) string {
	return filepath.Join(base, strconv.FormatInt(courseID, 10))
}
