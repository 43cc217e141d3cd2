// Package journal is the cortex application service. It turns a thought
// into an analyzed session and answers every read over the archive:
// pattern, drift, tension map, timeline and report.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/analysis"
	"github.com/fyrsmithlabs/cortex/internal/events"
	"github.com/fyrsmithlabs/cortex/internal/logging"
	"github.com/fyrsmithlabs/cortex/internal/notes"
	"github.com/fyrsmithlabs/cortex/internal/reflection"
	"github.com/fyrsmithlabs/cortex/internal/secrets"
	"github.com/fyrsmithlabs/cortex/internal/session"
	"github.com/fyrsmithlabs/cortex/internal/storage"
	"github.com/fyrsmithlabs/cortex/internal/tension"
)

const instrumentationName = "github.com/fyrsmithlabs/cortex/internal/journal"

// MaxThoughtLength bounds a thought, in characters.
const MaxThoughtLength = 10000

// AccessKey holds the invite grant.
const AccessKey = "cortex_access"

const accessGranted = "granted"

var (
	// ErrEmptyThought is returned by Submit for blank text.
	ErrEmptyThought = errors.New("thought text is empty")
	// ErrThoughtTooLong is returned by Submit for text over MaxThoughtLength.
	ErrThoughtTooLong = fmt.Errorf("thought exceeds %d characters", MaxThoughtLength)
)

// Archive is the session store plus bulk import.
type Archive interface {
	session.Store
	Import(ctx context.Context, sessions []session.Session) (int, error)
}

// NoteStore keeps free-text notes per tension node.
type NoteStore interface {
	All(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, nodeID string) (string, error)
	Set(ctx context.Context, nodeID, note string) error
}

// Redactor strips secrets from text before analysis.
type Redactor interface {
	Redact(text string) secrets.Result
}

// Options wires a Service.
type Options struct {
	// Backend stores the access grant, and the notes when Notes is nil.
	Backend  storage.Backend
	Archive  Archive
	Notes    NoteStore
	Analyzer analysis.Analyzer
	// Redactor and Publisher are optional.
	Redactor  Redactor
	Publisher events.Publisher
	// ClusterThreshold is used when a request does not set one.
	ClusterThreshold int
	Logger           *zap.Logger
	Tracer           trace.Tracer
	Now              func() time.Time
}

// Service implements the journal operations.
type Service struct {
	backend   storage.Backend
	archive   Archive
	notes     NoteStore
	analyzer  analysis.Analyzer
	redactor  Redactor
	publisher events.Publisher
	threshold int
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService validates opts and fills defaults.
func NewService(opts Options) (*Service, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("storage backend is required")
	}
	if opts.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}

	s := &Service{
		backend:   opts.Backend,
		archive:   opts.Archive,
		notes:     opts.Notes,
		analyzer:  opts.Analyzer,
		redactor:  opts.Redactor,
		publisher: opts.Publisher,
		threshold: opts.ClusterThreshold,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		now:       opts.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.archive == nil {
		s.archive = session.NewArchive(opts.Backend, s.logger)
	}
	if s.notes == nil {
		s.notes = notes.NewStore(opts.Backend, s.logger)
	}
	if s.publisher == nil {
		s.publisher = events.NoopPublisher{}
	}
	if s.threshold < 1 {
		s.threshold = tension.DefaultClusterThreshold
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// SubmitResult is the stored session plus the per-thought analysis that is
// not persisted.
type SubmitResult struct {
	Session    session.Session     `json:"session"`
	Summary    string              `json:"summary"`
	Conflicts  []analysis.Conflict `json:"conflicts"`
	Graph      analysis.Graph      `json:"graph"`
	Redactions int                 `json:"redactions"`
}

// Submit analyzes text and archives the resulting session.
func (s *Service) Submit(ctx context.Context, text string) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "journal.Submit")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		thoughtsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyThought
	}
	if utf8.RuneCountInString(text) > MaxThoughtLength {
		thoughtsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrThoughtTooLong
	}

	redactions := 0
	if s.redactor != nil {
		res := s.redactor.Redact(text)
		text = res.Text
		redactions = res.Count()
		secretsRedacted.Add(float64(redactions))
	}
	span.SetAttributes(attribute.Int("thought.length", len(text)), attribute.Int("thought.redactions", redactions))

	payload, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		thoughtsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, fmt.Errorf("analyze thought: %w", err)
	}

	sess := session.Session{
		ID:          uuid.New().String(),
		CreatedAt:   s.now().UTC(),
		CoreTension: payload.CoreTension(session.DefaultCoreTension),
		Confidence:  payload.AnalysisConfidence(session.DefaultConfidence),
		Reflection:  payload.Summary(session.DefaultReflection),
	}
	if err := s.archive.Append(ctx, sess); err != nil {
		thoughtsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, fmt.Errorf("append session: %w", err)
	}

	thoughtsTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("session.id", sess.ID))

	ctx = logging.WithSessionID(ctx, sess.ID)
	s.logger.Info("session appended",
		append(logging.ContextFields(ctx),
			zap.String("core_tension", sess.CoreTension),
			zap.Float64("confidence", sess.Confidence),
			zap.Int("redactions", redactions),
		)...)
	s.publish(ctx, events.SessionAppended, sess)

	conflicts := payload.Analysis.Conflicts
	if conflicts == nil {
		conflicts = []analysis.Conflict{}
	}
	return &SubmitResult{
		Session:    sess,
		Summary:    sess.Reflection,
		Conflicts:  conflicts,
		Graph:      payload.Graph,
		Redactions: redactions,
	}, nil
}

// publish never fails the caller; the archive is the source of truth.
func (s *Service) publish(ctx context.Context, eventType string, data interface{}) {
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) load(ctx context.Context) ([]session.Session, error) {
	sessions, err := s.archive.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	archivedSessions.Set(float64(len(sessions)))
	return sessions, nil
}

// Sessions lists the archive newest first, or oldest first when
// chronological is set.
func (s *Service) Sessions(ctx context.Context, chronological bool) ([]session.Session, error) {
	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if chronological {
		return session.Chronological(sessions), nil
	}
	return sessions, nil
}

// Clear deletes every session.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.archive.Clear(ctx); err != nil {
		return fmt.Errorf("clear archive: %w", err)
	}
	archivedSessions.Set(0)
	s.logger.Info("archive cleared")
	s.publish(ctx, events.ArchiveCleared, nil)
	return nil
}

// ImportResult reports an archive import.
type ImportResult struct {
	Received int `json:"received"`
	Added    int `json:"added"`
}

// Import merges sessions exported elsewhere into the archive.
func (s *Service) Import(ctx context.Context, sessions []session.Session) (*ImportResult, error) {
	added, err := s.archive.Import(ctx, sessions)
	if err != nil {
		return nil, fmt.Errorf("import sessions: %w", err)
	}
	res := &ImportResult{Received: len(sessions), Added: added}
	sessionsImported.Add(float64(added))
	s.logger.Info("archive imported", zap.Int("received", res.Received), zap.Int("added", res.Added))
	if added > 0 {
		s.publish(ctx, events.ArchiveImported, res)
	}
	return res, nil
}

// Pattern returns the recurring core tension, if any.
func (s *Service) Pattern(ctx context.Context) (string, bool, error) {
	sessions, err := s.load(ctx)
	if err != nil {
		return "", false, err
	}
	label, ok := tension.DetectCoreTensionPattern(sessions)
	return label, ok, nil
}

// Drift compares early and recent sessions, if there are enough.
func (s *Service) Drift(ctx context.Context) (tension.Drift, bool, error) {
	sessions, err := s.load(ctx)
	if err != nil {
		return tension.Drift{}, false, err
	}
	d, ok := tension.DetectPatternDrift(sessions)
	return d, ok, nil
}

// MapOptions scopes a tension map.
type MapOptions struct {
	// Until keeps sessions created at or before it. Nil keeps all.
	Until *time.Time
	// Threshold overrides the configured cluster threshold when >= 1.
	Threshold int
}

// TensionMap is the graph over the archive.
type TensionMap struct {
	Until     *time.Time             `json:"until,omitempty"`
	Threshold int                    `json:"threshold"`
	Nodes     []tension.NodeActivity `json:"nodes"`
	Edges     []tension.Edge         `json:"edges"`
	Clusters  []tension.Cluster      `json:"clusters"`
}

// TensionMap builds nodes, edges and clusters.
func (s *Service) TensionMap(ctx context.Context, opts MapOptions) (*TensionMap, error) {
	ctx, span := s.tracer.Start(ctx, "journal.TensionMap")
	defer span.End()

	sessions, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if opts.Until != nil {
		sessions = tension.FilterByTime(sessions, *opts.Until)
	}
	threshold := opts.Threshold
	if threshold < 1 {
		threshold = s.threshold
	}

	nodes := tension.BuildNodes(sessions)
	edges := tension.BuildEdges(sessions)
	m := &TensionMap{
		Until:     opts.Until,
		Threshold: threshold,
		Nodes:     tension.AnnotateNodes(nodes, s.now()),
		Edges:     edges,
		Clusters:  tension.BuildClusters(nodes, edges, threshold),
	}
	span.SetAttributes(
		attribute.Int("map.sessions", len(sessions)),
		attribute.Int("map.nodes", len(m.Nodes)),
		attribute.Int("map.edges", len(m.Edges)),
	)
	return m, nil
}

// Timeline places every session between the archive origin and now.
func (s *Service) Timeline(ctx context.Context) (tension.Timeline, error) {
	sessions, err := s.load(ctx)
	if err != nil {
		return tension.Timeline{}, err
	}
	return tension.BuildTimeline(sessions, s.now()), nil
}

// Report builds a tension report.
func (s *Service) Report(ctx context.Context, opts reflection.ReportOptions) (*reflection.TensionReport, error) {
	ctx, span := s.tracer.Start(ctx, "journal.Report")
	defer span.End()

	if opts.Threshold < 1 {
		opts.Threshold = s.threshold
	}
	report, err := reflection.NewReporter(s.archive, reflection.WithClock(s.now)).Generate(ctx, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return report, nil
}

// Note returns the note for a tension node, or "".
func (s *Service) Note(ctx context.Context, nodeID string) (string, error) {
	return s.notes.Get(ctx, nodeID)
}

// SetNote stores a note; a blank note deletes it.
func (s *Service) SetNote(ctx context.Context, nodeID, note string) error {
	return s.notes.Set(ctx, nodeID, note)
}

// RedeemInvite redeems code with the analysis service and records the
// grant.
func (s *Service) RedeemInvite(ctx context.Context, code string) error {
	if err := s.analyzer.RedeemInvite(ctx, code); err != nil {
		return err
	}
	if err := s.backend.Put(ctx, AccessKey, []byte(accessGranted)); err != nil {
		return fmt.Errorf("store access grant: %w", err)
	}
	s.logger.Info("invite redeemed")
	return nil
}

// HasAccess reports whether an invite has been redeemed.
func (s *Service) HasAccess(ctx context.Context) (bool, error) {
	v, err := s.backend.Get(ctx, AccessKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read access grant: %w", err)
	}
	return string(v) == accessGranted, nil
}

// Status summarizes the journal.
type Status struct {
	Sessions int    `json:"sessions"`
	Tensions int    `json:"tensions"`
	Access   bool   `json:"access"`
	Pattern  string `json:"pattern,omitempty"`
}

// Status returns archive counts, the access grant and the current pattern.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	access, err := s.HasAccess(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Sessions: len(sessions),
		Tensions: len(tension.BuildNodes(sessions)),
		Access:   access,
	}
	if label, ok := tension.DetectCoreTensionPattern(sessions); ok {
		st.Pattern = label
	}
	return st, nil
}
