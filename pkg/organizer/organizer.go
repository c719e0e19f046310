// Package organizer runs organization jobs: it loads documents from a
// storage.Engine, clusters their embeddings, maps clusters to shelf/folder
// locations and optionally writes the new locations back.
//
// Two clustering strategies are available:
//   - communities: similarity graph (pkg/simgraph) + community detection
//     (pkg/community); the number of clusters follows the data
//   - kmeans: k-means over raw embeddings (pkg/kmeans); k is fixed up front
//
// Usage:
//
//	org := organizer.New(engine, logger)
//	report, err := org.Suggest(ctx, organizer.RequestFromConfig(cfg.Organize))
//	if err != nil {
//		return err
//	}
//	applied, err := org.Apply(ctx, report.Suggestions)
//
// Suggest holds no state between calls, so concurrent jobs over the same
// engine need no coordination. Cancellation is honored between stages; a
// clustering stage that has started runs to completion.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/shelfsort/pkg/community"
	"github.com/orneryd/shelfsort/pkg/config"
	"github.com/orneryd/shelfsort/pkg/kmeans"
	"github.com/orneryd/shelfsort/pkg/logging"
	"github.com/orneryd/shelfsort/pkg/organize"
	"github.com/orneryd/shelfsort/pkg/simgraph"
	"github.com/orneryd/shelfsort/pkg/storage"
)

// Errors
var (
	ErrUnknownStrategy = errors.New("organizer: unknown strategy")
)

// Stages reported through ProgressFunc.
const (
	StageLoad    = "load"
	StageCluster = "cluster"
	StagePlan    = "plan"
	StageApply   = "apply"
	StageDone    = "done"
)

// Progress is a status update for a running job.
type Progress struct {
	JobID   string
	Stage   string
	Percent int
	Message string
}

// ProgressFunc receives progress updates. It is called synchronously from
// the job and must not block.
type ProgressFunc func(Progress)

// Request configures one organization job.
type Request struct {
	// Strategy is config.StrategyCommunities or config.StrategyKMeans.
	Strategy string

	// SimilarityThreshold is the minimum cosine similarity for a graph edge.
	SimilarityThreshold float64

	// Policy bounds the shelf/folder space.
	Policy organize.Policy

	// K is the k-means cluster count. Zero picks min(documents,
	// Policy.Capacity()), so each cluster gets a location of its own.
	K    int
	Seed int64

	KMeansMaxIterations    int
	CommunityMaxIterations int

	// Workers bounds similarity graph parallelism.
	Workers int

	// Progress receives stage updates. Optional.
	Progress ProgressFunc
}

// RequestFromConfig builds a request from the organize section of the config.
func RequestFromConfig(cfg config.OrganizeConfig) Request {
	return Request{
		Strategy:               cfg.Strategy,
		SimilarityThreshold:    cfg.SimilarityThreshold,
		Policy:                 organize.Policy{MaxShelves: cfg.MaxShelves, MaxFolders: cfg.MaxFolders},
		K:                      cfg.K,
		Seed:                   cfg.Seed,
		KMeansMaxIterations:    cfg.KMeansMaxIterations,
		CommunityMaxIterations: cfg.CommunityMaxIterations,
		Workers:                cfg.Workers,
	}
}

// Cluster is one named group of documents and the location it maps to.
type Cluster struct {
	Name     string
	Location organize.Location
	Members  []string
}

// Report is the outcome of Suggest.
type Report struct {
	JobID    string
	Strategy string

	// Documents is the number of stored documents considered.
	Documents int

	// Skipped lists ids of documents without a usable embedding.
	Skipped []string

	Clusters    []Cluster
	Suggestions []organize.Suggestion

	// Changed counts suggestions that would move a document.
	Changed int

	Iterations int
	Converged  bool

	// Edges and Modularity are set by the communities strategy.
	Edges      int
	Modularity float64

	Duration time.Duration
}

// ChangedSuggestions returns only the suggestions that move a document.
func (r *Report) ChangedSuggestions() []organize.Suggestion {
	return organize.FilterChanged(r.Suggestions)
}

// Organizer runs organization jobs against a document store.
type Organizer struct {
	engine storage.Engine
	logger *logging.Logger
}

// New creates an Organizer. A nil logger discards output.
func New(engine storage.Engine, logger *logging.Logger) *Organizer {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Organizer{engine: engine, logger: logger}
}

// job carries per-call state so concurrent Suggest calls share nothing.
type job struct {
	id       string
	progress ProgressFunc
}

func (j *job) report(stage string, percent int, format string, args ...any) {
	if j.progress == nil {
		return
	}
	j.progress(Progress{
		JobID:   j.id,
		Stage:   stage,
		Percent: percent,
		Message: fmt.Sprintf(format, args...),
	})
}

// clustering is the strategy-independent result of the cluster stage.
type clustering struct {
	// assignments maps document id to a dense cluster index.
	assignments map[string]int
	names       []string
	members     [][]string
	iterations  int
	converged   bool
	edges       int
	modularity  float64
}

// Suggest computes location suggestions for every stored document with a
// usable embedding. Nothing is written to the engine.
func (o *Organizer) Suggest(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	j := &job{id: uuid.NewString(), progress: req.Progress}
	log := o.logger.WithJob(j.id).WithStrategy(req.Strategy)

	if err := req.Policy.Validate(); err != nil {
		return nil, err
	}
	if req.Strategy != config.StrategyCommunities && req.Strategy != config.StrategyKMeans {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, req.Strategy)
	}

	j.report(StageLoad, 0, "loading documents")
	docs, err := o.engine.AllDocuments()
	if err != nil {
		log.LogRun(ctx, 0, 0, 0, time.Since(start), err)
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	report := &Report{
		JobID:     j.id,
		Strategy:  req.Strategy,
		Documents: len(docs),
	}

	var (
		ids     []string
		vectors [][]float32
		items   []simgraph.Item
	)
	for _, d := range docs {
		vec, ok := d.Embedding.Vector()
		if !ok {
			report.Skipped = append(report.Skipped, d.ID)
			continue
		}
		ids = append(ids, d.ID)
		vectors = append(vectors, vec)
		items = append(items, simgraph.Item{ID: d.ID, Vector: vec, Label: d.Name})
	}
	j.report(StageLoad, 10, "%d documents, %d with embeddings", len(docs), len(ids))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *clustering
	if len(ids) > 0 {
		j.report(StageCluster, 20, "clustering %d documents", len(ids))
		if req.Strategy == config.StrategyKMeans {
			result, err = clusterKMeans(ids, vectors, req)
		} else {
			result, err = clusterCommunities(ctx, items, req)
		}
		if err != nil {
			log.LogRun(ctx, len(docs), 0, 0, time.Since(start), err)
			return nil, err
		}
		report.Iterations = result.iterations
		report.Converged = result.converged
		report.Edges = result.edges
		report.Modularity = result.modularity
		j.report(StageCluster, 80, "%d clusters after %d iterations", len(result.names), result.iterations)
	} else {
		result = &clustering{assignments: map[string]int{}, converged: true}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.report(StagePlan, 90, "planning locations")
	planned := make([]organize.Document, len(docs))
	for i, d := range docs {
		planned[i] = d.PlannerDocument()
	}
	report.Suggestions, err = organize.Plan(planned, result.assignments, req.Policy)
	if err != nil {
		return nil, err
	}
	report.Changed = len(organize.FilterChanged(report.Suggestions))

	for c, name := range result.names {
		report.Clusters = append(report.Clusters, Cluster{
			Name:     name,
			Location: req.Policy.LocationFor(c),
			Members:  result.members[c],
		})
	}

	report.Duration = time.Since(start)
	j.report(StageDone, 100, "%d of %d documents would move", report.Changed, len(report.Suggestions))
	log.LogRun(ctx, len(docs), len(report.Clusters), report.Changed, report.Duration, nil)
	return report, nil
}

func clusterCommunities(ctx context.Context, items []simgraph.Item, req Request) (*clustering, error) {
	graph, err := simgraph.Build(ctx, items, simgraph.Options{
		Threshold: req.SimilarityThreshold,
		Workers:   req.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build similarity graph: %w", err)
	}

	res, err := community.Detect(graph, community.Options{MaxIterations: req.CommunityMaxIterations})
	if err != nil {
		return nil, fmt.Errorf("community detection failed: %w", err)
	}

	clusters := community.Group(graph, res.Partition)
	out := &clustering{
		assignments: community.Assignments(clusters),
		names:       make([]string, len(clusters)),
		members:     make([][]string, len(clusters)),
		iterations:  res.Iterations,
		converged:   res.Converged,
		edges:       graph.EdgeCount(),
		modularity:  community.Modularity(graph, res.Partition),
	}
	for i, c := range clusters {
		out.names[i] = c.Name
		out.members[i] = c.Members
	}
	return out, nil
}

func clusterKMeans(ids []string, vectors [][]float32, req Request) (*clustering, error) {
	k := req.K
	if k == 0 {
		k = min(len(vectors), req.Policy.Capacity())
	}

	model, err := kmeans.Run(vectors, kmeans.Config{
		K:             k,
		MaxIterations: req.KMeansMaxIterations,
		Seed:          req.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("k-means failed: %w", err)
	}

	out := &clustering{
		assignments: make(map[string]int, len(ids)),
		iterations:  model.Iterations,
		converged:   model.Converged,
	}

	// Number non-empty clusters densely in centroid order.
	sizes := model.Stats().Sizes
	dense := make(map[int]int)
	for c := 0; c < k; c++ {
		if sizes[c] == 0 {
			continue
		}
		members := model.Members(c)
		dense[c] = len(out.names)
		out.names = append(out.names, fmt.Sprintf("Cluster %d", len(out.names)+1))
		memberIDs := make([]string, len(members))
		for i, p := range members {
			memberIDs[i] = ids[p]
		}
		out.members = append(out.members, memberIDs)
	}
	for p, c := range model.Assignments {
		out.assignments[ids[p]] = dense[c]
	}
	return out, nil
}

// ApplyResult summarizes an Apply call.
type ApplyResult struct {
	Applied int
	Skipped int
	Failed  int
}

// Apply persists the suggested location of every changed suggestion.
// Unchanged suggestions are skipped. Failures do not stop the remaining
// updates; they are joined into the returned error. Cancellation stops
// between updates.
func (o *Organizer) Apply(ctx context.Context, suggestions []organize.Suggestion) (ApplyResult, error) {
	var (
		result ApplyResult
		errs   []error
	)

	for _, s := range suggestions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !s.Changed() {
			result.Skipped++
			continue
		}
		if err := o.engine.UpdateLocation(s.DocumentID, s.Suggested); err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("document %s: %w", s.DocumentID, err))
			continue
		}
		result.Applied++
	}

	o.logger.LogApply(ctx, result.Applied, result.Failed)
	return result, errors.Join(errs...)
}

// Run performs Suggest and, when apply is true, Apply on the changed
// suggestions.
func (o *Organizer) Run(ctx context.Context, req Request, apply bool) (*Report, ApplyResult, error) {
	report, err := o.Suggest(ctx, req)
	if err != nil {
		return nil, ApplyResult{}, err
	}
	if !apply {
		return report, ApplyResult{}, nil
	}

	if req.Progress != nil {
		req.Progress(Progress{JobID: report.JobID, Stage: StageApply, Percent: 100,
			Message: fmt.Sprintf("applying %d moves", report.Changed)})
	}
	result, err := o.Apply(ctx, report.ChangedSuggestions())
	return report, result, err
}
