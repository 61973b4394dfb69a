// Package ambulon is the embedding surface for the crawler locomotion
// platform: configure a run, evaluate episodes against a policy, and
// query or export the persisted results.
package ambulon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ambulon/internal/crawler"
	"ambulon/internal/model"
	"ambulon/internal/policy"
	"ambulon/internal/scape"
	"ambulon/internal/stats"
	"ambulon/internal/storage"
	"ambulon/internal/trace"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "ambulon.db"
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
}

type Client struct {
	store       storage.Store
	initialized bool

	benchmarksDir string
	exportsDir    string
}

type RunRequest struct {
	Variant       string
	Mode          string
	TargetSpeed   float64
	MaxSpeed      float64
	MaxJointForce float64
	Episodes      int
	Seed          uint64
	TraceDir      string

	// Agent overrides the built-in oscillator policy.
	Agent scape.StepAgent
}

type RunSummary struct {
	RunID           string
	ArtifactsDir    string
	RewardByEpisode []float64
	MeanReward      float64
	BestReward      float64
	GoalsReached    int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Variant      string
	Mode         string
	Policy       string
	Seed         uint64
	Episodes     int
	MeanReward   float64
	BestReward   float64
}

type EpisodesRequest struct {
	RunID  string
	Latest bool
}

type RewardHistoryRequest struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ScapeSummaryItem struct {
	Name        string
	Description string
	BestReward  float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureInit(ctx)
}

// ensureInit runs store initialization once per client; the memory
// backend resets its contents on Init.
func (c *Client) ensureInit(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	variant, err := crawler.ParseVariant(orDefault(req.Variant, crawler.VariantFixedTarget.String()))
	if err != nil {
		return RunSummary{}, err
	}
	mode := orDefault(req.Mode, "gt")
	if req.Episodes <= 0 {
		req.Episodes = 1
	}
	if req.Seed == 0 {
		req.Seed = 1
	}

	agent := req.Agent
	policyName := "custom"
	if agent == nil {
		agent = policy.NewOscillator()
		policyName = "oscillator"
	} else {
		policyName = agent.ID()
	}

	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()

	var stepLogger *trace.StepLogger
	if req.TraceDir != "" {
		stepLogger = trace.NewStepLogger(req.TraceDir, runID)
		defer stepLogger.Close()
	}

	rewards := make([]float64, 0, req.Episodes)
	episodes := make([]model.Episode, 0, req.Episodes)
	goals := 0

	for i := 0; i < req.Episodes; i++ {
		run := scape.CrawlerScape{
			Variant:       variant,
			TargetSpeed:   req.TargetSpeed,
			MaxSpeed:      req.MaxSpeed,
			MaxJointForce: req.MaxJointForce,
			Seed:          req.Seed + uint64(i),
			StepLogger:    stepLogger,
		}
		fitness, tr, err := run.EvaluateMode(ctx, agent, mode)
		if err != nil {
			return RunSummary{}, fmt.Errorf("episode %d: %w", i, err)
		}

		reward := float64(fitness)
		rewards = append(rewards, reward)

		episode := model.Episode{
			VersionedRecord: storage.Stamp(),
			RunID:           runID,
			Index:           i,
			Reward:          reward,
		}
		if v, ok := tr["steps"].(int); ok {
			episode.Steps = v
		}
		if v, ok := tr["target_speed"].(float64); ok {
			episode.TargetSpeed = v
		}
		if v, ok := tr["spawn_yaw_deg"].(float64); ok {
			episode.SpawnYawDeg = v
		}
		if v, ok := tr["final_speed_error"].(float64); ok {
			episode.FinalSpeedError = v
		}
		if v, ok := tr["termination_reason"].(string); ok {
			episode.TerminationReason = v
		}
		if v, ok := tr["goal_reached"].(bool); ok && v {
			episode.GoalReached = true
			goals++
		}
		episodes = append(episodes, episode)
	}

	summary := stats.Summarize(rewards)

	run := model.Run{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		Scape:           "crawler",
		Variant:         variant.String(),
		Mode:            mode,
		Policy:          policyName,
		Seed:            req.Seed,
		Episodes:        len(rewards),
		MeanReward:      summary.Mean,
		BestReward:      summary.Max,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveEpisodes(ctx, runID, episodes); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveRewardHistory(ctx, runID, rewards); err != nil {
		return RunSummary{}, err
	}
	if err := c.updateScapeSummary(ctx, summary.Max); err != nil {
		return RunSummary{}, err
	}

	maxForce := req.MaxJointForce
	if maxForce <= 0 {
		maxForce = 100.0
	}
	maxSpeed := req.MaxSpeed
	if maxSpeed <= 0 {
		maxSpeed = crawler.DefaultMaxSpeed
	}
	artifactsDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:         runID,
			Scape:         "crawler",
			Variant:       variant.String(),
			Mode:          mode,
			Policy:        policyName,
			Episodes:      len(rewards),
			TargetSpeed:   req.TargetSpeed,
			MaxSpeed:      maxSpeed,
			MaxJointForce: maxForce,
			Seed:          req.Seed,
			TraceDir:      req.TraceDir,
		},
		RewardHistory: rewards,
		Episodes:      episodes,
		RewardSummary: summary,
		BestReward:    summary.Max,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:        runID,
		Scape:        "crawler",
		Variant:      variant.String(),
		Mode:         mode,
		Policy:       policyName,
		Episodes:     len(rewards),
		Seed:         req.Seed,
		MeanReward:   summary.Mean,
		BestReward:   summary.Max,
		CreatedAtUTC: run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:           runID,
		ArtifactsDir:    artifactsDir,
		RewardByEpisode: rewards,
		MeanReward:      summary.Mean,
		BestReward:      summary.Max,
		GoalsReached:    goals,
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx, req.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		items = append(items, RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAtUTC,
			Variant:      run.Variant,
			Mode:         run.Mode,
			Policy:       run.Policy,
			Seed:         run.Seed,
			Episodes:     run.Episodes,
			MeanReward:   run.MeanReward,
			BestReward:   run.BestReward,
		})
	}
	return items, nil
}

func (c *Client) Episodes(ctx context.Context, req EpisodesRequest) ([]model.Episode, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	episodes, ok, err := c.store.GetEpisodes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no episodes for run %s", runID)
	}
	return episodes, nil
}

func (c *Client) RewardHistory(ctx context.Context, req RewardHistoryRequest) ([]float64, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetRewardHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no reward history for run %s", runID)
	}
	return history, nil
}

func (c *Client) ScapeSummary(ctx context.Context) (ScapeSummaryItem, error) {
	if err := c.ensureInit(ctx); err != nil {
		return ScapeSummaryItem{}, err
	}
	summary, ok, err := c.store.GetScapeSummary(ctx, "crawler")
	if err != nil {
		return ScapeSummaryItem{}, err
	}
	if !ok {
		return ScapeSummaryItem{}, errors.New("no scape summary recorded yet")
	}
	return ScapeSummaryItem{
		Name:        summary.Name,
		Description: summary.Description,
		BestReward:  summary.BestReward,
	}, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return ExportSummary{}, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}
	dir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, outDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: dir}, nil
}

func (c *Client) updateScapeSummary(ctx context.Context, best float64) error {
	summary, ok, err := c.store.GetScapeSummary(ctx, "crawler")
	if err != nil {
		return err
	}
	if !ok {
		summary = model.ScapeSummary{
			VersionedRecord: storage.Stamp(),
			Name:            "crawler",
			Description:     "multi-legged locomotion toward a target at a commanded speed",
			BestReward:      best,
		}
		return c.store.SaveScapeSummary(ctx, summary)
	}
	if best > summary.BestReward {
		summary.BestReward = best
		return c.store.SaveScapeSummary(ctx, summary)
	}
	return nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" {
		_, ok, err := c.store.GetRun(ctx, runID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("no run %s", runID)
		}
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id is required (or pass latest)")
	}
	runs, err := c.store.ListRuns(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs recorded yet")
	}
	return runs[0].ID, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
