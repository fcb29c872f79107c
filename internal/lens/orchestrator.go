package lens

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/store"
)

// DefaultLensKeys is the platform fallback lens set.
var DefaultLensKeys = []string{KindSalesBANT, KindCustomerDiscovery}

// Applier applies a single lens.
type Applier interface {
	Apply(ctx context.Context, req ApplyRequest, progress ProgressFunc) (*ApplyResult, error)
}

// settingsReader is the slice of store.Store lens set resolution needs.
type settingsReader interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	GetAccountSettings(ctx context.Context, accountID string) (*model.AccountSettings, error)
}

// ResolveLensSet picks the lenses to apply: the override when non-empty,
// else the project's enabled_lenses, else the account's default_lens_keys,
// else platformDefaults. Missing project or settings rows fall through.
func ResolveLensSet(ctx context.Context, st settingsReader, projectID, accountID string, override, platformDefaults []string) ([]string, error) {
	if keys := dedupe(override); len(keys) > 0 {
		return keys, nil
	}
	if projectID != "" {
		p, err := st.GetProject(ctx, projectID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrap(err, "lens: get project")
		}
		if p != nil {
			if keys := dedupe(p.EnabledLenses); len(keys) > 0 {
				return keys, nil
			}
		}
	}
	if accountID != "" {
		s, err := st.GetAccountSettings(ctx, accountID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrap(err, "lens: get account settings")
		}
		if s != nil {
			if keys := dedupe(s.DefaultLensKeys); len(keys) > 0 {
				return keys, nil
			}
		}
	}
	if keys := dedupe(platformDefaults); len(keys) > 0 {
		return keys, nil
	}
	return append([]string(nil), DefaultLensKeys...), nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// ApplyAllRequest applies a lens set to one interview.
type ApplyAllRequest struct {
	InterviewID string `json:"interview_id"`
	AccountID   string `json:"account_id"`
	ProjectID   string `json:"project_id,omitempty"`
	// TemplateKeys overrides the configured lens set.
	TemplateKeys       []string `json:"template_keys,omitempty"`
	CustomInstructions string   `json:"custom_instructions,omitempty"`
	ProcessedBy        string   `json:"processed_by,omitempty"`
}

// ApplyAllResult lists the per-lens outcome in lens order.
type ApplyAllResult struct {
	InterviewID string        `json:"interview_id"`
	Results     []ApplyResult `json:"results"`
	Succeeded   int           `json:"succeeded"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
}

// Tally counts Results. A result with an error failed; one that neither
// errored nor succeeded was skipped without writing a row (an inactive
// template). Private-interview skips store a row and count as succeeded.
func (r *ApplyAllResult) Tally() {
	r.Succeeded, r.Skipped, r.Failed = 0, 0, 0
	for _, res := range r.Results {
		switch {
		case res.Error != "":
			r.Failed++
		case !res.Success:
			r.Skipped++
		default:
			r.Succeeded++
		}
	}
}

// Orchestrator applies a lens set with bounded concurrency.
type Orchestrator struct {
	store            store.Store
	applier          Applier
	platformDefaults []string
	maxInFlight      int
}

// NewOrchestrator creates an Orchestrator. maxInFlight below 1 means 1.
func NewOrchestrator(st store.Store, applier Applier, platformDefaults []string, maxInFlight int) *Orchestrator {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Orchestrator{store: st, applier: applier, platformDefaults: platformDefaults, maxInFlight: maxInFlight}
}

// ApplyAll resolves the lens set and applies every lens. A failing lens is
// recorded in its result slot and does not stop the others.
func (o *Orchestrator) ApplyAll(ctx context.Context, req ApplyAllRequest, progress ProgressFunc) (*ApplyAllResult, error) {
	if err := model.Required("interview_id", req.InterviewID); err != nil {
		return nil, err
	}
	if err := model.Required("account_id", req.AccountID); err != nil {
		return nil, err
	}

	keys, err := ResolveLensSet(ctx, o.store, req.ProjectID, req.AccountID, req.TemplateKeys, o.platformDefaults)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("interview_id", req.InterviewID), zap.Strings("lenses", keys))
	log.Info("lens: applying lens set", zap.Int("max_in_flight", o.maxInFlight))

	results := make([]ApplyResult, len(keys))
	var (
		mu        sync.Mutex
		completed int
	)
	report := func(current string) {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		progress(Progress{
			Completed:   completed,
			Total:       len(keys),
			CurrentLens: current,
			Percent:     completed * 100 / len(keys),
		})
	}

	g := new(errgroup.Group)
	g.SetLimit(o.maxInFlight)
	for i, key := range keys {
		// Lens failures land in results[i]; a non-nil return means the set
		// itself cannot continue.
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = ApplyResult{TemplateKey: key, Error: ctx.Err().Error()}
				return nil
			}
			report(key)
			res, err := o.applier.Apply(ctx, ApplyRequest{
				InterviewID:        req.InterviewID,
				TemplateKey:        key,
				AccountID:          req.AccountID,
				ProjectID:          req.ProjectID,
				CustomInstructions: req.CustomInstructions,
				ProcessedBy:        req.ProcessedBy,
			}, nil)
			if err != nil {
				log.Error("lens: lens failed", zap.String("template_key", key), zap.Error(err))
				results[i] = ApplyResult{TemplateKey: key, Error: err.Error()}
			} else {
				results[i] = *res
			}
			mu.Lock()
			completed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "lens: apply lens set")
	}
	report("")

	out := &ApplyAllResult{InterviewID: req.InterviewID, Results: results}
	out.Tally()
	log.Info("lens: lens set applied",
		zap.Int("succeeded", out.Succeeded),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}
