package cmd

import (
	"fmt"

	"github.com/reviewgate/reviewgate/internal/adapter/outbound/memory"
	"github.com/reviewgate/reviewgate/internal/adapter/outbound/sqlite"
	"github.com/reviewgate/reviewgate/internal/config"
	"github.com/reviewgate/reviewgate/internal/domain/enforce"
	"github.com/reviewgate/reviewgate/internal/domain/project"
	"github.com/reviewgate/reviewgate/internal/domain/review"
	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

// stores bundles every outbound port an invocation needs, regardless of the
// configured backend.
type stores struct {
	workflows workflow.Store
	projects  project.Store
	affected  project.AffectedLookup
	reviews   review.Store
	changes   review.ChangeStore
	runs      review.TestRunStore
	groups    enforce.GroupChecker
	content   enforce.ContentComparer

	// sqlite is non-nil for the sqlite driver (seeding, health pings).
	sqlite *sqlite.Store

	close func() error
}

// openStores builds the store set for the configured storage driver.
func openStores(cfg *config.Config) (*stores, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		st, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return &stores{
			workflows: st,
			projects:  st,
			affected:  st,
			reviews:   st,
			changes:   st,
			runs:      st,
			groups:    st,
			content:   st,
			sqlite:    st,
			close:     st.Close,
		}, nil
	case "memory":
		workflows := memory.NewWorkflowStore()
		projects := memory.NewProjectStore()
		reviews := memory.NewReviewStore()
		return &stores{
			workflows: workflows,
			projects:  projects,
			affected:  projects,
			reviews:   reviews,
			changes:   reviews,
			runs:      reviews,
			groups:    memory.NewGroupStore(),
			content:   memory.NewContentStore(),
			close:     func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
