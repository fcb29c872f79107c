// Package publish mirrors completed lens summaries into a Notion database.
// Each (project, template) summary owns one page, found by its Key property.
package publish

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/store"
	"github.com/sells-group/lens-cli/pkg/notion"
)

// Database property names.
const (
	PropName       = "Name"
	PropKey        = "Key"
	PropProject    = "Project"
	PropTemplate   = "Template"
	PropStatus     = "Status"
	PropInterviews = "Interviews"
	PropConfidence = "Confidence"
	PropSummary    = "Executive Summary"
	PropTakeaways  = "Key Takeaways"
	PropActions    = "Recommendations"
	PropUpdated    = "Last Synthesized"
)

// Reader is the slice of the store a publish reads.
type Reader interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListLensSummaries(ctx context.Context, projectID string) ([]model.LensSummary, error)
}

// Result counts what a publish did.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Publisher writes summaries to one Notion database.
type Publisher struct {
	client  notion.Client
	dbID    string
	catalog *lens.Catalog
}

// NewPublisher creates a Publisher. catalog supplies template display names
// and may be nil.
func NewPublisher(c notion.Client, dbID string, catalog *lens.Catalog) *Publisher {
	return &Publisher{client: c, dbID: dbID, catalog: catalog}
}

// Key is the Notion-side identity of a summary.
func Key(s model.LensSummary) string {
	return s.ProjectID + "/" + s.TemplateKey
}

// PublishProject publishes every completed summary of projectID.
func (p *Publisher) PublishProject(ctx context.Context, r Reader, projectID string) (*Result, error) {
	if err := model.Required("project_id", projectID); err != nil {
		return nil, err
	}
	project, err := r.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, model.NewInputError("project_id", "project %s not found", projectID)
		}
		return nil, eris.Wrap(err, "publish: get project")
	}
	summaries, err := r.ListLensSummaries(ctx, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "publish: list summaries")
	}
	return p.Publish(ctx, project.Name, summaries)
}

// Publish upserts each completed summary. Summaries in any other status are
// skipped so a failed or in-flight synthesis never overwrites a good page.
func (p *Publisher) Publish(ctx context.Context, projectName string, summaries []model.LensSummary) (*Result, error) {
	res := &Result{}
	for _, s := range summaries {
		log := zap.L().With(zap.String("project_id", s.ProjectID), zap.String("template_key", s.TemplateKey))
		if s.Status != model.SummaryStatusCompleted {
			res.Skipped++
			log.Debug("publish: skipping summary", zap.String("status", string(s.Status)))
			continue
		}

		key := Key(s)
		page, err := notion.FindByText(ctx, p.client, p.dbID, PropKey, key)
		if err != nil {
			return res, eris.Wrapf(err, "publish: find page %s", key)
		}

		props := p.properties(projectName, s)
		if page == nil {
			_, err = p.client.CreatePage(ctx, &notionapi.PageCreateRequest{
				Parent: notionapi.Parent{
					Type:       notionapi.ParentTypeDatabaseID,
					DatabaseID: notionapi.DatabaseID(p.dbID),
				},
				Properties: props,
			})
			if err != nil {
				return res, eris.Wrapf(err, "publish: create page %s", key)
			}
			res.Created++
			log.Info("publish: page created")
			continue
		}

		if _, err := p.client.UpdatePage(ctx, string(page.ID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
			return res, eris.Wrapf(err, "publish: update page %s", key)
		}
		res.Updated++
		log.Info("publish: page updated", zap.String("page_id", string(page.ID)))
	}
	return res, nil
}

func (p *Publisher) properties(projectName string, s model.LensSummary) notionapi.Properties {
	label := p.templateName(s.TemplateKey)
	title := label
	if projectName != "" {
		title = projectName + " · " + label
	}

	props := notionapi.Properties{
		PropName:       notionapi.TitleProperty{Title: notion.Text(title)},
		PropKey:        notionapi.RichTextProperty{RichText: notion.Text(Key(s))},
		PropProject:    notionapi.RichTextProperty{RichText: notion.Text(projectName)},
		PropTemplate:   notionapi.SelectProperty{Select: notionapi.Option{Name: s.TemplateKey}},
		PropStatus:     notionapi.SelectProperty{Select: notionapi.Option{Name: string(s.Status)}},
		PropInterviews: notionapi.NumberProperty{Number: float64(s.InterviewCount)},
		PropConfidence: notionapi.NumberProperty{Number: s.OverallConfidence},
		PropSummary:    notionapi.RichTextProperty{RichText: notion.Text(s.ExecutiveSummary)},
		PropTakeaways:  notionapi.RichTextProperty{RichText: notion.Text(bullets(s.KeyTakeaways))},
		PropActions:    notionapi.RichTextProperty{RichText: notion.Text(bullets(s.Recommendations))},
	}
	if s.ProcessedAt != nil {
		d := notionapi.Date(s.ProcessedAt.UTC().Truncate(time.Second))
		props[PropUpdated] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
	}
	return props
}

func (p *Publisher) templateName(key string) string {
	if key == model.CrossLensKey {
		return "Cross-Lens Summary"
	}
	if p.catalog != nil {
		return p.catalog.Name(key)
	}
	return key
}

func bullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "• " + strings.Join(items, "\n• ")
}
