package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/refill"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scraper"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/events"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// Stage names carried on progress events.
const (
	StagePropose  = "propose"
	StageLocate   = "locate"
	StageCatalog  = "catalog"
	StageGenerate = "generate"
)

// RefillRunner drives the audit and replacement rounds.
type RefillRunner interface {
	Run(ctx context.Context, plan refill.Plan, initial []models.Candidate, sink events.Sink) (refill.Outcome, error)
}

// BatchRunner generates catalog records.
type BatchRunner interface {
	Run(ctx context.Context, ids []string) models.BatchRunReport
}

// Pipeline is the end-to-end run: propose an area, verify its spots, store
// it and generate it.
type Pipeline struct {
	Proposer  domain.Proposer
	Locator   scraper.Locator // optional; without it the distance rule is skipped
	Refill    RefillRunner
	Catalog   domain.CatalogRepository
	Scheduler BatchRunner
	Log       *logging.Logger
}

func (p *Pipeline) Execute(ctx context.Context, req Request, em *events.Emitter) (string, error) {
	log := p.Log
	if log == nil {
		log = logging.Nop()
	}
	clog := log.WithComponent("pipeline").Ctx(ctx)

	em.Log(StagePropose, fmt.Sprintf("🤖 1. エリア案を作成中... (地名: %s / テーマ: %s)", orAuto(req.Location), orAuto(req.Theme)))
	area, err := p.Proposer.Propose(ctx, domain.ProposalRequest{Location: req.Location, Theme: req.Theme, Custom: req.Custom})
	if err != nil {
		return "", &StageError{Stage: StagePropose, Err: err}
	}
	em.Log(StagePropose, fmt.Sprintf("✅ 「%s」(%s) の候補 %d件: %s", area.Title, area.Area, len(area.Spots), candidateNames(area.Spots)))

	center := p.locate(ctx, area.Area, em, clog)
	area.Center = center

	em.Log(refill.StageAudit, "🔍 2. スポットの実在確認を開始...")
	theme := area.CategoryFocus
	if theme == "" {
		theme = req.Theme
	}
	out, err := p.Refill.Run(ctx, refill.Plan{Area: area.Area, Theme: theme, Center: center}, area.Spots, em)
	if err != nil {
		return "", &StageError{Stage: refill.StageAudit, Err: err}
	}
	area.Spots = make([]models.Candidate, len(out.Approved))
	for i, v := range out.Approved {
		area.Spots[i] = v.Candidate
	}
	em.Log(refill.StageAudit, fmt.Sprintf("✅ 監査完了！ 合格スポット: %s", candidateNames(area.Spots)))

	em.Log(StageCatalog, "📝 3. カタログに登録中...")
	stored, err := p.Catalog.Append(area)
	if err != nil {
		return "", &StageError{Stage: StageCatalog, Err: err}
	}
	em.Log(StageCatalog, fmt.Sprintf("✅ ID %s (%s) で登録しました", stored.ID, stored.Folder))

	em.Log(StageGenerate, fmt.Sprintf("🚀 4. スライド生成を開始します（ID: %s）...", stored.ID))
	report := p.Scheduler.Run(ctx, []string{stored.ID})
	if len(report.Jobs) == 0 {
		return "", &StageError{Stage: StageGenerate, Err: fmt.Errorf("no job ran for %s", stored.ID)}
	}
	job := report.Jobs[0]
	if job.Status != models.JobSuccess {
		return "", &StageError{Stage: StageGenerate, Err: jobError(job)}
	}
	if report.GalleryErr != "" {
		em.Emit(events.Progress{Type: events.TypeLog, Stage: events.StageWarning, Message: "gallery not rebuilt: " + report.GalleryErr})
	}

	msg := fmt.Sprintf("🎉 %s の生成が完了しました", stored.Area)
	if job.Result != nil && job.Result.Slides > 0 {
		msg = fmt.Sprintf("🎉 %s の生成が完了しました（%d枚）", stored.Area, job.Result.Slides)
	}
	if report.Published {
		msg += "。ギャラリーに公開済み"
	}
	return msg, nil
}

// locate finds the area center. Failure only disables the distance rule.
func (p *Pipeline) locate(ctx context.Context, area string, em *events.Emitter, clog *logging.ContextLogger) *geography.Coordinates {
	if p.Locator == nil {
		return nil
	}
	c, err := p.Locator.Locate(ctx, area)
	if err != nil {
		clog.Warn("area center unknown, distance check disabled", logging.String("area", area), logging.Error(err))
		em.Log(StageLocate, "⚠️ エリアの中心座標が取得できないため距離チェックを省略します")
		return nil
	}
	em.Log(StageLocate, fmt.Sprintf("📍 エリア中心: %.4f, %.4f", c.Lat, c.Lng))
	return c
}

func jobError(js models.JobStatus) error {
	if js.Result != nil && js.Result.Error != "" {
		return fmt.Errorf("generation of %s failed: %s", js.ID, js.Result.Error)
	}
	if js.ExitCode != nil {
		return fmt.Errorf("generation of %s exited with code %d", js.ID, *js.ExitCode)
	}
	return fmt.Errorf("generation of %s failed", js.ID)
}

func candidateNames(cs []models.Candidate) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return strings.Join(names, "、")
}

func orAuto(s string) string {
	if strings.TrimSpace(s) == "" {
		return "おまかせ"
	}
	return s
}
