// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deploycmd

import (
	"strings"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/schollz/progressbar/v3"

	"github.com/luxfi/dexstack/cmd/registrycmd"
	"github.com/luxfi/dexstack/pkg/dexplan"
	"github.com/luxfi/dexstack/pkg/models"
	"github.com/luxfi/dexstack/pkg/pipeline"
	"github.com/luxfi/dexstack/pkg/pricemath"
	"github.com/luxfi/dexstack/pkg/ux"
)

func printSummary(profile models.NetworkProfile, deployer common.Address, params dexplan.Params, plan dexplan.Plan) {
	ux.Logger.PrintLineSeparator()
	ux.Logger.PrintToUser("Network:      %s", profile)
	ux.Logger.PrintToUser("RPC:          %s", profile.RPCURL)
	ux.Logger.PrintToUser("Deployer:     %s", deployer.Hex())
	ux.Logger.PrintToUser("Token owner:  %s", params.TokenOwner.Hex())
	ux.Logger.PrintToUser("Active tags:  %s", strings.Join(profile.ActiveTags, ","))
	ux.Logger.PrintToUser("Price:        %s (sqrtPriceX96 %s, tick %d, spacing %d)",
		pricemath.FormatPrice(plan.Price.Price, 6), plan.Price.SqrtPriceX96, plan.Price.Tick, plan.Price.TickSpacing)
	ux.Logger.PrintLineSeparator()
}

// progress advances a bar as steps reach a terminal state.
type progress struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgress(steps []pipeline.Step, profile models.NetworkProfile) *progress {
	total := 0
	for _, st := range steps {
		if profile.TagsActive(st.Tags) {
			total++
		}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ux.Logger.Writer()),
		progressbar.OptionSetDescription("deploying"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &progress{bar: bar}
}

func (p *progress) observe(t pipeline.Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch t.To {
	case pipeline.StepSubmitting:
		p.bar.Describe(t.StepID)
	case pipeline.StepCompleted, pipeline.StepSkipped, pipeline.StepFailed:
		_ = p.bar.Add(1)
	}
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

func printReport(report *pipeline.Report) error {
	rows := make([][]string, 0, len(report.Steps))
	for _, s := range report.Steps {
		addr, tx := "", ""
		if s.Address != (common.Address{}) {
			addr = s.Address.Hex()
		}
		if s.TxHash != (common.Hash{}) {
			tx = s.TxHash.Hex()
		}
		rows = append(rows, []string{
			s.StepID,
			s.Action.String(),
			s.Status.String(),
			s.Artifact,
			addr,
			tx,
			s.Duration.Round(time.Millisecond).String(),
		})
	}
	ux.Logger.PrintToUser("Run %s on %s: %s", report.RunID, report.Network, report.Status)
	return ux.RenderTable(ux.Logger.Writer(),
		[]string{"Step", "Action", "Status", "Artifact", "Address", "Tx", "Time"}, rows)
}

func printFailure(report *pipeline.Report) {
	if report.FailedStep != "" {
		ux.Logger.RedXToUser("Step %s failed (%s): %v", report.FailedStep, report.Kind, report.Err)
	} else {
		ux.Logger.RedXToUser("Deployment stopped (%s): %v", report.Kind, report.Err)
	}
	ux.Logger.PrintToUser("Registry state after the failure:")
	if err := registrycmd.PrintArtifacts(ux.Logger.Writer(), report.Registry); err != nil {
		ux.Logger.PrintError("%v", err)
	}
	if report.Kind != pipeline.KindInvalidPlan && report.Kind != pipeline.KindCyclicDependency {
		ux.Logger.PrintToUser("Re-run the same command to resume; %d recorded artifacts will be skipped.", len(report.Registry.Artifacts))
	}
}
