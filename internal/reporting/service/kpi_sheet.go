package service

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/reporting/domain"
	"go.uber.org/zap"
)

const sheetTimeLayout = "2006-01-02 15:04 MST"

// KPISheet renders the KPI snapshot as a printable PDF. Access is the same as
// KPIs.
func (s *Service) KPISheet(ctx context.Context, rc authorization.RoleContext) ([]byte, error) {
	kpis, err := s.KPIs(ctx, rc)
	if err != nil {
		return nil, err
	}
	out, err := renderKPISheet(kpis)
	if err != nil {
		s.log.Error("render kpi sheet", zap.Error(err))
		return nil, err
	}
	return out, nil
}

func renderKPISheet(k *domain.KPIs) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Yard KPIs", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Generated "+k.GeneratedAt.UTC().Format(sheetTimeLayout), props.Text{
			Size:  8,
			Align: align.Right,
			Top:   4,
		}),
	)

	figures := []struct {
		label string
		value int64
	}{
		{"Containers", k.TotalContainers},
		{"Containers in yard", k.ContainersInYard},
		{"Tasks", k.TotalTasks},
		{"Pending tasks", k.PendingTasks},
		{"Vessel visits", k.TotalVisits},
		{"Visits at berth", k.VisitsAtBerth},
	}
	for _, f := range figures {
		m.AddRow(8,
			text.NewCol(8, f.label, props.Text{Size: 10}),
			text.NewCol(4, fmt.Sprintf("%d", f.value), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		)
	}

	m.AddRow(15,
		text.NewCol(12, "Recent vessel visits", props.Text{Size: 14, Style: fontstyle.Bold, Top: 6}),
	)
	m.AddRow(8,
		text.NewCol(4, "Vessel", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "IMO", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Port", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Berth", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Arrived", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	if len(k.RecentVisits) == 0 {
		m.AddRow(8, col.New(12).Add(text.New("No visits recorded", props.Text{Size: 9})))
	}
	for _, v := range k.RecentVisits {
		berth, arrived := "-", "-"
		if v.BerthName != nil {
			berth = *v.BerthName
		}
		if v.ATA != nil {
			arrived = v.ATA.UTC().Format(sheetTimeLayout)
		}
		m.AddRow(8,
			text.NewCol(4, v.VesselName, props.Text{Size: 9}),
			text.NewCol(2, v.IMONumber, props.Text{Size: 9}),
			text.NewCol(2, v.PortCode, props.Text{Size: 9}),
			text.NewCol(2, berth, props.Text{Size: 9}),
			text.NewCol(2, arrived, props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
