package statement

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
)

func render(investor *investordomain.Investor, entries []ledgerdomain.Entry, now time.Time) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Account Statement", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, now.Format("02 Jan 2006"), props.Text{
			Size:  10,
			Align: align.Right,
			Top:   4,
		}),
	)

	from, to := periodOf(entries, now)
	m.AddRow(25,
		col.New(6).Add(
			text.New(investor.Name, props.Text{Style: fontstyle.Bold}),
			text.New(investor.Email, props.Text{Top: 5}),
			text.New("Investor ID: "+investor.ID.String(), props.Text{Top: 10, Size: 8}),
		),
		col.New(6).Add(
			text.New("Period", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(from.Format("02 Jan 2006")+" - "+to.Format("02 Jan 2006"), props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(22,
		summaryCol("Cash balance", investor.CashBalance),
		summaryCol("Profit balance", investor.ProfitBalance),
		summaryCol("Total invested", investor.TotalInvested),
		summaryCol("Total withdrawn", investor.TotalWithdrawn),
	)

	m.AddRow(10,
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Type", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Cash after", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Profit after", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, entry := range entries {
		amount := formatIDR(entry.Amount)
		if !entry.Type.IsCredit() {
			amount = "-" + amount
		}
		m.AddRow(8,
			text.NewCol(3, entry.CreatedAt.Format("02 Jan 2006 15:04"), props.Text{Size: 8}),
			text.NewCol(3, strings.ReplaceAll(string(entry.Type), "_", " "), props.Text{Size: 8}),
			text.NewCol(2, amount, props.Text{Size: 8, Align: align.Right}),
			text.NewCol(2, formatIDR(entry.BalanceAfter), props.Text{Size: 8, Align: align.Right}),
			text.NewCol(2, formatIDR(entry.ProfitAfter), props.Text{Size: 8, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func summaryCol(label string, amount int64) core.Col {
	return col.New(3).Add(
		text.New(label, props.Text{Size: 8}),
		text.New(formatIDR(amount), props.Text{Top: 5, Size: 10, Style: fontstyle.Bold}),
	)
}

// formatIDR renders minor units with dot thousand separators, e.g.
// 1250000 -> "Rp 1.250.000".
func formatIDR(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	out := "Rp " + b.String()
	if negative {
		out = "-" + out
	}
	return out
}
