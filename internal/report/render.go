package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
)

const bytesPerMB = 1024 * 1024

// Render writes the report as a table followed by a warning line when a stall
// was detected.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Comparing %s to %s\n",
		r.Previous.Format(time.RFC3339), r.Latest.Format(time.RFC3339))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Network", "Modality", "Partition", "Files", "Δ Files", "Size", "Δ Size", ""})

	for _, d := range r.Deltas {
		flag := ""
		if d.Stalled {
			flag = "stalled"
		}
		t.AppendRow(table.Row{
			d.Network,
			d.Modality,
			fmt.Sprintf("%s/%s", models.ProtectionName(d.IsProtected), models.StageName(d.IsRaw)),
			humanize.Comma(d.Latest.FilesCount),
			SignedCount(d.FilesDelta),
			Size(d.Latest.FilesSizeMB),
			SignedSize(d.SizeDeltaMB),
			flag,
		})
	}
	t.Render()

	if r.IssueDetected {
		fmt.Fprintf(w, "Potential data flow issue: %d partitions did not change\n", len(r.Stalled()))
	}
}

// RenderJSON writes the report as indented JSON.
func (r *Report) RenderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// SignedCount formats a count change with thousands separators, e.g. "+1,024".
func SignedCount(n int64) string {
	if n > 0 {
		return "+" + humanize.Comma(n)
	}
	return humanize.Comma(n)
}

// Size formats megabytes as a binary size.
func Size(mb float64) string {
	return humanize.IBytes(uint64(math.Abs(mb) * bytesPerMB))
}

// SignedSize formats a size change, e.g. "+1.5 GiB".
func SignedSize(mb float64) string {
	switch {
	case mb > 0:
		return "+" + Size(mb)
	case mb < 0:
		return "-" + Size(mb)
	}
	return Size(0)
}
