package sim

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"

	"github.com/16tons/emergency5-sdk-sub029/actions/move"
	"github.com/16tons/emergency5-sdk-sub029/entity"
)

// Row is the outcome of one order.
type Row struct {
	Agent        entity.ID
	Goal         string
	Mode         string
	State        string
	Result       string
	Reason       string
	Error        string
	Finished     bool
	FinishedTick int
	Elapsed      time.Duration
	// Traveled is the distance covered along planned paths; Straight is start to final position.
	Traveled      float64
	Straight      float64
	Retries       int
	Replans       int
	Final         r3.Vector
	SirenSwitches int
	SirenOn       bool
}

// Report is the outcome of one scenario run.
type Report struct {
	RunID    uuid.UUID
	Scenario string
	Ticks    int
	GameTime time.Duration
	Rows     []Row
}

// Row returns the row of agent.
func (r *Report) Row(agent entity.ID) (Row, bool) {
	for _, row := range r.Rows {
		if row.Agent == agent {
			return row, true
		}
	}
	return Row{}, false
}

// Render writes the report as a table.
func (r *Report) Render(w io.Writer) error {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s (%d ticks, %v game time)", r.Scenario, r.Ticks, r.GameTime))
	t.AppendHeader(table.Row{"Agent", "Goal", "Mode", "State", "Reason", "Time", "Traveled", "Retries", "Replans", "Final"})
	for _, row := range r.Rows {
		t.AppendRow(table.Row{
			row.Agent,
			row.Goal,
			row.Mode,
			row.State,
			row.Reason,
			row.Elapsed,
			fmt.Sprintf("%.2f", row.Traveled),
			row.Retries,
			row.Replans,
			fmt.Sprintf("(%.2f, %.2f, %.2f)", row.Final.X, row.Final.Y, row.Final.Z),
		})
	}
	summary, err := r.Summary()
	if err == nil {
		t.AppendFooter(table.Row{
			"", "", "", fmt.Sprintf("%d/%d arrived", summary.Arrived, summary.Orders), "",
			fmt.Sprintf("mean %.2fs", summary.MeanArrivalSec), fmt.Sprintf("%.2f", summary.TotalTraveled),
		})
	}
	_, err = fmt.Fprintln(w, t.Render())
	return err
}

// Summary aggregates a report.
type Summary struct {
	Orders           int
	Arrived          int
	Failed           int
	MeanArrivalSec   float64
	MedianArrivalSec float64
	P90ArrivalSec    float64
	TotalTraveled    float64
	MeanRetries      float64
}

// Summary computes arrival time statistics over the arrived orders. Arrival statistics are zero
// when nothing arrived.
func (r *Report) Summary() (Summary, error) {
	summary := Summary{Orders: len(r.Rows)}
	var arrivals, traveled, retries stats.Float64Data
	for _, row := range r.Rows {
		traveled = append(traveled, row.Traveled)
		retries = append(retries, float64(row.Retries))
		switch row.State {
		case move.Arrived.String():
			summary.Arrived++
			arrivals = append(arrivals, row.Elapsed.Seconds())
		case move.Failed.String(), move.Aborted.String():
			summary.Failed++
		}
	}
	if len(r.Rows) == 0 {
		return summary, nil
	}
	var err error
	if summary.TotalTraveled, err = traveled.Sum(); err != nil {
		return summary, err
	}
	if summary.MeanRetries, err = retries.Mean(); err != nil {
		return summary, err
	}
	if len(arrivals) == 0 {
		return summary, nil
	}
	if summary.MeanArrivalSec, err = arrivals.Mean(); err != nil {
		return summary, err
	}
	if summary.MedianArrivalSec, err = arrivals.Median(); err != nil {
		return summary, err
	}
	if summary.P90ArrivalSec, err = stats.Percentile(arrivals, 90); err != nil {
		return summary, err
	}
	return summary, nil
}
