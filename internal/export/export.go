// Package export writes recorded data as CSV for analysis tooling.
//
// Output is deterministic: fixed column order, shortest round-trippable
// float formatting, rows in store order. The same database always
// produces byte-identical files, which keeps exports diffable.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/store"
)

// SampleHeader is the column order for sample exports.
var SampleHeader = []string{
	"id", "participant_id", "trial_id", "timestamp",
	"buffeting_force", "additional_force", "total_force",
	"user_input", "target_position", "displacement",
	"pvt_event", "pvt_rt",
}

// TrialHeader is the column order for trial exports.
var TrialHeader = []string{"id", "participant_id", "block_num", "trial_num"}

// ParticipantHeader is the column order for participant exports.
var ParticipantHeader = []string{"id", "userhash", "gender", "age", "handedness", "created"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sampleRow(s model.Sample) []string {
	trialID := ""
	if s.TrialID != nil {
		trialID = strconv.FormatInt(int64(*s.TrialID), 10)
	}
	rt := ""
	if s.PVTRT != nil {
		rt = formatFloat(*s.PVTRT)
	}
	return []string{
		strconv.FormatInt(int64(s.ID), 10),
		strconv.FormatInt(int64(s.ParticipantID), 10),
		trialID,
		formatFloat(s.Timestamp),
		formatFloat(s.BuffetingForce),
		formatFloat(s.AdditionalForce),
		formatFloat(s.TotalForce),
		formatFloat(s.UserInput),
		formatFloat(s.TargetPosition),
		formatFloat(s.Displacement),
		string(s.PVTEvent),
		rt,
	}
}

// WriteSamples writes samples as CSV, header first.
func WriteSamples(w io.Writer, samples []model.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SampleHeader); err != nil {
		return fmt.Errorf("writing sample header: %w", err)
	}
	for _, s := range samples {
		if err := cw.Write(sampleRow(s)); err != nil {
			return fmt.Errorf("writing sample %d: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrials writes trials as CSV, header first.
func WriteTrials(w io.Writer, trials []model.Trial) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TrialHeader); err != nil {
		return fmt.Errorf("writing trial header: %w", err)
	}
	for _, t := range trials {
		row := []string{
			strconv.FormatInt(int64(t.ID), 10),
			strconv.FormatInt(int64(t.ParticipantID), 10),
			strconv.Itoa(t.BlockNum),
			strconv.Itoa(t.TrialNum),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing trial %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteParticipants writes participants as CSV, header first.
func WriteParticipants(w io.Writer, participants []model.Participant) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ParticipantHeader); err != nil {
		return fmt.Errorf("writing participant header: %w", err)
	}
	for _, p := range participants {
		row := []string{
			strconv.FormatInt(int64(p.ID), 10),
			p.UserHash,
			p.Gender,
			strconv.Itoa(p.Age),
			p.Handedness,
			p.Created.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing participant %d: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Samples streams one participant's samples in [from, to] from the store
// straight to w, without materializing the whole range.
func Samples(ctx context.Context, st *store.Store, id model.ParticipantID, from, to float64, w io.Writer) error {
	cur, err := st.SampleRange(ctx, id, from, to)
	if err != nil {
		return err
	}
	defer cur.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(SampleHeader); err != nil {
		return fmt.Errorf("writing sample header: %w", err)
	}
	for cur.Next() {
		s := cur.Sample()
		if err := cw.Write(sampleRow(s)); err != nil {
			return fmt.Errorf("writing sample %d: %w", s.ID, err)
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Trials writes one participant's trial index to w.
func Trials(ctx context.Context, st *store.Store, id model.ParticipantID, w io.Writer) error {
	trials, err := st.ListTrials(ctx, id)
	if err != nil {
		return err
	}
	return WriteTrials(w, trials)
}
