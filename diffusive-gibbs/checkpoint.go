package dgibbs

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/n0madic/go-diffusive-gibbs/tree"
)

const checkpointVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported gob version")

// GibbsStateRecord is the serializable form of a GibbsState
type GibbsStateRecord struct {
	Position         [][]float64 `gob:"position"`
	LogDensity       float64     `gob:"logdensity"`
	LogDensityGrad   [][]float64 `gob:"logdensity_grad"`
	NoiseContraction float64     `gob:"noise_contraction"`
	NoiseSigma       float64     `gob:"noise_sigma"`
	Count            int         `gob:"count"`
}

// Checkpoint is a versioned set of chain states
type Checkpoint struct {
	Version int                `gob:"version"`
	States  []GibbsStateRecord `gob:"states"`
}

// SaveStates serializes states to gob format
func SaveStates(w io.Writer, states []GibbsState) error {
	cp := Checkpoint{
		Version: checkpointVersion,
		States:  make([]GibbsStateRecord, len(states)),
	}
	for i, st := range states {
		cp.States[i] = GibbsStateRecord{
			Position:         st.Position.ToSlices(),
			LogDensity:       st.LogDensity,
			LogDensityGrad:   st.LogDensityGrad.ToSlices(),
			NoiseContraction: st.NoiseContraction,
			NoiseSigma:       st.NoiseSigma,
			Count:            st.Count,
		}
	}

	encoder := gob.NewEncoder(w)
	return encoder.Encode(cp)
}

// LoadStates deserializes states written by SaveStates
func LoadStates(r io.Reader) ([]GibbsState, error) {
	decoder := gob.NewDecoder(r)

	var cp Checkpoint
	if err := decoder.Decode(&cp); err != nil {
		return nil, err
	}

	if cp.Version != checkpointVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cp.Version)
	}

	states := make([]GibbsState, len(cp.States))
	for i, rec := range cp.States {
		if err := validateRecord(rec); err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		states[i] = GibbsState{
			Position:         tree.FromSlices(rec.Position),
			LogDensity:       rec.LogDensity,
			LogDensityGrad:   tree.FromSlices(rec.LogDensityGrad),
			NoiseContraction: rec.NoiseContraction,
			NoiseSigma:       rec.NoiseSigma,
			Count:            rec.Count,
		}
	}
	return states, nil
}

// SaveState serializes a single state
func SaveState(w io.Writer, state GibbsState) error {
	return SaveStates(w, []GibbsState{state})
}

// LoadState deserializes a checkpoint holding exactly one state
func LoadState(r io.Reader) (GibbsState, error) {
	states, err := LoadStates(r)
	if err != nil {
		return GibbsState{}, err
	}
	if len(states) != 1 {
		return GibbsState{}, fmt.Errorf("expected 1 state, got %d", len(states))
	}
	return states[0], nil
}

func validateRecord(rec GibbsStateRecord) error {
	if len(rec.Position) == 0 {
		return errors.New("empty position")
	}
	if len(rec.Position) != len(rec.LogDensityGrad) {
		return errors.New("invalid gradient leaf count")
	}
	for i := range rec.Position {
		if len(rec.Position[i]) == 0 {
			return fmt.Errorf("empty leaf %d", i)
		}
		if len(rec.Position[i]) != len(rec.LogDensityGrad[i]) {
			return fmt.Errorf("invalid gradient length for leaf %d", i)
		}
	}
	if rec.Count < 0 {
		return errors.New("negative count")
	}
	return nil
}
