package config

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ParseLegacy reads neurons written in the key:value format:
//
//	"single HH neuron"
//	dxdt:4, v:0, m:0.0529, h:0.5961, n:0.3177, gna:120;
//
// Records end with ';', pairs are separated by ',', and text between double
// quotes is a comment. The pair dxdt:N marks the N pairs after it as
// integrated variables; all other pairs are parameters. Neurons are numbered
// from firstID in file order.
func ParseLegacy(r io.Reader, firstID int) ([]NeuronConfig, error) {
	var neurons []NeuronConfig

	err := readLegacyRecords(r, nil, func(rec legacyRecord) error {
		neurons = append(neurons, NeuronConfig{
			ID:         firstID + len(neurons),
			Variables:  rec.variables,
			Parameters: rec.parameters,
		})

		return nil
	})

	return neurons, err
}

// ParseLegacySynapses reads synapses written in the key:value format of
// ParseLegacy, with two more keys, pre and post, that name the connected
// neurons by their position in the neuron file:
//
//	pre:0, post:1, dxdt:1, s:0, gsyn:0.5;
//
// Synapses are numbered from firstID in file order.
func ParseLegacySynapses(r io.Reader, firstID int) ([]SynapseConfig, error) {
	var synapses []SynapseConfig

	reserved := []string{"pre", "post"}

	err := readLegacyRecords(r, reserved, func(rec legacyRecord) error {
		s := SynapseConfig{
			ID:        firstID + len(synapses),
			Variables: rec.variables,
		}

		var err error

		s.Pre, err = neuronRef(rec.reserved, "pre")
		if err != nil {
			return err
		}

		s.Post, err = neuronRef(rec.reserved, "post")
		if err != nil {
			return err
		}

		s.Parameters = rec.parameters
		synapses = append(synapses, s)

		return nil
	})

	return synapses, err
}

func neuronRef(values map[string]float64, key string) (int, error) {
	v, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("%s is missing", key)
	}

	if v < 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s must be a neuron number, got %g", key, v)
	}

	return int(v), nil
}

type legacyRecord struct {
	variables  Variables
	parameters map[string]float64
	reserved   map[string]float64
}

// readLegacyRecords calls fn for every record of the file. Reserved keys are
// never variables, even inside a dxdt run.
func readLegacyRecords(
	r io.Reader,
	reserved []string,
	fn func(legacyRecord) error,
) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	for i, record := range strings.Split(string(data), ";") {
		text := strings.TrimSpace(removeComments(record))
		if text == "" {
			continue
		}

		rec, err := parseLegacyRecord(text, reserved)
		if err == nil {
			err = fn(rec)
		}

		if err != nil {
			return &ParseError{Record: i + 1, Reason: err.Error()}
		}
	}

	return nil
}

func parseLegacyRecord(text string, reserved []string) (legacyRecord, error) {
	var rec legacyRecord

	pending := 0
	seen := make(map[string]bool)

	for _, pair := range strings.Split(text, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, value, err := splitPair(pair)
		if err != nil {
			return rec, err
		}

		if key == "dxdt" {
			if value < 0 || value != math.Trunc(value) {
				return rec, fmt.Errorf("dxdt must be a whole number, got %g",
					value)
			}

			pending = int(value)

			continue
		}

		if seen[key] {
			return rec, fmt.Errorf("%q is listed twice", key)
		}

		seen[key] = true

		switch {
		case slices.Contains(reserved, key):
			if rec.reserved == nil {
				rec.reserved = make(map[string]float64)
			}

			rec.reserved[key] = value
		case pending > 0:
			rec.variables = append(rec.variables,
				Variable{Name: key, Initial: value})
			pending--
		default:
			if rec.parameters == nil {
				rec.parameters = make(map[string]float64)
			}

			rec.parameters[key] = value
		}
	}

	if pending > 0 {
		return rec, fmt.Errorf("dxdt announces %d more variables than listed",
			pending)
	}

	return rec, nil
}

func splitPair(pair string) (string, float64, error) {
	key, raw, ok := strings.Cut(pair, ":")
	if !ok {
		return "", 0, fmt.Errorf("%q is not a key:value pair", pair)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", 0, fmt.Errorf("%q has an empty key", pair)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("value of %q is not a number", key)
	}

	return key, value, nil
}

// removeComments drops every quoted section of the text.
func removeComments(s string) string {
	parts := strings.Split(s, `"`)

	var b strings.Builder
	for i := 0; i < len(parts); i += 2 {
		b.WriteString(parts[i])
	}

	return b.String()
}
