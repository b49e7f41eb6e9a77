// Package report renders profile results as aligned tables or JSON.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"

	"github.com/samcharles93/opcount/pkg/profile"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, FormatJSON:
		return Format(s), nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table or json)", s)
	}
}

// Entry is one profiled model.
type Entry struct {
	Model  string          `json:"model"`
	Result *profile.Result `json:"result"`
}

// Document is the JSON shape written for a batch of entries.
type Document struct {
	Models []modelDoc `json:"models"`
}

type modelDoc struct {
	Model       string              `json:"model"`
	Ops         uint64              `json:"ops"`
	Params      uint64              `json:"params"`
	GFLOPs      float64             `json:"gflops"`
	MParams     float64             `json:"mparams"`
	Input       []int               `json:"input_shape"`
	Output      []int               `json:"output_shape"`
	ByKind      []profile.KindTotal `json:"by_kind"`
	Layers      []profile.LayerStat `json:"layers,omitempty"`
	Unsupported []string            `json:"unsupported,omitempty"`
}

// Options control how much detail is rendered.
type Options struct {
	// Layers adds a per-leaf breakdown for every model.
	Layers bool
	// Kinds adds a per-kind breakdown for every model.
	Kinds bool
}

// Write renders entries in the given format.
func Write(w io.Writer, format Format, entries []Entry, opts Options) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, NewDocument(entries, opts))
	case FormatTable, "":
		return WriteTable(w, entries, opts)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// NewDocument converts entries into their JSON form.
func NewDocument(entries []Entry, opts Options) Document {
	doc := Document{Models: make([]modelDoc, 0, len(entries))}
	for _, e := range entries {
		r := e.Result
		md := modelDoc{
			Model:   e.Model,
			Ops:     r.Ops,
			Params:  r.Params,
			GFLOPs:  r.GFLOPs(),
			MParams: r.MParams(),
			Input:   r.Input,
			Output:  r.Output,
			ByKind:  r.ByKind(),
		}
		if opts.Layers {
			md.Layers = r.Layers
		}
		for _, k := range r.Unsupported {
			md.Unsupported = append(md.Unsupported, string(k))
		}
		doc.Models = append(doc.Models, md)
	}
	return doc
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteTable writes a summary row per entry, followed by the requested
// breakdowns.
func WriteTable(w io.Writer, entries []Entry, opts Options) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		r := e.Result
		rows = append(rows, []string{
			e.Model,
			r.Input.String(),
			r.Output.String(),
			Number(r.Ops),
			Number(r.Params),
			unsupported(r),
		})
	}
	render(w, []string{"MODEL", "INPUT", "OUTPUT", "OPS", "PARAMS", "UNSUPPORTED"}, rows)

	for _, e := range entries {
		if opts.Kinds {
			fmt.Fprintf(w, "\n%s by kind:\n", e.Model)
			render(w, []string{"KIND", "LAYERS", "OPS", "PARAMS", "SHARE"}, kindRows(e.Result))
		}
		if opts.Layers {
			fmt.Fprintf(w, "\n%s layers:\n", e.Model)
			render(w, []string{"MODULE", "KIND", "INPUT", "OUTPUT", "CALLS", "OPS", "PARAMS"}, layerRows(e.Result))
		}
	}
	return nil
}

func render(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()
}

func kindRows(r *profile.Result) [][]string {
	var rows [][]string
	for _, k := range r.ByKind() {
		share := "-"
		if r.Ops > 0 {
			share = strconv.FormatFloat(100*float64(k.Ops)/float64(r.Ops), 'f', 1, 64) + "%"
		}
		rows = append(rows, []string{string(k.Kind), strconv.Itoa(k.Layers), Number(k.Ops), Number(k.Params), share})
	}
	return rows
}

func layerRows(r *profile.Result) [][]string {
	var rows [][]string
	for _, l := range r.Layers {
		path := l.Path
		if path == "" {
			path = "(root)"
		}
		ops := Number(l.Ops)
		if !l.Counted {
			ops = "-"
		}
		in, out := "-", "-"
		if l.Calls > 0 {
			in, out = l.Input.String(), l.Output.String()
		}
		rows = append(rows, []string{path, string(l.Kind), in, out, strconv.Itoa(l.Calls), ops, Number(l.Params)})
	}
	return rows
}

func unsupported(r *profile.Result) string {
	if len(r.Unsupported) == 0 {
		return "-"
	}
	kinds := make([]string, len(r.Unsupported))
	for i, k := range r.Unsupported {
		kinds[i] = string(k)
	}
	return strings.Join(kinds, ",")
}
