package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/transfer"
)

// summary is the printable form of a transfer result.
type summary struct {
	TransferID string            `json:"transfer_id"`
	Location   string            `json:"location,omitempty"`
	Keys       []string          `json:"keys,omitempty"`
	ExportPath string            `json:"export_path,omitempty"`
	Statement  string            `json:"statement,omitempty"`
	Stages     map[string]string `json:"stages,omitempty"`
}

func summarize(res interface{}) interface{} {
	switch r := res.(type) {
	case *transfer.LoadResult:
		s := summary{TransferID: r.TransferID, Location: r.Location, Keys: r.Keys, Statement: r.Statement, Stages: map[string]string{}}
		for _, st := range r.Stages {
			s.Stages[st.Name] = st.Duration.String()
		}
		return s
	case *transfer.UnloadResult:
		s := summary{TransferID: r.TransferID, Location: r.Location, Keys: r.Keys, ExportPath: r.ExportPath, Statement: r.Statement, Stages: map[string]string{}}
		for _, st := range r.Stages {
			s.Stages[st.Name] = st.Duration.String()
		}
		return s
	default:
		return res
	}
}

// printResult writes res to w as indented JSON or as key: value lines.
func printResult(w io.Writer, format string, res interface{}) error {
	v := summarize(res)
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode result")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text", "":
		s, ok := v.(summary)
		if !ok {
			_, err := fmt.Fprintf(w, "%v\n", v)
			return err
		}
		fmt.Fprintf(w, "transfer_id: %s\n", s.TransferID)
		if s.Location != "" {
			fmt.Fprintf(w, "location: %s\n", s.Location)
		}
		if s.ExportPath != "" {
			fmt.Fprintf(w, "export_path: %s\n", s.ExportPath)
		}
		fmt.Fprintf(w, "objects: %d\n", len(s.Keys))
		return nil
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown output format %q", format)
	}
}
