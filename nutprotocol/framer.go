package nutprotocol

import (
	"errors"
	"io"
	"strings"
)

// lineReader is the part of the channel the framer needs.
type lineReader interface {
	ReadLine() (string, error)
}

// FrameOptions controls how list scaffolding is handled.
type FrameOptions struct {
	// KeepScaffolding keeps BEGIN LIST / END LIST lines in the result.
	KeepScaffolding bool
}

// readResponse assembles lines from r into one logical response.
//
// A reply without list brackets is exactly one line. Inside a BEGIN LIST
// block lines are read until the matching END LIST. An OK Goodbye line
// ends the read immediately, is not included, and wins over an open list.
func readResponse(r lineReader, opts FrameOptions) (RawResponse, error) {
	var resp RawResponse
	inList := false

	for {
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return RawResponse{}, io.ErrUnexpectedEOF
			}
			return RawResponse{}, err
		}
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, GoodbyeSentinel) {
			resp.Goodbye = true
			return resp, nil
		}

		scaffolding := false
		switch {
		case strings.HasPrefix(line, ListBegin):
			inList = true
			scaffolding = true
		case strings.HasPrefix(line, ListEnd):
			inList = false
			scaffolding = true
		}

		if !scaffolding || opts.KeepScaffolding {
			resp.Lines = append(resp.Lines, line)
		}

		if !inList {
			return resp, nil
		}
	}
}
