package backup

import "time"

type Status string

const (
	StatusDecrypted Status = "decrypted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Skip reasons
const (
	ReasonNoMetadata        = "no metadata"
	ReasonUnsupportedCipher = "unsupported cipher"
	ReasonRevisionLimit     = "excluded by revision limits"
)

// Outcome is the result of processing one backup folder.
type Outcome struct {
	Folder string
	Output string // empty unless Status is StatusDecrypted
	Status Status
	Reason string
	Err    error

	DecryptedFiles int
	CopiedFiles    int
	Bytes          int64
	Duration       time.Duration
}

func skipped(folder, reason string, err error) Outcome {
	return Outcome{Folder: folder, Status: StatusSkipped, Reason: reason, Err: err}
}

func failed(folder string, err error) Outcome {
	return Outcome{Folder: folder, Status: StatusFailed, Err: err}
}

// Report collects the outcomes of one run in processing order.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Bytes is the total plaintext written by decrypted folders.
func (r *Report) Bytes() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.Bytes
	}
	return n
}
