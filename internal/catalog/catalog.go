package catalog

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/handiism/quartus-catalog/internal/model"
)

// Stage names the pipeline step a Failure happened in.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageFetch    Stage = "fetch"
	StageParse    Stage = "parse"
	StageSkip     Stage = "skip"
	StageResolve  Stage = "resolve"
)

// Failure records one thing that went wrong during a run. Failures never
// invalidate results collected elsewhere in the run.
type Failure struct {
	Stage    Stage  `json:"stage"`
	Target   string `json:"target"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts,omitempty"`
	Fatal    bool   `json:"fatal,omitempty"`
}

// Catalog is the result of a run.
type Catalog struct {
	RunID       string                     `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Groups      []*model.DistributionGroup `json:"groups"`
	Artifacts   []*model.ArtifactRecord    `json:"artifacts"`
	Failures    []Failure                  `json:"failures,omitempty"`
}

// TotalBytes sums the listed sizes of all artifacts.
func (c *Catalog) TotalBytes() int64 {
	var total int64
	for _, a := range c.Artifacts {
		total += a.Size
	}
	return total
}

// Resolved counts artifacts with a CDN URL.
func (c *Catalog) Resolved() int {
	n := 0
	for _, a := range c.Artifacts {
		if a.Resolved() {
			n++
		}
	}
	return n
}

// SHA1Sums renders the artifacts in the format read by "sha1sum -c", one
// line per distinct filename, sorted by filename.
func (c *Catalog) SHA1Sums() []byte {
	sums := make(map[string]string, len(c.Artifacts))
	for _, a := range c.Artifacts {
		if _, ok := sums[a.Filename]; !ok {
			sums[a.Filename] = a.SHA1
		}
	}

	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&buf, "%s  %s\n", sums[name], name)
	}
	return buf.Bytes()
}
