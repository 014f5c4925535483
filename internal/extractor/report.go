package extractor

import "time"

// Report counts what one run did. Every scanned message lands in exactly one
// of Unmatched, Repeated, Inserted, Updated, Duplicates or Errors.
type Report struct {
	Scanned    int           `json:"scanned"`
	Unmatched  int           `json:"unmatched"`
	Repeated   int           `json:"repeated"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Duplicates int           `json:"duplicates"`
	Errors     int           `json:"errors"`
	Summarized int           `json:"summarized"`
	Keywords   int           `json:"keywords"`
	Threads    int           `json:"threads"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
}

// Accounted returns the number of scanned messages with an outcome.
func (r *Report) Accounted() int {
	return r.Unmatched + r.Repeated + r.Inserted + r.Updated + r.Duplicates + r.Errors
}
