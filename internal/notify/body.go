package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sydlexius/hashscan/internal/hasher"
)

// ReportSubject is the default subject line of scan report emails.
const ReportSubject = "Scan Report"

// Scan describes one completed lookup for a report email.
type Scan struct {
	Name      string
	Digest    string
	ScannedAt time.Time
	NotFound  bool
	Payload   []byte
}

type analysisStats struct {
	Harmless   int `json:"harmless"`
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Undetected int `json:"undetected"`
}

type fileReport struct {
	Data struct {
		Attributes struct {
			Stats *analysisStats `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// ScanReport builds the email for s, leaving the subject to the notifier.
func ScanReport(s Scan) Message {
	return Message{Body: ScanReportBody(s)}
}

// ScanReportBody renders the plain-text body. The digest is masked to its
// first 8 and last 4 characters.
func ScanReportBody(s Scan) string {
	var b strings.Builder
	b.WriteString("Scan Report:\n")
	b.WriteString("------------\n")
	fmt.Fprintf(&b, "File Name: %s\n", s.Name)
	fmt.Fprintf(&b, "Hash (SHA256): %s\n", hasher.Mask(s.Digest, 8, 4))
	fmt.Fprintf(&b, "Scan Date: %s\n", s.ScannedAt.Format(time.DateTime))

	switch {
	case s.NotFound:
		b.WriteString("Result: unknown to the lookup service\n")
	default:
		var rep fileReport
		if err := json.Unmarshal(s.Payload, &rep); err == nil && rep.Data.Attributes.Stats != nil {
			st := rep.Data.Attributes.Stats
			fmt.Fprintf(&b, "Detections: malicious=%d suspicious=%d undetected=%d harmless=%d\n",
				st.Malicious, st.Suspicious, st.Undetected, st.Harmless)
		}
	}

	b.WriteString("------------\n")
	return b.String()
}
